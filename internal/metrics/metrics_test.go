package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clustercfg/internal/domain"

	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func testRun() *domain.RunRecord {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.RunRecord{
		StartedAt:      started,
		FinishedAt:     started.Add(2 * time.Second),
		MembershipSize: 2,
		Replication:    2,
		Quorum:         domain.QuorumSet{"master", "slave1"},
		QuorumTarget:   3,
		Warning:        "quorum under-provisioned: 2 of 3 target members available",
		Status:         domain.RunPartial,
		Trust: []domain.NodeTrust{
			{NodeID: "master", State: domain.TrustAlready},
			{NodeID: "slave1", State: domain.TrustFailed},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.ReplicationFactor == nil || r.TrustTargets == nil || r.RunsTotal == nil {
		t.Fatal("metrics not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestObserveRun(t *testing.T) {
	r := NewRegistry()
	r.ObserveRun(testRun())

	if got := gaugeValue(t, r.ReplicationFactor); got != 2 {
		t.Errorf("replication = %v, want 2", got)
	}
	if got := gaugeValue(t, r.QuorumSize); got != 2 {
		t.Errorf("quorum size = %v, want 2", got)
	}
	if got := gaugeValue(t, r.QuorumUnderTarget); got != 1 {
		t.Errorf("under target = %v, want 1", got)
	}
	if got := gaugeValue(t, r.LastRunDuration); got != 2 {
		t.Errorf("duration = %v, want 2", got)
	}

	failed, err := r.TrustTargets.GetMetricWithLabelValues(string(domain.TrustFailed))
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := gaugeValue(t, failed); got != 1 {
		t.Errorf("failed targets = %v, want 1", got)
	}

	established, err := r.TrustTargets.GetMetricWithLabelValues(string(domain.TrustEstablished))
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if got := gaugeValue(t, established); got != 0 {
		t.Errorf("established targets = %v, want 0", got)
	}

	// A second run resets per-state gauges but keeps counting runs
	second := testRun()
	second.Trust = nil
	second.Warning = ""
	second.Status = domain.RunSucceeded
	r.ObserveRun(second)

	if got := gaugeValue(t, failed); got != 0 {
		t.Errorf("failed targets after second run = %v, want 0", got)
	}
	if got := gaugeValue(t, r.QuorumUnderTarget); got != 0 {
		t.Errorf("under target after second run = %v, want 0", got)
	}

	var metric dto.Metric
	partial, _ := r.RunsTotal.GetMetricWithLabelValues(string(domain.RunPartial))
	if err := partial.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if metric.GetCounter().GetValue() != 1 {
		t.Errorf("partial runs = %v, want 1", metric.GetCounter().GetValue())
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.ObserveRun(testRun())

	path := filepath.Join(t.TempDir(), "textfile", "clustercfg.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		"clustercfg_replication_factor 2",
		`clustercfg_trust_targets{state="already_trusted"} 1`,
		`clustercfg_runs_total{status="partial"} 1`,
		"# HELP clustercfg_membership_size",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
