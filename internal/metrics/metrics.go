// Package metrics exposes the outcome of configuration runs as Prometheus
// metrics written to a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clustercfg/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metrics for clustercfg
type Registry struct {
	ReplicationFactor prometheus.Gauge
	QuorumSize        prometheus.Gauge
	QuorumTargetSize  prometheus.Gauge
	QuorumUnderTarget prometheus.Gauge
	MembershipSize    prometheus.Gauge
	TrustTargets      *prometheus.GaugeVec
	RunsTotal         *prometheus.CounterVec
	LastRunTimestamp  prometheus.Gauge
	LastRunDuration   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.Mutex
}

// NewRegistry creates a registry with every metric initialized
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	factory := promauto.With(r.registry)

	r.ReplicationFactor = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_replication_factor",
		Help: "dfs.replication derived in the last run",
	})
	r.QuorumSize = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_quorum_size",
		Help: "Number of ZooKeeper quorum members selected in the last run",
	})
	r.QuorumTargetSize = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_quorum_target_size",
		Help: "Configured ZooKeeper quorum target size",
	})
	r.QuorumUnderTarget = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_quorum_under_provisioned",
		Help: "Whether the last quorum fell short of its target (1=yes, 0=no)",
	})
	r.MembershipSize = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_membership_size",
		Help: "Number of nodes in the last membership snapshot",
	})
	r.TrustTargets = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clustercfg_trust_targets",
		Help: "Trust targets of the last run by final state",
	}, []string{"state"})
	r.RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clustercfg_runs_total",
		Help: "Configuration runs by status",
	}, []string{"status"})
	r.LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
	r.LastRunDuration = factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustercfg_last_run_duration_seconds",
		Help: "Wall time of the last run",
	})

	return r
}

// Gatherer returns the underlying registry for tests and exporters
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveRun updates every gauge from a finished run
func (r *Registry) ObserveRun(run *domain.RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ReplicationFactor.Set(float64(run.Replication))
	r.QuorumSize.Set(float64(len(run.Quorum)))
	r.QuorumTargetSize.Set(float64(run.QuorumTarget))
	r.MembershipSize.Set(float64(run.MembershipSize))

	if run.Warning != "" {
		r.QuorumUnderTarget.Set(1)
	} else {
		r.QuorumUnderTarget.Set(0)
	}

	counts := make(map[domain.TrustState]int)
	for _, nt := range run.Trust {
		counts[nt.State]++
	}
	for _, state := range domain.AllTrustStates {
		r.TrustTargets.WithLabelValues(string(state)).Set(float64(counts[state]))
	}

	r.RunsTotal.WithLabelValues(string(run.Status)).Inc()

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.LastRunTimestamp.Set(float64(finished.Unix()))
	r.LastRunDuration.Set(run.Duration().Seconds())
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
