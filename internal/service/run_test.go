package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clustercfg/internal/domain"
	"clustercfg/internal/inventory"
	"clustercfg/internal/keys"
	"clustercfg/internal/metrics"
	"clustercfg/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEstablisher struct {
	mu      sync.Mutex
	calls   int
	failIDs map[string]bool
}

func (f *fakeEstablisher) EstablishTrust(_ context.Context, snapshot *domain.MembershipSnapshot, localID string, kp *keys.KeyPair) (*domain.TrustResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	result := &domain.TrustResult{Truster: localID}
	for _, n := range snapshot.All() {
		nt := domain.NewNodeTrust(n)
		if f.failIDs[n.ID] {
			nt.Fail(errors.New("connection refused"))
		} else {
			_ = nt.Advance(domain.TrustKeyTransferred)
			_ = nt.Advance(domain.TrustEstablished)
		}
		result.Nodes = append(result.Nodes, *nt)
	}
	return result, nil
}

type fakeVerifier struct {
	calls   int
	failIDs map[string]bool
	keys    []string
}

func (f *fakeVerifier) Verify(_ context.Context, snapshot *domain.MembershipSnapshot, kp *keys.KeyPair) ([]domain.NodeCheck, error) {
	f.calls++
	f.keys = append(f.keys, kp.Marker())

	var checks []domain.NodeCheck
	for _, n := range snapshot.All() {
		c := domain.NodeCheck{NodeID: n.ID, Address: n.Address, OK: !f.failIDs[n.ID]}
		if !c.OK {
			c.Err = errors.New("permission denied (publickey)")
		}
		checks = append(checks, c)
	}
	return checks, nil
}

type memoryLedger struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

func (m *memoryLedger) RecordRun(_ context.Context, run *domain.RunRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *run)
	return run.ID, nil
}

func (m *memoryLedger) ListRuns(context.Context, int) ([]domain.RunRecord, error) {
	return m.runs, nil
}

func (m *memoryLedger) GetRun(context.Context, int64) (*domain.RunRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryLedger) TrustOutcomes(context.Context, int64) ([]domain.NodeTrust, error) {
	return nil, nil
}

func (m *memoryLedger) LastEstablished(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (m *memoryLedger) Close() error { return nil }

func exampleSource(localID string) *inventory.StaticSource {
	return inventory.NewStaticSource(localID,
		domain.NewNodeRecord("slave2", "10.0.0.3"),
		domain.NewNodeRecord("master", "10.0.0.1"),
		domain.NewNodeRecord("slave3", "10.0.0.4"),
		domain.NewNodeRecord("slave1", "10.0.0.2"),
	)
}

func testKeyLoader(t *testing.T) KeyLoader {
	dir := t.TempDir()
	return func(localID string) (*keys.KeyPair, error) {
		kp, _, err := keys.LoadOrGenerate(dir, keys.Comment("hduser", localID))
		return kp, err
	}
}

type harness struct {
	svc         *RunService
	establisher *fakeEstablisher
	ledger      *memoryLedger
	outputDir   string
	metricsPath string
	events      chan Event
}

func newHarness(t *testing.T, localID string) *harness {
	t.Helper()

	outputDir := t.TempDir()
	renderer, err := render.NewHadoopRenderer(outputDir, render.HadoopSettings{
		NamenodeDir:  "/home/hduser/hdfs/namenode",
		DatanodeDir:  "/home/hduser/hdfs/datanode",
		ZookeeperDir: "/home/hduser/zookeeper",
	})
	require.NoError(t, err)

	h := &harness{
		establisher: &fakeEstablisher{failIDs: map[string]bool{}},
		ledger:      &memoryLedger{},
		outputDir:   outputDir,
		metricsPath: filepath.Join(t.TempDir(), "clustercfg.prom"),
		events:      make(chan Event, 64),
	}

	bus := NewEventBus()
	bus.Subscribe(h.events)

	h.svc, err = NewRunService(Deps{
		Source:        exampleSource(localID),
		QuorumSize:    3,
		Establisher:   h.establisher,
		LoadKey:       testKeyLoader(t),
		Materializer:  renderer,
		Ledger:        h.ledger,
		Metrics:       metrics.NewRegistry(),
		MetricsPath:   h.metricsPath,
		Events:        bus,
		InventoryName: "static",
	})
	require.NoError(t, err)
	return h
}

func (h *harness) drain() []EventType {
	var types []EventType
	for {
		select {
		case ev := <-h.events:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func TestRun_Coordinator(t *testing.T) {
	h := newHarness(t, "master")

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)

	assert.Equal(t, domain.ReplicationPlan(4), report.Plan.Replication)
	assert.Equal(t, domain.QuorumSet{"master", "slave1", "slave2"}, report.Plan.Quorum)
	assert.Nil(t, report.Plan.Warning)

	require.NotNil(t, report.Trust)
	assert.Len(t, report.Trust.Created(), 4)
	assert.Equal(t, 1, h.establisher.calls)

	assert.Len(t, report.Rendered, 5)

	rec := report.Record
	assert.Equal(t, domain.RunSucceeded, rec.Status)
	assert.Equal(t, "master", rec.LocalID)
	assert.Equal(t, "master", rec.Coordinator)
	assert.Equal(t, 4, rec.MembershipSize)
	assert.False(t, rec.TrustSkipped)
	assert.Equal(t, "static", rec.Inventory)

	require.Len(t, h.ledger.runs, 1)
	assert.Equal(t, int64(1), h.ledger.runs[0].ID)
	assert.FileExists(t, h.metricsPath)

	events := h.drain()
	assert.Equal(t, EventRunStarted, events[0])
	assert.Equal(t, EventRunCompleted, events[len(events)-1])
	assert.Contains(t, events, EventArtifactWritten)

	doc := report.Document()
	require.NotNil(t, doc)
	assert.Equal(t, "master", doc.Coordinator.ID)
}

func TestRun_WorkerSkipsTrust(t *testing.T) {
	h := newHarness(t, "slave1")

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)

	assert.Equal(t, 0, h.establisher.calls)
	assert.Nil(t, report.Trust)
	assert.True(t, report.Record.TrustSkipped)
	assert.Equal(t, domain.RunSucceeded, report.Record.Status)
	assert.Len(t, report.Rendered, 5, "workers still render their own configuration")
}

func TestRun_PartialTrust(t *testing.T) {
	h := newHarness(t, "master")
	h.establisher.failIDs["slave3"] = true

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartial, report.Record.Status)
	assert.Len(t, report.Trust.Failures(), 1)
	assert.Len(t, report.Rendered, 5, "trust failures do not stop rendering")
}

func TestRun_AmbiguousTopology(t *testing.T) {
	h := newHarness(t, "master")
	h.svc.deps.Source = inventory.NewStaticSource("master",
		domain.NewNodeRecord("master1", "10.0.0.1"),
		domain.NewNodeRecord("master2", "10.0.0.2"),
		domain.NewNodeRecord("slave1", "10.0.0.3"),
	)

	report, err := h.svc.Run(context.Background(), FullRun)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAmbiguousTopology)
	assert.True(t, IsTopologyError(err))

	assert.Equal(t, 0, h.establisher.calls, "no remote action after a classification failure")
	assert.Nil(t, report.Plan)
	assert.Empty(t, report.Rendered)
	assert.Nil(t, report.Document())

	assert.Equal(t, domain.RunFailed, report.Record.Status)
	require.Len(t, h.ledger.runs, 1)
	assert.Contains(t, h.ledger.runs[0].Error, "master1")
}

func TestRun_UnderProvisionedQuorum(t *testing.T) {
	h := newHarness(t, "master")
	h.svc.deps.Source = inventory.NewStaticSource("master",
		domain.NewNodeRecord("master", "10.0.0.1"),
		domain.NewNodeRecord("slave1", "10.0.0.2"),
	)

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)

	require.NotNil(t, report.Plan.Warning)
	assert.Equal(t, 2, report.Plan.Warning.Actual)
	assert.NotEmpty(t, report.Record.Warning)
	assert.Contains(t, h.drain(), EventQuorumWarning)
}

func TestRun_PlanOnly(t *testing.T) {
	h := newHarness(t, "master")

	report, err := h.svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.NotNil(t, report.Plan)
	assert.Equal(t, 0, h.establisher.calls)
	assert.Empty(t, report.Rendered)
	assert.Empty(t, h.ledger.runs)
	assert.NoFileExists(t, h.metricsPath)
}

func TestRun_LocalIDResolution(t *testing.T) {
	h := newHarness(t, "")
	h.svc.deps.ResolveLocalID = func(fromInventory string) string {
		if fromInventory != "" {
			return fromInventory
		}
		return "master"
	}

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)
	assert.Equal(t, "master", report.Record.LocalID)
	assert.Equal(t, 1, h.establisher.calls)
}

func TestRun_KeyLoadFailure(t *testing.T) {
	h := newHarness(t, "master")
	h.svc.deps.LoadKey = func(string) (*keys.KeyPair, error) {
		return nil, errors.New("permission denied")
	}

	report, err := h.svc.Run(context.Background(), FullRun)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, domain.RunFailed, report.Record.Status)
	assert.Empty(t, report.Rendered)
}

func TestRun_Verify(t *testing.T) {
	h := newHarness(t, "master")
	verifier := &fakeVerifier{failIDs: map[string]bool{}}
	h.svc.deps.Verifier = verifier

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)

	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, []string{"hduser@master"}, verifier.keys, "verification uses the key trust pushed")
	assert.Len(t, report.Checks, 4)
	assert.Equal(t, domain.RunSucceeded, report.Record.Status)

	verifier.failIDs["slave2"] = true
	report, err = h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, report.Record.Status)
	assert.Len(t, domain.CheckFailures(report.Checks), 1)
}

func TestRun_WorkerSkipsVerify(t *testing.T) {
	h := newHarness(t, "slave1")
	verifier := &fakeVerifier{}
	h.svc.deps.Verifier = verifier

	report, err := h.svc.Run(context.Background(), FullRun)
	require.NoError(t, err)
	assert.Equal(t, 0, verifier.calls)
	assert.Empty(t, report.Checks)
}

func TestNewRunService_RequiresSource(t *testing.T) {
	_, err := NewRunService(Deps{})
	assert.Error(t, err)
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 100)
	bus.Subscribe(ch)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.PublishTrustOutcome(domain.NodeTrust{NodeID: "slave1", State: domain.TrustEstablished})
		}()
	}
	wg.Wait()

	assert.Len(t, ch, 10)
	ev := <-ch
	assert.Equal(t, EventTrustOutcome, ev.Type)
	assert.False(t, ev.Time.IsZero())
}

func TestEventBus_SlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(ch)

	bus.Publish(Event{Type: EventRunStarted})
	bus.Publish(Event{Type: EventRunCompleted})

	assert.Len(t, ch, 1)
	assert.Equal(t, EventRunStarted, (<-ch).Type)
}
