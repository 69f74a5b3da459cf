package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clustercfg/internal/codec"
	"clustercfg/internal/domain"
	"clustercfg/internal/inventory"
	"clustercfg/internal/keys"
	"clustercfg/internal/metrics"
	"clustercfg/internal/render"
	"clustercfg/internal/repository"
	"clustercfg/internal/topology"

	"github.com/rs/zerolog/log"
)

// TrustEstablisher makes every member trust the local key pair
type TrustEstablisher interface {
	EstablishTrust(ctx context.Context, snapshot *domain.MembershipSnapshot, localID string, kp *keys.KeyPair) (*domain.TrustResult, error)
}

// TrustVerifier checks that every member accepts the local key alone
type TrustVerifier interface {
	Verify(ctx context.Context, snapshot *domain.MembershipSnapshot, kp *keys.KeyPair) ([]domain.NodeCheck, error)
}

// KeyLoader returns the local key pair for localID, creating it if needed
type KeyLoader func(localID string) (*keys.KeyPair, error)

// Deps wires a RunService. Only Source is required; a nil Establisher,
// Verifier, Materializer, Ledger or Metrics disables that step.
type Deps struct {
	Source       inventory.Source
	Classifier   topology.RoleClassifier
	QuorumSize   int
	Establisher  TrustEstablisher
	Verifier     TrustVerifier
	LoadKey      KeyLoader
	Materializer render.Materializer
	Ledger       repository.RunLedger
	Metrics      *metrics.Registry
	MetricsPath  string
	Events       *EventBus
	// ResolveLocalID picks the local identity given the one the inventory carries
	ResolveLocalID func(fromInventory string) string
	// InventoryName is recorded in the ledger
	InventoryName string
}

// RunOptions selects which steps of a run execute
type RunOptions struct {
	Trust  bool
	Verify bool
	Render bool
	Record bool
}

// FullRun enables every step
var FullRun = RunOptions{Trust: true, Verify: true, Render: true, Record: true}

// RunReport is everything a run produced
type RunReport struct {
	Record   domain.RunRecord
	Snapshot *domain.MembershipSnapshot
	Plan     *domain.PlanResult
	Trust    *domain.TrustResult
	Checks   []domain.NodeCheck
	Rendered []render.Rendered
}

// Document returns the serializable plan, or nil if planning did not complete
func (r *RunReport) Document() *codec.PlanDocument {
	if r.Snapshot == nil || r.Plan == nil {
		return nil
	}
	return codec.NewPlanDocument(r.Snapshot, r.Plan)
}

// RunService executes configuration runs
type RunService struct {
	deps Deps
}

// NewRunService creates a run service
func NewRunService(deps Deps) (*RunService, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("run service needs an inventory source")
	}
	if deps.QuorumSize == 0 {
		deps.QuorumSize = topology.DefaultQuorumSize
	}
	if deps.Events == nil {
		deps.Events = NewEventBus()
	}
	if deps.ResolveLocalID == nil {
		deps.ResolveLocalID = func(fromInventory string) string { return fromInventory }
	}
	return &RunService{deps: deps}, nil
}

// Events returns the bus progress is published on
func (s *RunService) Events() *EventBus {
	return s.deps.Events
}

// Run performs one configuration run.
//
// The returned error is non-nil only when the run could not produce a plan
// (unreadable inventory, ambiguous topology, invalid quorum size) or a
// required local step failed. Per-node trust failures are reported in the
// report and mark the record as partial.
func (s *RunService) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	report := &RunReport{
		Record: domain.RunRecord{
			StartedAt:    time.Now().UTC(),
			Inventory:    s.deps.InventoryName,
			QuorumTarget: s.deps.QuorumSize,
			TrustSkipped: true,
		},
	}

	s.deps.Events.Publish(Event{Type: EventRunStarted, Payload: opts})

	err := s.run(ctx, opts, report)

	report.Record.FinishedAt = time.Now().UTC()
	switch {
	case err != nil:
		report.Record.Status = domain.RunFailed
		report.Record.Error = err.Error()
	case report.Trust != nil && len(report.Trust.Failures()) > 0,
		len(domain.CheckFailures(report.Checks)) > 0:
		report.Record.Status = domain.RunPartial
	default:
		report.Record.Status = domain.RunSucceeded
	}

	if opts.Record {
		s.finish(ctx, report)
	}

	s.deps.Events.Publish(Event{Type: EventRunCompleted, Payload: report.Record})

	log.Info().
		Str("status", string(report.Record.Status)).
		Dur("duration", report.Record.Duration()).
		Msg("Run complete")

	return report, err
}

func (s *RunService) run(ctx context.Context, opts RunOptions, report *RunReport) error {
	rec := &report.Record

	// Step 1: membership
	var localID string
	err := s.step(1, "Read and classify cluster membership", func() error {
		inv, err := s.deps.Source.Snapshot(ctx)
		if err != nil {
			return err
		}
		localID = s.deps.ResolveLocalID(inv.LocalID)
		rec.LocalID = localID

		snapshot, err := topology.Classify(inv.Entries, s.deps.Classifier)
		if err != nil {
			return err
		}
		report.Snapshot = snapshot
		rec.Coordinator = snapshot.Coordinator().ID
		rec.MembershipSize = snapshot.Size()
		return nil
	})
	if err != nil {
		return err
	}

	// Step 2: replication factor and quorum
	err = s.step(2, "Derive dfs.replication and ZooKeeper quorum", func() error {
		plan, err := topology.Plan(ctx, report.Snapshot, s.deps.QuorumSize)
		if err != nil {
			return err
		}
		report.Plan = plan
		rec.Replication = int(plan.Replication)
		rec.Quorum = plan.Quorum
		if plan.Warning != nil {
			rec.Warning = plan.Warning.String()
			s.deps.Events.Publish(Event{Type: EventQuorumWarning, Payload: *plan.Warning})
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Steps 3 and 5 act from the coordinator only
	coordinator := report.Snapshot.IsCoordinator(localID)
	var kp *keys.KeyPair
	loadKey := func() error {
		if kp != nil {
			return nil
		}
		if s.deps.LoadKey == nil {
			return fmt.Errorf("no key loader configured")
		}
		var err error
		if kp, err = s.deps.LoadKey(localID); err != nil {
			return fmt.Errorf("load key pair: %w", err)
		}
		return nil
	}

	// Step 3: trust
	if opts.Trust && s.deps.Establisher != nil {
		if !coordinator {
			log.Info().
				Str("local_id", localID).
				Msg("STEP 3: Enable passwordless SSH from the coordinator - not the coordinator, nothing to do")
		} else {
			err = s.step(3, "Enable passwordless SSH from the coordinator to every node", func() error {
				if err := loadKey(); err != nil {
					return err
				}

				result, err := s.deps.Establisher.EstablishTrust(ctx, report.Snapshot, localID, kp)
				if err != nil {
					return err
				}
				report.Trust = result
				rec.TrustSkipped = result.Skipped
				rec.Trust = result.Nodes

				if terr := result.Err(); terr != nil {
					log.Warn().Err(terr).Int("failed", len(result.Failures())).Msg("Trust incomplete")
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}

	// Step 4: artifacts
	if opts.Render && s.deps.Materializer != nil {
		err = s.step(4, "Render Hadoop and HBase configuration", func() error {
			rendered, err := s.deps.Materializer.Materialize(ctx, render.Artifacts{
				Snapshot: report.Snapshot,
				Plan:     report.Plan,
				LocalID:  localID,
			})
			report.Rendered = rendered
			for _, r := range rendered {
				if r.Status == render.StatusWritten {
					s.deps.Events.Publish(Event{Type: EventArtifactWritten, Payload: r})
				}
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	// Step 5: key-only login check
	if opts.Verify && s.deps.Verifier != nil && coordinator {
		err = s.step(5, "Verify passwordless SSH to every node", func() error {
			if err := loadKey(); err != nil {
				return err
			}

			checks, err := s.deps.Verifier.Verify(ctx, report.Snapshot, kp)
			if err != nil {
				return err
			}
			report.Checks = checks

			if cerr := domain.CheckErr(checks); cerr != nil {
				log.Warn().Err(cerr).Int("failed", len(domain.CheckFailures(checks))).Msg("Verification incomplete")
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// step wraps fn with the start/complete log lines and events
func (s *RunService) step(n int, name string, fn func() error) error {
	payload := map[string]interface{}{"step": n, "name": name}

	log.Info().Msgf("STEP %d: %s started", n, name)
	s.deps.Events.Publish(Event{Type: EventStepStarted, Payload: payload})

	start := time.Now()
	if err := fn(); err != nil {
		log.Error().Err(err).Msgf("STEP %d: %s failed", n, name)
		return fmt.Errorf("step %d (%s): %w", n, name, err)
	}

	log.Info().Dur("took", time.Since(start)).Msgf("STEP %d: %s completed", n, name)
	s.deps.Events.Publish(Event{Type: EventStepCompleted, Payload: payload})
	return nil
}

// finish records the run in the ledger and metrics. Failures here are logged
// and never change the run outcome.
func (s *RunService) finish(ctx context.Context, report *RunReport) {
	if s.deps.Ledger != nil {
		// Recorded even when ctx is cancelled
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if _, err := s.deps.Ledger.RecordRun(recordCtx, &report.Record); err != nil {
			log.Error().Err(err).Msg("Failed to record run")
		}
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveRun(&report.Record)
		if s.deps.MetricsPath != "" {
			if err := s.deps.Metrics.WriteTextfile(s.deps.MetricsPath); err != nil {
				log.Error().Err(err).Msg("Failed to write metrics")
			}
		}
	}
}

// IsTopologyError reports whether err came from classification
func IsTopologyError(err error) bool {
	return errors.Is(err, domain.ErrNoCoordinator) ||
		errors.Is(err, domain.ErrAmbiguousTopology) ||
		errors.Is(err, domain.ErrInvalidMembership)
}
