package repository

import (
	"context"
	"errors"
	"time"

	"clustercfg/internal/domain"
)

// ErrNotFound is returned when a requested run does not exist
var ErrNotFound = errors.New("not found")

// RunLedger records configuration runs and their per-node trust outcomes
type RunLedger interface {
	// RecordRun stores run and its trust outcomes, returning the assigned ID
	RecordRun(ctx context.Context, run *domain.RunRecord) (int64, error)
	// ListRuns returns the newest runs first, without trust outcomes
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	// GetRun returns one run with its trust outcomes
	GetRun(ctx context.Context, id int64) (*domain.RunRecord, error)
	// TrustOutcomes returns the per-node outcomes of a run in address order
	TrustOutcomes(ctx context.Context, runID int64) ([]domain.NodeTrust, error)
	// LastEstablished returns when trust to nodeID was last newly created
	LastEstablished(ctx context.Context, nodeID string) (time.Time, bool, error)

	Close() error
}
