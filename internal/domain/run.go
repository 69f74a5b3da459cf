package domain

import "time"

// RunStatus summarizes how a configuration run ended
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	// RunPartial means planning and rendering completed but some trust targets failed
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// RunRecord is the ledger entry for one configuration run
type RunRecord struct {
	ID             int64       `json:"id" yaml:"id"`
	StartedAt      time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time   `json:"finished_at" yaml:"finished_at"`
	Inventory      string      `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	LocalID        string      `json:"local_id" yaml:"local_id"`
	Coordinator    string      `json:"coordinator,omitempty" yaml:"coordinator,omitempty"`
	MembershipSize int         `json:"membership_size" yaml:"membership_size"`
	Replication    int         `json:"replication" yaml:"replication"`
	Quorum         QuorumSet   `json:"quorum,omitempty" yaml:"quorum,omitempty"`
	QuorumTarget   int         `json:"quorum_target" yaml:"quorum_target"`
	Warning        string      `json:"warning,omitempty" yaml:"warning,omitempty"`
	TrustSkipped   bool        `json:"trust_skipped" yaml:"trust_skipped"`
	Status         RunStatus   `json:"status" yaml:"status"`
	Error          string      `json:"error,omitempty" yaml:"error,omitempty"`
	Trust          []NodeTrust `json:"trust,omitempty" yaml:"trust,omitempty"`
}

// Duration returns the wall time of the run
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
