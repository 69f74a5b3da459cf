package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"clustercfg/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeToNull stores the zero time as NULL
func timeToNull(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals a slice to nullable JSON, storing empty as NULL
func marshalToNull(v domain.QuorumSet) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal([]string(v))
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Run Row Scanner
// ============================================================================
//
// Column order must match between runColumns and scanArgs().

// runRow holds all columns from a run query for scanning
type runRow struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     sql.NullTime
	Inventory      sql.NullString
	LocalID        string
	Coordinator    sql.NullString
	MembershipSize int
	Replication    int
	QuorumJSON     sql.NullString
	QuorumTarget   int
	Warning        sql.NullString
	TrustSkipped   int
	Status         string
	Error          sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
func (r *runRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.StartedAt,
		&r.FinishedAt,
		&r.Inventory,
		&r.LocalID,
		&r.Coordinator,
		&r.MembershipSize,
		&r.Replication,
		&r.QuorumJSON,
		&r.QuorumTarget,
		&r.Warning,
		&r.TrustSkipped,
		&r.Status,
		&r.Error,
	}
}

// toDomain converts the scanned row to a domain.RunRecord
func (r *runRow) toDomain() (*domain.RunRecord, error) {
	run := &domain.RunRecord{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		Inventory:      nullToString(r.Inventory),
		LocalID:        r.LocalID,
		Coordinator:    nullToString(r.Coordinator),
		MembershipSize: r.MembershipSize,
		Replication:    r.Replication,
		QuorumTarget:   r.QuorumTarget,
		Warning:        nullToString(r.Warning),
		TrustSkipped:   r.TrustSkipped != 0,
		Status:         domain.RunStatus(r.Status),
		Error:          nullToString(r.Error),
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = r.FinishedAt.Time
	}

	var quorum []string
	if err := unmarshalJSONField(r.QuorumJSON, &quorum); err != nil {
		return nil, fmt.Errorf("unmarshal quorum: %w", err)
	}
	if len(quorum) > 0 {
		run.Quorum = domain.QuorumSet(quorum)
	}

	return run, nil
}

// runColumns is the SELECT column list for run queries
const runColumns = `id, started_at, finished_at, inventory, local_id, coordinator,
	membership_size, replication, quorum, quorum_target, warning,
	trust_skipped, status, error`
