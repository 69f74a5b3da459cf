package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clustercfg/internal/domain"
	"clustercfg/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.RunLedger using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.RunLedger = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		inventory TEXT,
		local_id TEXT NOT NULL,
		coordinator TEXT,
		membership_size INTEGER NOT NULL DEFAULT 0,
		replication INTEGER NOT NULL DEFAULT 0,
		quorum JSON,
		quorum_target INTEGER NOT NULL DEFAULT 0,
		warning TEXT,
		trust_skipped INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS trust_outcomes (
		run_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		node_id TEXT NOT NULL,
		address TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, node_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_trust_outcomes_node ON trust_outcomes(node_id, state);
	`

	_, err := r.db.Exec(schema)
	return err
}

// RecordRun stores run and its trust outcomes in one transaction
func (r *Repository) RecordRun(ctx context.Context, run *domain.RunRecord) (int64, error) {
	quorum, err := marshalToNull(run.Quorum)
	if err != nil {
		return 0, fmt.Errorf("marshal quorum: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, inventory, local_id, coordinator,
			membership_size, replication, quorum, quorum_target, warning,
			trust_skipped, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.StartedAt.UTC(),
		timeToNull(run.FinishedAt),
		stringToNull(run.Inventory),
		run.LocalID,
		stringToNull(run.Coordinator),
		run.MembershipSize,
		run.Replication,
		quorum,
		run.QuorumTarget,
		stringToNull(run.Warning),
		boolToInt(run.TrustSkipped),
		string(run.Status),
		stringToNull(run.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	recordedAt := run.FinishedAt
	if recordedAt.IsZero() {
		recordedAt = run.StartedAt
	}

	for i, nt := range run.Trust {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trust_outcomes (run_id, seq, node_id, address, state, error, duration_ms, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, i, nt.NodeID, nt.Address, string(nt.State),
			stringToNull(nt.ErrorMessage()),
			nt.Duration.Milliseconds(),
			recordedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trust outcome for %s: %w", nt.NodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	return id, nil
}

// ListRuns returns up to limit runs, newest first. A limit below 1 returns all runs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun returns the run with its trust outcomes
func (r *Repository) GetRun(ctx context.Context, id int64) (*domain.RunRecord, error) {
	var row runRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id,
	).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	run.Trust, err = r.TrustOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// TrustOutcomes returns the per-node outcomes recorded for a run
func (r *Repository) TrustOutcomes(ctx context.Context, runID int64) ([]domain.NodeTrust, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT node_id, address, state, error, duration_ms
		FROM trust_outcomes
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trust outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.NodeTrust
	for rows.Next() {
		var (
			nodeID, address, state string
			errMsg                 sql.NullString
			durationMS             int64
		)
		if err := rows.Scan(&nodeID, &address, &state, &errMsg, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan trust outcome: %w", err)
		}

		nt := domain.NodeTrust{
			NodeID:   nodeID,
			Address:  address,
			State:    domain.TrustState(state),
			Duration: time.Duration(durationMS) * time.Millisecond,
		}
		if msg := nullToString(errMsg); msg != "" {
			nt.Err = errors.New(msg)
		}
		outcomes = append(outcomes, nt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trust outcomes: %w", err)
	}

	return outcomes, nil
}

// LastEstablished returns when trust to nodeID was last newly created.
// The bool is false if no run ever appended the key on that node.
func (r *Repository) LastEstablished(ctx context.Context, nodeID string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT recorded_at FROM trust_outcomes
		WHERE node_id = ? AND state = ?
		ORDER BY recorded_at DESC, run_id DESC
		LIMIT 1
	`, nodeID, string(domain.TrustEstablished)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last established: %w", err)
	}
	return at, true, nil
}

// Prune deletes all but the newest keep runs
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative")
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

