// Package audit records the history of stage runs in a SQLite database.
//
// Run identifiers and timestamps live here and never in stage outputs, so
// that the outputs themselves stay byte-identical across repeated runs.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// Run states.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	error       TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_stage_started ON runs(stage, started_at);
`

// Store is a handle on an audit database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Record is one row of the runs table.
type Record struct {
	ID         string
	Stage      string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Error      string
	Details    json.RawMessage
}

// Open opens (creating if needed) the audit database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("audit.path", "must not be empty", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open audit store %s", path)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create audit schema")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is an in-progress stage run.
type Run struct {
	store *Store
	ID    string
	Stage string
}

// Begin records the start of a run of stage.
func (s *Store) Begin(ctx context.Context, stage string) (*Run, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		id, stage, StatusRunning, s.now().UnixMilli())
	if err != nil {
		return nil, errors.Wrapf(err, "record start of %s", stage)
	}
	return &Run{store: s, ID: id, Stage: stage}, nil
}

// Finish closes the run. A nil runErr marks it succeeded; details, when
// non-nil, is stored as JSON (typically the ledger entry or the metrics).
func (r *Run) Finish(ctx context.Context, runErr error, details any) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	var payload []byte
	if details != nil {
		var err error
		if payload, err = json.Marshal(details); err != nil {
			return errors.Wrap(err, "encode run details")
		}
	}
	res, err := r.store.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error = ?, details = ? WHERE id = ?`,
		status, r.store.now().UnixMilli(), msg, string(payload), r.ID)
	if err != nil {
		return errors.Wrapf(err, "record end of run %s", r.ID)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errors.Newf("audit: run %s not found", r.ID)
	}
	return nil
}

// List returns the runs of stage in start order, or every run when stage
// is empty.
func (s *Store) List(ctx context.Context, stage string) ([]Record, error) {
	query := `SELECT id, stage, status, started_at, finished_at, error, details FROM runs`
	var args []any
	if stage != "" {
		query += ` WHERE stage = ?`
		args = append(args, stage)
	}
	query += ` ORDER BY started_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query audit runs")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec      Record
			started  int64
			finished sql.NullInt64
			details  string
		)
		if err := rows.Scan(&rec.ID, &rec.Stage, &rec.Status, &started, &finished, &rec.Error, &details); err != nil {
			return nil, errors.Wrap(err, "scan audit run")
		}
		rec.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			rec.FinishedAt = time.UnixMilli(finished.Int64)
		}
		if details != "" {
			rec.Details = json.RawMessage(details)
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate audit runs")
}
