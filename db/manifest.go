package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/bindgen/errors"
	"github.com/teranos/bindgen/logger"
)

// Run statuses stored in the runs table.
const (
	RunRunning  = "running"
	RunOK       = "ok"
	RunFailed   = "failed"
	RunCanceled = "canceled"
)

// Entry is one emitted artifact as last recorded.
type Entry struct {
	Path      string
	Hash      string
	Size      int64
	Unit      string
	RunID     string
	UpdatedAt time.Time
}

// Run is one generate invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Units      int
	Failed     int
}

// Manifest records artifacts per run. It is safe for concurrent use to the
// extent *sql.DB is.
type Manifest struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewManifest wraps an open, migrated database.
func NewManifest(db *sql.DB, log *zap.SugaredLogger) *Manifest {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manifest{db: db, log: log}
}

// OpenManifest opens (creating if needed) the manifest at path, including
// its parent directory.
func OpenManifest(path string, log *zap.SugaredLogger) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrapf(err, "failed to create manifest directory for %s", path)
	}
	db, err := OpenWithMigrations(path, log)
	if err != nil {
		return nil, err
	}
	return NewManifest(db, log), nil
}

// Close closes the underlying database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func wrap(err error, format string, args ...interface{}) error {
	if IsDatabaseClosed(err) {
		// keep the driver error for %+v but make errors.Is see the sentinel
		err = errors.WithSecondaryError(ErrDatabaseClosed, err)
	}
	return errors.Wrapf(err, format, args...)
}

// BeginRun registers a run. Artifacts can only be recorded against a
// registered run.
func (m *Manifest) BeginRun(ctx context.Context, id string, started time.Time) error {
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)",
		id, formatTime(started), RunRunning)
	if err != nil {
		return wrap(err, "begin run %s", id)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (m *Manifest) FinishRun(ctx context.Context, r Run) error {
	res, err := m.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, status = ?, units = ?, failed = ? WHERE id = ?",
		formatTime(r.FinishedAt), r.Status, r.Units, r.Failed, r.ID)
	if err != nil {
		return wrap(err, "finish run %s", r.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Newf("finish run %s: run was never started", r.ID)
	}
	return nil
}

// Record replaces the artifacts of unit with entries, all in one
// transaction. Artifacts another unit already claimed in the same run are
// left alone.
func (m *Manifest) Record(ctx context.Context, runID, unit string, entries []Entry) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err, "record unit %s", unit)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stale, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE unit = ? AND run_id != ?", unit, runID)
	if err != nil {
		return wrap(err, "clear artifacts of unit %s", unit)
	}

	now := formatTime(time.Now())
	for _, e := range entries {
		_, err = tx.ExecContext(ctx, `INSERT INTO artifacts (path, hash, size, unit, run_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, size = excluded.size,
    unit = excluded.unit, run_id = excluded.run_id, updated_at = excluded.updated_at`,
			e.Path, e.Hash, e.Size, unit, runID, now)
		if err != nil {
			return wrap(err, "record artifact %s", e.Path)
		}
	}

	if err = tx.Commit(); err != nil {
		return wrap(err, "commit artifacts of unit %s", unit)
	}

	removed, _ := stale.RowsAffected()
	logger.Trace(m.log, "Artifacts recorded",
		logger.FieldUnit, unit,
		logger.FieldRunID, runID,
		logger.FieldOutputs, len(entries),
		"removed", removed)
	return nil
}

const entryColumns = "path, hash, size, unit, run_id, updated_at"

func scanEntry(s interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var updated sql.NullString
	if err := s.Scan(&e.Path, &e.Hash, &e.Size, &e.Unit, &e.RunID, &updated); err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = parseTime(updated)
	return e, nil
}

// Entries returns every recorded artifact ordered by path. A non-empty unit
// restricts the result to that unit.
func (m *Manifest) Entries(ctx context.Context, unit string) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM artifacts"
	var args []any
	if unit != "" {
		query += " WHERE unit = ?"
		args = append(args, unit)
	}
	query += " ORDER BY path"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "list artifacts")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrap(err, "scan artifact")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "list artifacts")
	}
	return out, nil
}

// Lookup returns the artifact recorded for path.
func (m *Manifest) Lookup(ctx context.Context, path string) (Entry, bool, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM artifacts WHERE path = ?", path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, wrap(err, "look up artifact %s", path)
	}
	return e, true, nil
}

// LastRun returns the most recently started run.
func (m *Manifest) LastRun(ctx context.Context) (Run, bool, error) {
	var r Run
	var started, finished sql.NullString
	err := m.db.QueryRowContext(ctx,
		"SELECT id, started_at, finished_at, status, units, failed FROM runs ORDER BY started_at DESC LIMIT 1",
	).Scan(&r.ID, &started, &finished, &r.Status, &r.Units, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, wrap(err, "read last run")
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, true, nil
}
