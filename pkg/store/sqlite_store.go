package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store plus RunLog on a SQLite database. In
// addition to phase records it keeps run history and an append-only
// event log across invocations.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the database at path, enables WAL mode and
// runs migrations. The returned store is ready for use.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, &Error{Op: "open", Err: fmt.Errorf("database path is required")}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &Error{Op: "open", Err: err}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, &Error{Op: "migrate", Err: err}
	}
	return s, nil
}

// migrate applies the embedded schema migrations.
func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Get returns the record for (phase, resourceKey).
func (s *SQLiteStore) Get(ctx context.Context, phase, resourceKey string) (Record, bool, error) {
	query := `
		SELECT phase, resource_key, status, reason, attempts, updated_at
		FROM phase_records
		WHERE phase = ? AND resource_key = ?
	`

	var rec Record
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx, query, phase, resourceKey).Scan(
		&rec.Phase,
		&rec.ResourceKey,
		&rec.Status,
		&reason,
		&rec.Attempts,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, &Error{Op: "get", Err: err}
	}

	rec.Reason = reason.String
	return rec, true, nil
}

// Put upserts a record.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	if err := rec.Status.Validate(); err != nil {
		return &Error{Op: "put", Err: err}
	}

	query := `
		INSERT INTO phase_records (phase, resource_key, status, reason, attempts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (phase, resource_key) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.Phase,
		rec.ResourceKey,
		rec.Status,
		nullable(rec.Reason),
		rec.Attempts,
		rec.UpdatedAt,
	)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

// Delete removes a record, if present.
func (s *SQLiteStore) Delete(ctx context.Context, phase, resourceKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM phase_records WHERE phase = ? AND resource_key = ?`,
		phase, resourceKey)
	if err != nil {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// Snapshot returns all records ordered by phase then resource key.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]Record, error) {
	query := `
		SELECT phase, resource_key, status, reason, attempts, updated_at
		FROM phase_records
		ORDER BY phase, resource_key
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &Error{Op: "snapshot", Err: err}
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var rec Record
		var reason sql.NullString
		if err := rows.Scan(&rec.Phase, &rec.ResourceKey, &rec.Status, &reason, &rec.Attempts, &rec.UpdatedAt); err != nil {
			return nil, &Error{Op: "snapshot", Err: err}
		}
		rec.Reason = reason.String
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "snapshot", Err: err}
	}
	return recs, nil
}

// CreateRun records the start of a pipeline run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO runs (id, requested_phase, status, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.RequestedPhase,
		run.Status,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
	)
	if err != nil {
		return &Error{Op: "create run", Err: err}
	}
	return nil
}

// CompleteRun marks a run finished with a terminal status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id, status string, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, status, errMsg, now, id)
	if err != nil {
		return &Error{Op: "complete run", Err: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return &Error{Op: "complete run", Err: err}
	}
	if rows == 0 {
		return &Error{Op: "complete run", Err: fmt.Errorf("run not found: %s", id)}
	}
	return nil
}

// AppendEvent appends an entry to the event log.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev Event) error {
	query := `
		INSERT INTO events (run_id, phase, resource_key, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.RunID,
		nullable(ev.Phase),
		nullable(ev.ResourceKey),
		ev.Level,
		ev.Message,
		ev.Timestamp,
	)
	if err != nil {
		return &Error{Op: "append event", Err: err}
	}
	return nil
}

// ListRuns returns run history, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, requested_phase, status, started_at, completed_at, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, &Error{Op: "list runs", Err: err}
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.RequestedPhase, &run.Status, &run.StartedAt, &run.CompletedAt, &run.Error); err != nil {
			return nil, &Error{Op: "list runs", Err: err}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list runs", Err: err}
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
