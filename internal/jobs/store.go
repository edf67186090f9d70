package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hdx/internal/config"
	"hdx/internal/services"
)

// Store persists submitted jobs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultListLimit        = 50

	// Fixed width so submitted_at orders correctly as text.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the ledger at cfg.Jobs.LedgerPath.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "open", "config is required", nil)
	}
	return OpenPath(cfg.Jobs.LedgerPath)
}

// OpenPath opens the ledger database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "open", "ledger path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a submitted job. SubmittedAt defaults to now.
func (s *Store) Record(ctx context.Context, job Job) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(job.JobID) == "" {
		return services.Wrap(services.ErrValidation, "jobs", "record", "job id is required", nil)
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	args := job.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode job args: %w", err)
	}
	return retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `INSERT INTO render_jobs
			(job_id, title, command, source_path, destination_path, entity_path, args_json, submitted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(job_id) DO UPDATE SET
				title = excluded.title,
				command = excluded.command,
				source_path = excluded.source_path,
				destination_path = excluded.destination_path,
				entity_path = excluded.entity_path,
				args_json = excluded.args_json,
				submitted_at = excluded.submitted_at`,
			job.JobID, job.Title, job.Command, job.Source, job.Destination, job.EntityPath,
			string(argsJSON), job.SubmittedAt.UTC().Format(timestampLayout))
		return execErr
	})
}

// List returns the most recent jobs first. A non-positive limit uses the default.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, job_id, title, command, source_path, destination_path,
		entity_path, args_json, submitted_at
		FROM render_jobs ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Get returns the job with the given service id.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT id, job_id, title, command, source_path, destination_path,
		entity_path, args_json, submitted_at
		FROM render_jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %q", jobID), nil)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var (
		job       Job
		argsJSON  string
		submitted string
	)
	if err := row.Scan(&job.ID, &job.JobID, &job.Title, &job.Command, &job.Source, &job.Destination,
		&job.EntityPath, &argsJSON, &submitted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &job.Args); err != nil {
			return Job{}, fmt.Errorf("decode job args: %w", err)
		}
	}
	ts, err := time.Parse(timestampLayout, submitted)
	if err != nil {
		return Job{}, fmt.Errorf("parse submitted_at: %w", err)
	}
	job.SubmittedAt = ts
	return job, nil
}
