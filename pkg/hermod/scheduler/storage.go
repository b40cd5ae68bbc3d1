// storage.go persists cron jobs in the shared hermod.db "cron_jobs" table.
package scheduler

import (
	"database/sql"
	"fmt"
	"time"
)

// Job is one scheduled command, executed through the engine.
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Command   string     `json:"command"`
	Enabled   bool       `json:"enabled"`
	LastRun   *time.Time `json:"last_run"`
	NextRun   *time.Time `json:"next_run"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int        `json:"run_count"`
	CreatedAt time.Time  `json:"created_at"`
}

// JobStorage persists jobs across restarts.
type JobStorage interface {
	Save(job *Job) error
	Delete(id string) error
	LoadAll() ([]*Job, error)
}

// SQLiteJobStorage is JobStorage backed by the shared database. The
// "cron_jobs" table must already exist (created by store.Open).
type SQLiteJobStorage struct {
	db *sql.DB
}

// NewSQLiteJobStorage creates a SQLite-backed job storage using the shared DB.
func NewSQLiteJobStorage(db *sql.DB) *SQLiteJobStorage {
	return &SQLiteJobStorage{db: db}
}

// Save persists a job (insert or update).
func (s *SQLiteJobStorage) Save(job *Job) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO cron_jobs
			(id, name, schedule, command, enabled, last_run, next_run,
			 last_error, run_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Name,
		job.Schedule,
		job.Command,
		boolToInt(job.Enabled),
		nullTime(job.LastRun),
		nullTime(job.NextRun),
		job.LastError,
		job.RunCount,
		job.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save job %q: %w", job.ID, err)
	}
	return nil
}

// Delete removes a job by ID.
func (s *SQLiteJobStorage) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job %q: %w", id, err)
	}
	return nil
}

// LoadAll reads all persisted jobs, newest first.
func (s *SQLiteJobStorage) LoadAll() ([]*Job, error) {
	rows, err := s.db.Query(`
		SELECT id, name, schedule, command, enabled, last_run, next_run,
		       last_error, run_count, created_at
		FROM cron_jobs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			j                Job
			enabled          int
			lastRun, nextRun sql.NullString
			createdAt        string
		)
		if err := rows.Scan(
			&j.ID, &j.Name, &j.Schedule, &j.Command, &enabled,
			&lastRun, &nextRun, &j.LastError, &j.RunCount, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		j.Enabled = enabled != 0
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.LastRun = parseNullTime(lastRun)
		j.NextRun = parseNullTime(nextRun)
		jobs = append(jobs, &j)
	}

	return jobs, rows.Err()
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
