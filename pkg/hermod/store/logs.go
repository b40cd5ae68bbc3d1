// logs.go persists application log records and serves the paginated
// queries behind the /api/logs viewer.
package store

import (
	"fmt"
	"time"
)

// LogEntry is one persisted log record.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Logger    string    `json:"logger"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertLog records one log row. It deliberately does not log on failure:
// the slog handler that calls it would recurse.
func (s *Store) InsertLog(level, logger, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO logs (level, logger, message, created_at) VALUES (?, ?, ?, ?)`,
		level, logger, message, fmtTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// QueryLogs returns one page of log records, newest first, with the total
// row count for the active filter. Level filters exactly when non-empty.
func (s *Store) QueryLogs(page, pageSize int, level string) ([]LogEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	where := ""
	args := []any{}
	if level != "" {
		where = "WHERE level = ?"
		args = append(args, level)
	}

	var total int
	if err := s.db.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM logs %s`, where), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT id, level, logger, message, created_at
			FROM logs %s
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?`, where),
		append(args, pageSize, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var (
			e         LogEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Level, &e.Logger, &e.Message, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan log: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}
