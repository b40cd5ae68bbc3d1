// config.go implements the config override table: key/value rows saved
// through /api/config that shadow values from the YAML config.
package store

import (
	"fmt"
	"time"
)

// ConfigValues returns all override rows as a map.
func (s *Store) ConfigValues() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

// SetConfigValue upserts one override row.
func (s *Store) SetConfigValue(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, fmtTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}
