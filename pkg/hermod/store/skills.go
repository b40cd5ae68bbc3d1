// skills.go implements CRUD for skill rows: named prompt snippets managed
// through the REST API and injected into the engine's system context.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Skill is one skill row.
type Skill struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateSkill inserts a new skill and returns it.
func (s *Store) CreateSkill(name, description, content string, enabled bool) (*Skill, error) {
	now := time.Now().UTC()
	skill := &Skill{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Content:     content,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.Exec(
		`INSERT INTO skills (id, name, description, content, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		skill.ID, name, description, content, boolToInt(enabled), fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("create skill: %w", err)
	}
	return skill, nil
}

// GetSkill returns a skill by id, or ErrSkillNotFound.
func (s *Store) GetSkill(id string) (*Skill, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, content, enabled, created_at, updated_at
		 FROM skills WHERE id = ?`, id,
	)
	return scanSkill(row)
}

// ListSkills returns all skills, newest first.
func (s *Store) ListSkills() ([]Skill, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, content, enabled, created_at, updated_at
		 FROM skills ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	skills := []Skill{}
	for rows.Next() {
		skill, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, *skill)
	}
	return skills, rows.Err()
}

// UpdateSkill updates the mutable fields of a skill.
func (s *Store) UpdateSkill(id, name, description, content string, enabled bool) (*Skill, error) {
	res, err := s.db.Exec(
		`UPDATE skills SET name = ?, description = ?, content = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		name, description, content, boolToInt(enabled), fmtTime(time.Now().UTC()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update skill %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, ErrSkillNotFound
	}
	return s.GetSkill(id)
}

// DeleteSkill removes a skill by id.
func (s *Store) DeleteSkill(id string) error {
	res, err := s.db.Exec(`DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete skill %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSkillNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSkill(row scanner) (*Skill, error) {
	var (
		skill              Skill
		enabled            int
		createdAt, updated string
	)
	err := row.Scan(&skill.ID, &skill.Name, &skill.Description, &skill.Content,
		&enabled, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrSkillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan skill: %w", err)
	}

	skill.Enabled = enabled != 0
	skill.CreatedAt = parseTime(createdAt)
	skill.UpdatedAt = parseTime(updated)
	return &skill, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
