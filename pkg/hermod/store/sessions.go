// sessions.go implements the session lifecycle: creation, transactional
// message appends, ordered history, title management, and deletion.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is a chat session row.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionSummary is a session row plus its message count, for listings.
type SessionSummary struct {
	Session
	MessageCount int `json:"message_count"`
}

// ToolCall is one tool invocation recorded on an assistant message.
// Arguments stay serialized text; they are opaque to the store.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one transcript entry. Messages are immutable once persisted;
// only deleting the whole session removes them.
type Message struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"session_id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChatMessage is the minimal role/content pair handed to the engine as
// conversation context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateSession inserts a new session with a fresh id. An empty title gets
// the "New Chat" placeholder that AutoTitle later replaces.
func (s *Store) CreateSession(title string) (*Session, error) {
	if title == "" {
		title = DefaultTitle
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Title, fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session created", "session_id", sess.ID)
	return sess, nil
}

// GetSession returns a single session row, or ErrSessionNotFound.
func (s *Store) GetSession(id string) (*Session, error) {
	var (
		sess               Session
		createdAt, updated string
	)
	err := s.db.QueryRow(
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Title, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}

	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updated)
	return &sess, nil
}

// ListSessions returns session summaries ordered by most recent activity.
// A non-empty search filters titles with a LIKE match.
func (s *Store) ListSessions(limit, offset int, search string) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT s.id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON s.id = m.session_id`
	args := []any{}
	if search != "" {
		query += ` WHERE s.title LIKE ?`
		args = append(args, "%"+search+"%")
	}
	query += `
		GROUP BY s.id
		ORDER BY s.updated_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := []SessionSummary{}
	for rows.Next() {
		var (
			sum                SessionSummary
			createdAt, updated string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &createdAt, &updated, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.CreatedAt = parseTime(createdAt)
		sum.UpdatedAt = parseTime(updated)
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// AppendMessage records one transcript entry and bumps the session's
// updated_at in the same transaction. Both succeed or both fail; a crash
// never leaves a half-written turn visible to other readers.
func (s *Store) AppendMessage(sessionID, role, content string, toolCalls []ToolCall) error {
	var callsJSON sql.NullString
	if len(toolCalls) > 0 {
		data, err := json.Marshal(toolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		callsJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return ErrSessionNotFound
		}
		return fmt.Errorf("check session %q: %w", sessionID, err)
	}

	now := fmtTime(time.Now().UTC())
	if _, err := tx.Exec(
		`INSERT INTO messages (session_id, role, content, tool_calls, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, role, content, callsJSON, now,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Messages returns the full transcript of a session in creation order.
func (s *Store) Messages(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, tool_calls, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			msg       Message
			calls     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &calls, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if calls.Valid && calls.String != "" {
			// Rows with unparseable tool_calls are still returned; the
			// transcript text matters more than a bad serialization.
			if err := json.Unmarshal([]byte(calls.String), &msg.ToolCalls); err != nil {
				s.logger.Warn("bad tool_calls column", "message_id", msg.ID, "error", err)
			}
		}
		msg.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// History returns the session transcript as role/content pairs in creation
// order, used verbatim as engine context.
func (s *Store) History(sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT role, content FROM messages
		 WHERE session_id = ?
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []ChatMessage{}
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history = append(history, m)
	}

	return history, rows.Err()
}

// DeleteSession removes a session and, via the FK cascade, all of its
// messages. Returns ErrSessionNotFound if the id is unknown.
func (s *Store) DeleteSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSessionNotFound
	}

	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// UpdateTitle renames a session. Returns ErrSessionNotFound if unknown.
func (s *Store) UpdateTitle(id, title string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, fmtTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("update title %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// AutoTitle derives a session title from its first user message, truncated
// to TitleMaxLen runes with an ellipsis marker. It only fires while the
// title is still the placeholder, so a title the user set (or a previous
// derivation) is never overwritten, and repeat calls are no-ops.
func (s *Store) AutoTitle(sessionID string) error {
	var content string
	err := s.db.QueryRow(
		`SELECT content FROM messages
		 WHERE session_id = ? AND role = 'user'
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		sessionID,
	).Scan(&content)
	if err == sql.ErrNoRows {
		// No user message yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto title %q: %w", sessionID, err)
	}

	title := truncateTitle(content, s.TitleMaxLen)
	if _, err := s.db.Exec(
		`UPDATE sessions SET title = ? WHERE id = ? AND title = ?`,
		title, sessionID, DefaultTitle,
	); err != nil {
		return fmt.Errorf("set auto title %q: %w", sessionID, err)
	}
	return nil
}

// truncateTitle cuts content to maxLen runes, appending "..." if truncated.
func truncateTitle(content string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 60
	}
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
// RFC3339Nano trims trailing fractional zeros, which breaks TEXT-column
// ORDER BY for times within the same second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
