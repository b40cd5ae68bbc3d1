package store

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(filepath.Join(t.TempDir(), "hermod.db"), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndGetSession(t *testing.T) {
	st := testStore(t)

	sess, err := st.CreateSession("")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("empty session id")
	}
	if sess.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", sess.Title, DefaultTitle)
	}

	got, err := st.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != DefaultTitle {
		t.Errorf("round-trip Title = %q", got.Title)
	}

	if _, err := st.GetSession("no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession(unknown) = %v, want ErrSessionNotFound", err)
	}
}

func TestAppendMessageAndHistoryOrder(t *testing.T) {
	st := testStore(t)
	sess, err := st.CreateSession("test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	turns := []struct{ role, content string }{
		{"user", "first"},
		{"assistant", "second"},
		{"user", "third"},
		{"assistant", "fourth"},
	}
	for _, turn := range turns {
		if err := st.AppendMessage(sess.ID, turn.role, turn.content, nil); err != nil {
			t.Fatalf("AppendMessage(%q): %v", turn.content, err)
		}
	}

	history, err := st.History(sess.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != len(turns) {
		t.Fatalf("history len = %d, want %d", len(history), len(turns))
	}
	for i, turn := range turns {
		if history[i].Role != turn.role || history[i].Content != turn.content {
			t.Errorf("history[%d] = %+v, want %+v", i, history[i], turn)
		}
	}
}

func TestHistoryOrderSameSecondFractions(t *testing.T) {
	st := testStore(t)
	sess, _ := st.CreateSession("test")

	// Fractional parts of differing digit counts within the same second
	// must still sort by actual creation time on the TEXT column.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	turns := []struct {
		content string
		at      time.Time
	}{
		{"first", base.Add(123400000 * time.Nanosecond)},
		{"second", base.Add(123450000 * time.Nanosecond)},
	}
	for _, turn := range turns {
		if _, err := st.db.Exec(
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, 'user', ?, ?)`,
			sess.ID, turn.content, fmtTime(turn.at),
		); err != nil {
			t.Fatalf("insert %q: %v", turn.content, err)
		}
	}

	history, err := st.History(sess.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[0].Content != "first" || history[1].Content != "second" {
		t.Errorf("history order = [%q, %q], want [first, second]",
			history[0].Content, history[1].Content)
	}
}

func TestFmtTimeSortsLexicographically(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(1 * time.Nanosecond),
		base.Add(123400000 * time.Nanosecond),
		base.Add(123450000 * time.Nanosecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		a, b := fmtTime(times[i-1]), fmtTime(times[i])
		if !(a < b) {
			t.Errorf("fmtTime order inverted: %q >= %q", a, b)
		}
		if got := parseTime(b); !got.Equal(times[i]) {
			t.Errorf("parseTime(%q) = %v, want %v", b, got, times[i])
		}
	}
}

func TestAppendMessageUnknownSession(t *testing.T) {
	st := testStore(t)
	err := st.AppendMessage("ghost", "user", "hello", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("AppendMessage(unknown) = %v, want ErrSessionNotFound", err)
	}
}

func TestAppendMessageTouchesSession(t *testing.T) {
	st := testStore(t)
	sess, _ := st.CreateSession("test")

	if err := st.AppendMessage(sess.ID, "user", "hi", nil); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := st.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UpdatedAt.Before(sess.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", sess.UpdatedAt, got.UpdatedAt)
	}
}

func TestMessagesToolCallsRoundTrip(t *testing.T) {
	st := testStore(t)
	sess, _ := st.CreateSession("test")

	calls := []ToolCall{{ID: "call_1", Name: "get_time", Arguments: `{"timezone":"UTC"}`}}
	if err := st.AppendMessage(sess.ID, "assistant", "checking", calls); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	msgs, err := st.Messages(sess.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages len = %d, want 1", len(msgs))
	}
	if len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].Name != "get_time" {
		t.Errorf("ToolCalls = %+v", msgs[0].ToolCalls)
	}

	// History flattens to role/content; tool calls stay out of engine context.
	history, err := st.History(sess.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Content != "checking" {
		t.Errorf("history = %+v", history)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	st := testStore(t)
	sess, _ := st.CreateSession("doomed")
	st.AppendMessage(sess.ID, "user", "hello", nil)
	st.AppendMessage(sess.ID, "assistant", "hi", nil)

	if err := st.DeleteSession(sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	var count int
	if err := st.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sess.ID,
	).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("orphaned messages after delete: %d", count)
	}

	if err := st.DeleteSession(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second delete = %v, want ErrSessionNotFound", err)
	}
}

func TestAutoTitle(t *testing.T) {
	st := testStore(t)

	t.Run("derives from first user message", func(t *testing.T) {
		sess, _ := st.CreateSession("")
		st.AppendMessage(sess.ID, "user", "What is the weather in Lisbon?", nil)
		if err := st.AutoTitle(sess.ID); err != nil {
			t.Fatalf("AutoTitle: %v", err)
		}
		got, _ := st.GetSession(sess.ID)
		if got.Title != "What is the weather in Lisbon?" {
			t.Errorf("Title = %q", got.Title)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		sess, _ := st.CreateSession("")
		st.AppendMessage(sess.ID, "user", "first question", nil)
		st.AutoTitle(sess.ID)
		st.AppendMessage(sess.ID, "user", "second question", nil)
		if err := st.AutoTitle(sess.ID); err != nil {
			t.Fatalf("AutoTitle: %v", err)
		}
		got, _ := st.GetSession(sess.ID)
		if got.Title != "first question" {
			t.Errorf("Title = %q, want first question", got.Title)
		}
	})

	t.Run("never overwrites a custom title", func(t *testing.T) {
		sess, _ := st.CreateSession("My Project Notes")
		st.AppendMessage(sess.ID, "user", "something unrelated", nil)
		if err := st.AutoTitle(sess.ID); err != nil {
			t.Fatalf("AutoTitle: %v", err)
		}
		got, _ := st.GetSession(sess.ID)
		if got.Title != "My Project Notes" {
			t.Errorf("Title = %q, custom title lost", got.Title)
		}
	})

	t.Run("truncates long messages", func(t *testing.T) {
		sess, _ := st.CreateSession("")
		long := strings.Repeat("a", 100)
		st.AppendMessage(sess.ID, "user", long, nil)
		if err := st.AutoTitle(sess.ID); err != nil {
			t.Fatalf("AutoTitle: %v", err)
		}
		got, _ := st.GetSession(sess.ID)
		want := strings.Repeat("a", 60) + "..."
		if got.Title != want {
			t.Errorf("Title = %q (len %d), want %d runes plus ellipsis", got.Title, len(got.Title), 60)
		}
	})

	t.Run("no user message yet", func(t *testing.T) {
		sess, _ := st.CreateSession("")
		if err := st.AutoTitle(sess.ID); err != nil {
			t.Fatalf("AutoTitle on empty session: %v", err)
		}
		got, _ := st.GetSession(sess.ID)
		if got.Title != DefaultTitle {
			t.Errorf("Title = %q, want placeholder", got.Title)
		}
	})
}

func TestUpdateTitle(t *testing.T) {
	st := testStore(t)
	sess, _ := st.CreateSession("")

	if err := st.UpdateTitle(sess.ID, "Renamed"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	got, _ := st.GetSession(sess.ID)
	if got.Title != "Renamed" {
		t.Errorf("Title = %q", got.Title)
	}

	if err := st.UpdateTitle("ghost", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("UpdateTitle(unknown) = %v, want ErrSessionNotFound", err)
	}
}

func TestListSessions(t *testing.T) {
	st := testStore(t)

	a, _ := st.CreateSession("alpha report")
	b, _ := st.CreateSession("beta notes")
	st.AppendMessage(a.ID, "user", "hi", nil)
	st.AppendMessage(a.ID, "assistant", "hello", nil)

	all, err := st.ListSessions(50, 0, "")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	// The appended session was touched last, so it sorts first.
	if all[0].ID != a.ID {
		t.Errorf("first = %s, want most recently active %s", all[0].ID, a.ID)
	}
	if all[0].MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", all[0].MessageCount)
	}

	matched, err := st.ListSessions(50, 0, "beta")
	if err != nil {
		t.Fatalf("ListSessions(search): %v", err)
	}
	if len(matched) != 1 || matched[0].ID != b.ID {
		t.Errorf("search result = %+v, want only beta", matched)
	}
}
