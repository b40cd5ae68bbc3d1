// builtins.go registers the tools the daemon itself provides. Most tools
// come from the external agent runtime; these few only need the store.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// RegisterBuiltins adds the daemon's built-in tools to the executor.
func RegisterBuiltins(exec *ToolExecutor, st *store.Store) {
	exec.Register(ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        "get_time",
			Description: "Get the current date and time",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return time.Now().Format(time.RFC1123), nil
	})

	exec.Register(ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        "session_search",
			Description: "Search past chat sessions by title",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Text to match against session titles"}
				},
				"required": ["query"]
			}`),
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("query is required")
		}

		sessions, err := st.ListSessions(10, 0, query)
		if err != nil {
			return nil, err
		}
		if len(sessions) == 0 {
			return "no matching sessions", nil
		}

		var b strings.Builder
		for _, s := range sessions {
			fmt.Fprintf(&b, "%s\t%s\t%d messages\n", s.ID, s.Title, s.MessageCount)
		}
		return b.String(), nil
	})
}
