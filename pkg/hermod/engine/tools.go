// tools.go manages the registry of callable tools and dispatches completed
// tool calls from the model to their handlers.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultToolTimeout is the maximum time a single tool execution can take.
const DefaultToolTimeout = 30 * time.Second

// ToolHandlerFunc is the signature for tool execution handlers.
// Receives parsed arguments and returns the result or an error.
type ToolHandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolDefinition is an OpenAI-compatible tool definition for function calling.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a callable function exposed to the model.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// registeredTool bundles a tool definition with its handler.
type registeredTool struct {
	Definition ToolDefinition
	Handler    ToolHandlerFunc
}

// ToolExecutor manages tool registration and dispatches tool calls.
type ToolExecutor struct {
	tools   map[string]*registeredTool
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewToolExecutor creates a new empty tool executor.
func NewToolExecutor(logger *slog.Logger) *ToolExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolExecutor{
		tools:   make(map[string]*registeredTool),
		timeout: DefaultToolTimeout,
		logger:  logger.With("component", "tool_executor"),
	}
}

// Register adds a tool with its definition and handler.
// If a tool with the same name already exists, it is overwritten.
func (e *ToolExecutor) Register(def ToolDefinition, handler ToolHandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tools[def.Function.Name] = &registeredTool{
		Definition: def,
		Handler:    handler,
	}

	e.logger.Debug("tool registered", "name", def.Function.Name)
}

// Definitions returns the catalogue sent to the model with each request.
func (e *ToolExecutor) Definitions() []ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(e.tools))
	for _, t := range e.tools {
		defs = append(defs, t.Definition)
	}
	return defs
}

// Execute runs the named tool with the serialized argument payload and
// returns its output rendered as a string. Failures come back as errors;
// callers decide whether they are stream-fatal (they are not).
func (e *ToolExecutor) Execute(ctx context.Context, name, argsJSON string) (string, error) {
	e.mu.RLock()
	tool, ok := e.tools[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("parse arguments for %q: %w", name, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	if err != nil {
		e.logger.Warn("tool execution failed",
			"tool", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return "", err
	}

	e.logger.Info("tool executed",
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch v := result.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), nil
		}
		return string(data), nil
	}
}
