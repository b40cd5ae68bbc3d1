// adapter.go drives one completion stream: it turns the provider's SSE
// chunks into typed fragments, executes the tool named by a completed call
// before resuming, and never lets a failure escape past the fragment
// channel.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// Engine is the capability consumed by the relay: a (history, message)
// pair becomes a lazy, finite fragment sequence. The channel is closed
// when the sequence ends; an abnormal end is signalled by a single
// FragmentError as the final fragment.
type Engine interface {
	Stream(ctx context.Context, history []store.ChatMessage, userMessage string) <-chan Fragment

	// Ready reports whether the engine can serve requests.
	Ready() bool
}

// Adapter is the production Engine backed by an OpenAI-compatible provider.
type Adapter struct {
	client *LLMClient
	tools  *ToolExecutor
	logger *slog.Logger

	// SystemPrompt, when set, supplies the system context for each
	// request. Evaluated per call so skill changes apply immediately.
	SystemPrompt func() string
}

// NewAdapter builds the production engine. Fails when the underlying
// client cannot be constructed (missing credentials); callers should fall
// back to NewUnavailable so the relay still answers with typed errors.
func NewAdapter(cfg ClientConfig, tools *ToolExecutor, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := NewLLMClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = NewToolExecutor(logger)
	}

	return &Adapter{
		client: client,
		tools:  tools,
		logger: logger.With("component", "engine"),
	}, nil
}

// Tools exposes the adapter's tool executor (for the /api/tools catalogue
// and for registering built-ins).
func (a *Adapter) Tools() *ToolExecutor {
	return a.tools
}

// Ready always reports true for a constructed adapter.
func (a *Adapter) Ready() bool {
	return true
}

// Stream opens a completion stream for the given context window. All
// failures, including transport errors, terminate the sequence with a
// single FragmentError; the channel is always closed.
func (a *Adapter) Stream(ctx context.Context, history []store.ChatMessage, userMessage string) <-chan Fragment {
	out := make(chan Fragment)

	go func() {
		defer close(out)

		systemPrompt := ""
		if a.SystemPrompt != nil {
			systemPrompt = a.SystemPrompt()
		}
		messages := buildMessages(systemPrompt, history, userMessage)
		tools := a.tools.Definitions()

		body, err := a.client.openStream(ctx, messages, tools)
		if err != nil {
			send(ctx, out, errorFragment(fmt.Sprintf("Error during chat: %v", err)))
			return
		}
		defer body.Close()

		// The adapter folds its own accumulator so it knows the complete
		// name/arguments payload when the model signals a tool call. The
		// relay folds the same fragments independently for persistence.
		acc := NewAccumulator()

		scanErr := scanStream(body, func(chunk streamChunk) bool {
			if chunk.Error != nil {
				// Terminal: nothing after a provider error reaches the
				// consumer.
				send(ctx, out, errorFragment("Error during chat: "+chunk.Error.Message))
				return false
			}
			if len(chunk.Choices) == 0 {
				return true
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				f := textFragment(choice.Delta.Content)
				acc.Fold(f)
				if !send(ctx, out, f) {
					return false
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				f := Fragment{
					Kind:      FragmentToolCallDelta,
					CallID:    tc.ID,
					NameDelta: tc.Function.Name,
					ArgsDelta: tc.Function.Arguments,
				}
				acc.Fold(f)
				if !send(ctx, out, f) {
					return false
				}
			}

			if choice.FinishReason == "tool_calls" {
				call := acc.Fold(Fragment{Kind: FragmentToolCallDone})
				if call == nil {
					return true
				}
				if !send(ctx, out, Fragment{Kind: FragmentToolCallDone}) {
					return false
				}
				return a.runTool(ctx, out, call)
			}

			return true
		})
		if scanErr != nil && ctx.Err() == nil {
			send(ctx, out, errorFragment(fmt.Sprintf("Error during chat: %v", scanErr)))
		}
	}()

	return out
}

// runTool executes a completed call and emits its result. Tool failures
// are reported as a result string and the stream continues; they are
// never stream-fatal.
func (a *Adapter) runTool(ctx context.Context, out chan<- Fragment, call *store.ToolCall) bool {
	result, err := a.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
	}
	return send(ctx, out, toolResultFragment(call.Name, result))
}

// Complete runs a one-shot, history-free turn and returns the final text.
// Used by the scheduler to run job commands through the engine.
func (a *Adapter) Complete(ctx context.Context, prompt string) (string, error) {
	acc := NewAccumulator()
	for f := range a.Stream(ctx, nil, prompt) {
		if f.Kind == FragmentError {
			return "", fmt.Errorf("%s", f.Err)
		}
		acc.Fold(f)
	}
	text, _, _ := acc.Finish()
	return text, ctx.Err()
}

// send delivers a fragment unless the consumer stopped pulling. Returns
// false when the context is done, which unwinds the producing goroutine.
func send(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// unavailable is the Engine used when adapter construction failed at
// startup: every stream terminates immediately with one error fragment,
// so clients get a typed signal instead of a silently-limited daemon.
type unavailable struct {
	reason string
}

// NewUnavailable wraps a construction failure as an Engine.
func NewUnavailable(err error) Engine {
	reason := "engine not initialized; check server configuration"
	if err != nil {
		reason = fmt.Sprintf("engine not initialized: %v", err)
	}
	return &unavailable{reason: reason}
}

func (u *unavailable) Ready() bool {
	return false
}

func (u *unavailable) Stream(ctx context.Context, _ []store.ChatMessage, _ string) <-chan Fragment {
	out := make(chan Fragment, 1)
	out <- errorFragment(u.reason)
	close(out)
	return out
}
