// client.go implements the streaming LLM client for chat completions with
// function calling / tool use support.
// Uses the OpenAI-compatible API format, which works with OpenAI, OpenRouter,
// Anthropic proxies, Ollama, and any compatible endpoint.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// LLMClient handles communication with the LLM provider API.
type LLMClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientConfig carries the provider settings for NewLLMClient.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// NewLLMClient creates a new LLM client. Returns an error when the API key
// is missing so callers get a typed signal instead of a dead client.
func NewLLMClient(cfg ClientConfig, logger *slog.Logger) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not configured; set HERMOD_API_KEY or engine.api_key")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &LLMClient{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		logger: logger.With("component", "llm"),
	}, nil
}

// ---------- Wire Types (OpenAI-compatible) ----------

// chatMessage represents a message in the OpenAI chat format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI-compatible streaming chat completions request.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Stream      bool             `json:"stream"`
	Temperature float64          `json:"temperature,omitempty"`
}

// streamChunk is one SSE data payload from a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// openStream sends a streaming chat completion request and returns the
// response body for SSE consumption. Non-200 statuses are read and folded
// into the returned error.
func (c *LLMClient) openStream(ctx context.Context, messages []chatMessage, tools []ToolDefinition) (io.ReadCloser, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.temperature,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("opening completion stream",
		"model", c.model,
		"messages", len(messages),
		"tools", len(tools),
		"endpoint", endpoint,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Error("API error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return resp.Body, nil
}

// scanStream reads SSE lines from body and invokes emit for each parsed
// chunk until the stream ends, "[DONE]" arrives, or emit returns false.
func scanStream(body io.Reader, emit func(streamChunk) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				return nil
			}
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip malformed keep-alive noise; a broken provider stream
			// still terminates via scanner error or [DONE].
			continue
		}
		if !emit(chunk) {
			return nil
		}
	}
	return scanner.Err()
}

// buildMessages assembles the wire messages: optional system prompt, the
// stored history verbatim, then the new user message.
func buildMessages(systemPrompt string, history []store.ChatMessage, userMessage string) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})
	return messages
}
