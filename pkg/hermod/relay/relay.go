// Package relay implements the real-time chat streaming relay: one
// WebSocket connection per client, authenticated once, then a strictly
// sequential receive-process-emit loop that forwards engine fragments as
// protocol events and persists each completed turn.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/jholhewres/hermod/pkg/hermod/auth"
	"github.com/jholhewres/hermod/pkg/hermod/engine"
	"github.com/jholhewres/hermod/pkg/hermod/store"
)

const writeTimeout = 10 * time.Second

// TokenVerifier validates the connect-time credential.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Handler owns the WebSocket endpoint. Each accepted connection gets its
// own goroutine; inside a connection everything is sequential.
type Handler struct {
	store    *store.Store
	engine   engine.Engine
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the relay handler. allowedOrigins empty allows all.
func NewHandler(st *store.Store, eng engine.Engine, verifier TokenVerifier, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		store:    st,
		engine:   eng,
		verifier: verifier,
		logger:   logger.With("component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWS upgrades the connection and runs it to completion.
func (h *Handler) HandleWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return err
	}
	defer conn.Close()

	// Authenticate before anything else. Failure closes the connection
	// with a policy-violation code; no per-connection state exists yet.
	token := c.QueryParam("token")
	if token == "" {
		h.reject(conn, "Authentication required")
		return nil
	}
	if _, err := h.verifier.Verify(token); err != nil {
		h.reject(conn, "Invalid or expired token")
		return nil
	}

	h.runConnection(c.Request().Context(), conn)
	return nil
}

// runConnection is the authenticated main loop. A reader goroutine feeds
// frames into a channel and cancels the connection context on disconnect,
// so an in-flight engine stream stops being consumed the moment the
// client goes away. Frames are still processed one at a time.
func (h *Handler) runConnection(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	frames := make(chan []byte)
	go func() {
		defer close(frames)
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read ended", "error", err)
				}
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for data := range frames {
		if err := h.serveTurn(ctx, conn, data); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("turn aborted", "error", err)
			}
			return
		}
	}
}

// serveTurn processes one client request end to end. Recoverable problems
// (bad frame, unknown session, engine error) are reported as error events
// and leave the connection usable; a returned error means the transport is
// gone and the connection should be torn down.
func (h *Handler) serveTurn(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.writeEvent(conn, errorEvent("Invalid JSON format"))
	}
	if req.Message == "" {
		return h.writeEvent(conn, errorEvent("Message is required"))
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := h.store.CreateSession("")
		if err != nil {
			h.logger.Error("create session failed", "error", err)
			return h.writeEvent(conn, errorEvent("Error processing message: could not create session"))
		}
		sessionID = sess.ID
		if err := h.writeEvent(conn, sessionCreatedEvent(sessionID)); err != nil {
			return err
		}
	}

	// Context window for the engine: everything before this turn. The
	// user turn is persisted before the engine is invoked, so a crash
	// mid-stream keeps the user message and loses only the reply.
	history, err := h.store.History(sessionID)
	if err != nil {
		h.logger.Error("history fetch failed", "session_id", sessionID, "error", err)
		return h.writeEvent(conn, errorEvent("Error processing message: could not load history"))
	}

	if err := h.store.AppendMessage(sessionID, "user", req.Message, nil); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return h.writeEvent(conn, errorEvent("Session not found"))
		}
		h.logger.Error("persist user turn failed", "session_id", sessionID, "error", err)
		return h.writeEvent(conn, errorEvent("Error processing message: could not save message"))
	}

	if err := h.store.AutoTitle(sessionID); err != nil {
		// Cosmetic; the turn proceeds.
		h.logger.Warn("auto title failed", "session_id", sessionID, "error", err)
	}

	return h.streamTurn(ctx, conn, sessionID, history, req.Message)
}

// streamTurn consumes the engine's fragment sequence, forwarding events
// in arrival order and folding fragments for persistence.
func (h *Handler) streamTurn(ctx context.Context, conn *websocket.Conn, sessionID string, history []store.ChatMessage, userMessage string) error {
	acc := engine.NewAccumulator()

	for frag := range h.engine.Stream(ctx, history, userMessage) {
		switch frag.Kind {
		case engine.FragmentText:
			acc.Fold(frag)
			if err := h.writeEvent(conn, tokenEvent(frag.Text)); err != nil {
				return err
			}

		case engine.FragmentToolCallDelta:
			acc.Fold(frag)

		case engine.FragmentToolCallDone:
			if call := acc.Fold(frag); call != nil {
				if err := h.writeEvent(conn, toolCallEvent(call.ID, call.Name, call.Arguments)); err != nil {
					return err
				}
			}

		case engine.FragmentToolResult:
			if err := h.writeEvent(conn, toolResultEvent(frag.ToolName, frag.ToolResult)); err != nil {
				return err
			}

		case engine.FragmentError:
			// Terminal: the adapter emits it as the final fragment.
			if err := h.writeEvent(conn, errorEvent(frag.Err)); err != nil {
				return err
			}
		}
	}

	if ctx.Err() != nil {
		// Client went away mid-stream: discard the in-progress turn.
		return ctx.Err()
	}

	text, calls, dangling := acc.Finish()
	if dangling {
		h.logger.Warn("stream ended with unterminated tool call", "session_id", sessionID)
	}

	if text != "" || len(calls) > 0 {
		if err := h.store.AppendMessage(sessionID, "assistant", text, calls); err != nil {
			h.logger.Error("persist assistant turn failed", "session_id", sessionID, "error", err)
			return h.writeEvent(conn, errorEvent("Error processing message: could not save response"))
		}
	}

	return h.writeEvent(conn, doneEvent(sessionID))
}

// writeEvent sends one protocol frame. The connection is written from a
// single goroutine, so no write lock is needed.
func (h *Handler) writeEvent(conn *websocket.Conn, ev Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	return nil
}

// reject reports an authentication failure and closes with a
// policy-violation code before the main loop starts.
func (h *Handler) reject(conn *websocket.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteJSON(errorEvent(message))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
		time.Now().Add(writeTimeout))
}

// originChecker allows all origins when the list is empty, otherwise only
// exact matches.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
