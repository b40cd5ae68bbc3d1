// sessions.go serves the session CRUD surface: list/search, detail,
// rename, delete, export.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// sessionDetail is a session with its full transcript.
type sessionDetail struct {
	store.Session
	Messages []store.Message `json:"messages"`
}

func (s *Server) handleListSessions(c echo.Context) error {
	limit := intQuery(c, "limit", 50)
	if limit > 100 {
		limit = 100
	}
	offset := intQuery(c, "offset", 0)
	search := c.QueryParam("search")

	sessions, err := s.store.ListSessions(limit, offset, search)
	if err != nil {
		s.logger.Error("list sessions failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list sessions")
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c echo.Context) error {
	detail, err := s.sessionDetail(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleRenameSession(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	if err := s.store.UpdateTitle(c.Param("id"), req.Title); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		s.logger.Error("rename session failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not rename session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session updated successfully"})
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.store.DeleteSession(c.Param("id")); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		s.logger.Error("delete session failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete session")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

func (s *Server) handleExportSession(c echo.Context) error {
	detail, err := s.sessionDetail(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":  detail.ID,
		"title":       detail.Title,
		"messages":    detail.Messages,
		"exported_at": time.Now().UTC(),
	})
}

func (s *Server) sessionDetail(id string) (*sessionDetail, error) {
	sess, err := s.store.GetSession(id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		s.logger.Error("get session failed", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "could not load session")
	}

	msgs, err := s.store.Messages(id)
	if err != nil {
		s.logger.Error("get messages failed", "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "could not load messages")
	}

	return &sessionDetail{Session: *sess, Messages: msgs}, nil
}

func intQuery(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
