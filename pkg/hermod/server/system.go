// system.go serves the operational surface: logs, config, providers,
// the tool catalogue, and cron jobs.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jholhewres/hermod/pkg/hermod/scheduler"
)

// configKeys are the override keys accepted by PUT /api/config.
var configKeys = map[string]bool{
	"model":       true,
	"base_url":    true,
	"temperature": true,
	"provider":    true,
}

func (s *Server) handleLogs(c echo.Context) error {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 50)
	if pageSize > 100 {
		pageSize = 100
	}
	level := strings.ToUpper(c.QueryParam("level"))

	logs, total, err := s.store.QueryLogs(page, pageSize, level)
	if err != nil {
		s.logger.Error("query logs failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load logs")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"logs":      logs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleGetConfig(c echo.Context) error {
	values, err := s.store.ConfigValues()
	if err != nil {
		s.logger.Error("load config failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load config")
	}

	// Base values come from the effective engine config; saved overrides
	// shadow them.
	model := s.engineCfg.Model
	baseURL := s.engineCfg.BaseURL
	temperature := strconv.FormatFloat(s.engineCfg.Temperature, 'g', -1, 64)
	if v := values["model"]; v != "" {
		model = v
	}
	if v := values["base_url"]; v != "" {
		baseURL = v
	}
	if v := values["temperature"]; v != "" {
		temperature = v
	}

	resp := map[string]any{
		"model":       model,
		"base_url":    baseURL,
		"temperature": temperature,
		"provider":    values["provider"],
		// The key itself never leaves the server.
		"api_key": maskKey(s.engineCfg.APIKey),
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdateConfig(c echo.Context) error {
	var updates map[string]string
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	for key, value := range updates {
		if !configKeys[key] || value == "" {
			continue
		}
		if err := s.store.SetConfigValue(key, value); err != nil {
			s.logger.Error("save config failed", "key", key, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "could not save config")
		}
	}

	return s.handleGetConfig(c)
}

func (s *Server) handleProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"providers": []map[string]string{
			{
				"id":          "openai",
				"name":        "OpenAI",
				"base_url":    "https://api.openai.com/v1",
				"description": "OpenAI chat completions API",
			},
			{
				"id":          "openrouter",
				"name":        "OpenRouter",
				"base_url":    "https://openrouter.ai/api/v1",
				"description": "Access to multiple LLM providers through OpenRouter",
			},
			{
				"id":          "ollama",
				"name":        "Ollama",
				"base_url":    "http://localhost:11434/v1",
				"description": "Local models via Ollama",
			},
		},
	})
}

func (s *Server) handleTools(c echo.Context) error {
	if s.tools == nil {
		return c.JSON(http.StatusOK, map[string]any{"tools": []any{}})
	}

	defs := s.tools.Definitions()
	tools := make([]map[string]string, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, map[string]string{
			"name":        def.Function.Name,
			"description": def.Function.Description,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"tools": tools})
}

// ---------- Cron jobs ----------

func (s *Server) handleListJobs(c echo.Context) error {
	if s.sched == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler disabled")
	}
	return c.JSON(http.StatusOK, s.sched.List())
}

func (s *Server) handleCreateJob(c echo.Context) error {
	if s.sched == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler disabled")
	}

	var req struct {
		Name     string `json:"name"`
		Schedule string `json:"schedule"`
		Command  string `json:"command"`
		Enabled  *bool  `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Schedule == "" || req.Command == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, schedule and command are required")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	job, err := s.sched.Add(req.Name, req.Schedule, req.Command, enabled)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, job)
}

func (s *Server) handleToggleJob(c echo.Context) error {
	if s.sched == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler disabled")
	}

	job, err := s.sched.Toggle(c.Param("id"))
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cron job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not toggle job")
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleDeleteJob(c echo.Context) error {
	if s.sched == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler disabled")
	}

	if err := s.sched.Remove(c.Param("id")); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cron job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete job")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Cron job deleted successfully"})
}

// maskKey hides all but the edges of a credential.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
