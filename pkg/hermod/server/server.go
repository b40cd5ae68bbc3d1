// Package server wires the REST API and the streaming relay into one echo
// server: health and login are open, everything else sits behind the
// bearer-token middleware, and /ws carries the chat relay.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jholhewres/hermod/pkg/hermod/auth"
	"github.com/jholhewres/hermod/pkg/hermod/config"
	"github.com/jholhewres/hermod/pkg/hermod/engine"
	"github.com/jholhewres/hermod/pkg/hermod/relay"
	"github.com/jholhewres/hermod/pkg/hermod/scheduler"
	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// Server is the daemon's HTTP surface.
type Server struct {
	cfg       config.ServerConfig
	engineCfg config.EngineConfig
	echo      *echo.Echo
	store     *store.Store
	engine    engine.Engine
	auth      *auth.Service
	relay     *relay.Handler
	sched     *scheduler.Scheduler
	tools     *engine.ToolExecutor
	logger    *slog.Logger
}

// New assembles the server. engineCfg is the effective engine config
// served (masked) by /api/config. sched and tools may be nil (scheduler
// disabled, engine unavailable); the corresponding routes then answer
// with 503.
func New(cfg config.ServerConfig, engineCfg config.EngineConfig, st *store.Store, eng engine.Engine, authSvc *auth.Service, sched *scheduler.Scheduler, tools *engine.ToolExecutor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		engineCfg: engineCfg,
		store:     st,
		engine:    eng,
		auth:      authSvc,
		sched:     sched,
		tools:     tools,
		logger:    logger.With("component", "server"),
		relay:     relay.NewHandler(st, eng, authSvc, cfg.AllowedOrigins, logger),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.corsOrigins(),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	// Open routes.
	e.GET("/api/health", s.handleHealth)
	e.POST("/api/auth/login", s.handleLogin)

	// The relay authenticates in-band via its token query parameter.
	e.GET("/ws", s.relay.HandleWS)

	// Protected routes.
	api := e.Group("/api", s.requireToken)
	api.GET("/auth/verify", s.handleVerify)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.PUT("/sessions/:id", s.handleRenameSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.POST("/sessions/:id/export", s.handleExportSession)

	api.GET("/skills", s.handleListSkills)
	api.POST("/skills", s.handleCreateSkill)
	api.GET("/skills/:id", s.handleGetSkill)
	api.PUT("/skills/:id", s.handleUpdateSkill)
	api.DELETE("/skills/:id", s.handleDeleteSkill)

	api.GET("/logs", s.handleLogs)

	api.GET("/config", s.handleGetConfig)
	api.PUT("/config", s.handleUpdateConfig)
	api.GET("/config/providers", s.handleProviders)

	api.GET("/tools", s.handleTools)

	api.GET("/cron/jobs", s.handleListJobs)
	api.POST("/cron/jobs", s.handleCreateJob)
	api.PUT("/cron/jobs/:id/toggle", s.handleToggleJob)
	api.DELETE("/cron/jobs/:id", s.handleDeleteJob)

	s.echo = e
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("server starting", "address", s.cfg.Address)
		if err := s.echo.Start(s.cfg.Address); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Warn("server shutdown", "error", err)
	}
	s.logger.Info("server stopped")
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// requireToken validates the Authorization bearer token.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := s.auth.Verify(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		c.Set("claims", claims)
		return next(c)
	}
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

// handleHealth reports daemon and engine readiness.
func (s *Server) handleHealth(c echo.Context) error {
	engineState := "ready"
	if s.engine == nil || !s.engine.Ready() {
		engineState = "unavailable"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"engine": engineState,
	})
}

// handleLogin exchanges the configured password for a bearer token.
func (s *Server) handleLogin(c echo.Context) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	token, err := s.auth.Login(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// handleVerify confirms the presented token is valid.
func (s *Server) handleVerify(c echo.Context) error {
	claims, _ := c.Get("claims").(*auth.Claims)
	resp := map[string]any{"valid": true}
	if claims != nil {
		resp["user"] = claims.Subject
	}
	return c.JSON(http.StatusOK, resp)
}
