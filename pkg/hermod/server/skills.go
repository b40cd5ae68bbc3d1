// skills.go serves the skill CRUD surface.
package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jholhewres/hermod/pkg/hermod/store"
)

type skillRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Enabled     *bool  `json:"enabled"`
}

func (s *Server) handleListSkills(c echo.Context) error {
	skills, err := s.store.ListSkills()
	if err != nil {
		s.logger.Error("list skills failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list skills")
	}
	return c.JSON(http.StatusOK, skills)
}

func (s *Server) handleGetSkill(c echo.Context) error {
	skill, err := s.store.GetSkill(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrSkillNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "skill not found")
		}
		s.logger.Error("get skill failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load skill")
	}
	return c.JSON(http.StatusOK, skill)
}

func (s *Server) handleCreateSkill(c echo.Context) error {
	var req skillRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	skill, err := s.store.CreateSkill(req.Name, req.Description, req.Content, enabled)
	if err != nil {
		s.logger.Error("create skill failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create skill")
	}
	return c.JSON(http.StatusCreated, skill)
}

func (s *Server) handleUpdateSkill(c echo.Context) error {
	var req skillRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	skill, err := s.store.UpdateSkill(c.Param("id"), req.Name, req.Description, req.Content, enabled)
	if err != nil {
		if errors.Is(err, store.ErrSkillNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "skill not found")
		}
		s.logger.Error("update skill failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update skill")
	}
	return c.JSON(http.StatusOK, skill)
}

func (s *Server) handleDeleteSkill(c echo.Context) error {
	if err := s.store.DeleteSkill(c.Param("id")); err != nil {
		if errors.Is(err, store.ErrSkillNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "skill not found")
		}
		s.logger.Error("delete skill failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete skill")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Skill deleted successfully"})
}
