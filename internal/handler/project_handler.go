package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmarket/internal/service"
)

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	projectService service.ProjectService
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// CreateProjectRequest represents a project creation request.
type CreateProjectRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
}

// Create godoc
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateProjectRequest true "Project data"
// @Success 200 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects [post]
func (h *ProjectHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req CreateProjectRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	project, err := h.projectService.Create(c.Request().Context(), actor, req.Title, req.Description)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, project)
}

// ListMine godoc
// @Summary List projects owned by the caller
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Project
// @Failure 401 {object} errors.ErrorResponse
// @Router /projects/mine [get]
func (h *ProjectHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	projects, err := h.projectService.ListMine(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, projects)
}
