package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"taskmarket/internal/errors"
	"taskmarket/internal/service"
)

// TaskHandler handles task lifecycle endpoints.
type TaskHandler struct {
	taskService service.TaskService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	ProjectID         string          `json:"project_id" validate:"required,uuid"`
	Title             string          `json:"title" validate:"required,max=255"`
	Description       string          `json:"description"`
	AssignedDeveloper string          `json:"assigned_developer" validate:"required,uuid"`
	HourlyRate        decimal.Decimal `json:"hourly_rate" swaggertype:"number" example:"50"`
}

// Create godoc
// @Summary Create a task under an owned project
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task data"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.Create(c.Request().Context(), actor, service.CreateTaskInput{
		ProjectID:         uuid.MustParse(req.ProjectID),
		Title:             req.Title,
		Description:       req.Description,
		AssignedDeveloper: uuid.MustParse(req.AssignedDeveloper),
		HourlyRate:        req.HourlyRate,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// ListByProject godoc
// @Summary List tasks of a project
// @Description Admins and the owning buyer see every task; developers see only their own.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {array} model.Task
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks/project/{id} [get]
func (h *TaskHandler) ListByProject(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "id", errors.ErrProjectNotFound)
	if err != nil {
		return err
	}
	tasks, err := h.taskService.ListByProject(c.Request().Context(), actor, projectID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// ListMine godoc
// @Summary List tasks relevant to the caller
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Task
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks/mine [get]
func (h *TaskHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	tasks, err := h.taskService.ListMine(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// Get godoc
// @Summary Get a task
// @Description solution_file is null until the task is paid.
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "id", errors.ErrTaskNotFound)
	if err != nil {
		return err
	}
	task, err := h.taskService.Get(c.Request().Context(), actor, taskID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// Start godoc
// @Summary Start an assigned task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/start [post]
func (h *TaskHandler) Start(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "id", errors.ErrTaskNotFound)
	if err != nil {
		return err
	}
	task, err := h.taskService.Start(c.Request().Context(), actor, taskID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// Submit godoc
// @Summary Submit work for an in-progress task
// @Tags tasks
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param hours_spent formData number true "Hours spent"
// @Param file formData file true "Solution file"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/submit [post]
func (h *TaskHandler) Submit(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "id", errors.ErrTaskNotFound)
	if err != nil {
		return err
	}

	hours, err := decimal.NewFromString(c.FormValue("hours_spent"))
	if err != nil {
		return respondError(errors.ErrInvalidHours)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(errors.ErrSolutionMissing)
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return respondError(fmt.Errorf("read upload: %w", err))
	}

	task, err := h.taskService.Submit(c.Request().Context(), actor, taskID, service.SubmitTaskInput{
		HoursSpent: hours,
		Filename:   fh.Filename,
		Content:    content,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// Solution godoc
// @Summary Download the solution of a paid task
// @Tags tasks
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {file} file
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/solution [get]
func (h *TaskHandler) Solution(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "id", errors.ErrTaskNotFound)
	if err != nil {
		return err
	}
	name, data, err := h.taskService.Solution(c.Request().Context(), actor, taskID)
	if err != nil {
		return respondError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

// Events godoc
// @Summary Lifecycle history of a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {array} model.TaskEvent
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/events [get]
func (h *TaskHandler) Events(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "id", errors.ErrTaskNotFound)
	if err != nil {
		return err
	}
	events, err := h.taskService.History(c.Request().Context(), actor, taskID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, events)
}
