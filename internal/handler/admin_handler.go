package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmarket/internal/service"
)

// AdminHandler serves platform-wide reporting.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Stats godoc
// @Summary Platform statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Stats
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.adminService.Stats(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
