package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskmarket/internal/auth"
	"taskmarket/internal/errors"
	"taskmarket/internal/model"
	"taskmarket/internal/service"
)

// UserHandler bundles HTTP handlers.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ProfileResponse is the public view of a user.
type ProfileResponse struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func profileOf(u *model.User) ProfileResponse {
	return ProfileResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Me godoc
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, ok := auth.ActorFrom(c)
	if !ok {
		return respondError(errors.ErrInvalidToken)
	}
	return c.JSON(http.StatusOK, profileOf(user))
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ProfileResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	out := make([]ProfileResponse, 0, len(users))
	for i := range users {
		out = append(out, profileOf(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}
