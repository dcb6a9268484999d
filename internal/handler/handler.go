package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskmarket/internal/auth"
	"taskmarket/internal/errors"
	"taskmarket/internal/model"
)

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError converts a domain error into an echo HTTP error with the standard body.
// The original error is kept as the internal cause for the request log.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: message, Code: code})
}

// bindAndValidate binds the request into req and runs the echo validator on it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_BODY")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_FAILED")
	}
	return nil
}

// actorFrom returns the actor the authorization gate resolved for this request.
func actorFrom(c echo.Context) (model.Actor, error) {
	user, ok := auth.ActorFrom(c)
	if !ok {
		return model.Actor{}, respondError(errors.ErrInvalidToken)
	}
	return user.Actor(), nil
}

// pathID parses a UUID path parameter; malformed ids are reported as notFound.
func pathID(c echo.Context, name string, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, respondError(notFound)
	}
	return id, nil
}
