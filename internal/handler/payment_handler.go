package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmarket/internal/errors"
	"taskmarket/internal/service"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Pay godoc
// @Summary Pay for a submitted task
// @Description Settles hourly_rate x hours_spent and moves the task to paid.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param task_id path string true "Task ID"
// @Success 200 {object} model.Payment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /payments/{task_id} [post]
func (h *PaymentHandler) Pay(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "task_id", errors.ErrTaskNotFound)
	if err != nil {
		return err
	}

	payment, err := h.paymentService.Pay(c.Request().Context(), actor, taskID)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, payment)
}
