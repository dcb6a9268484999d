package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/metrics"
	"taskmarket/internal/model"
	"taskmarket/internal/repository"
)

// PaymentService is the payment ledger.
type PaymentService interface {
	// Pay settles a submitted task for its owning buyer. At most one
	// concurrent caller succeeds; the rest fail with ErrInvalidState.
	Pay(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Payment, error)
}

type paymentService struct {
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	payments repository.PaymentRepository
	log      logrus.FieldLogger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	payments repository.PaymentRepository,
	log logrus.FieldLogger,
) PaymentService {
	return &paymentService{
		tasks:    tasks,
		projects: projects,
		payments: payments,
		log:      log,
	}
}

func (s *paymentService) Pay(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Payment, error) {
	if err := requireRole(actor, model.RoleBuyer); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotFound, "find task")
	}
	if task.Status != model.TaskStatusSubmitted {
		return nil, apperrors.ErrTaskNotReadyForPayment
	}

	if _, err := s.projects.FindOwned(ctx, task.ProjectID, actor.ID); err != nil {
		return nil, notFound(err, apperrors.ErrNotProjectOwner, "find project")
	}

	if !task.HoursSpent.Valid || !task.HoursSpent.Decimal.IsPositive() {
		return nil, apperrors.ErrInvalidHours
	}

	payment := &model.Payment{
		TaskID:  task.ID,
		BuyerID: actor.ID,
		Amount:  task.Amount(),
		Status:  model.PaymentStatusCompleted,
	}

	// The guarded update inside Settle is what serializes concurrent payers.
	if err := s.payments.Settle(ctx, payment, actor.ID); err != nil {
		if errors.Is(err, apperrors.ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	metrics.RecordTransition(string(model.TaskStatusSubmitted), string(model.TaskStatusPaid))
	metrics.RecordPayment(payment.Amount)
	s.log.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"actor_id":   actor.ID,
		"payment_id": payment.ID,
		"amount":     payment.Amount.String(),
	}).Info("task paid")
	return payment, nil
}
