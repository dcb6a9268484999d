package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskmarket/internal/model"
)

// PaymentRepository defines payment persistence operations.
type PaymentRepository interface {
	// Settle moves the task from submitted to paid and records payment in one transaction.
	// It returns apperrors.ErrTaskStateChanged if the task is no longer submitted.
	Settle(ctx context.Context, payment *model.Payment, actorID uuid.UUID) error
	FindByTaskID(ctx context.Context, taskID uuid.UUID) (*model.Payment, error)
	SumCompleted(ctx context.Context) (decimal.Decimal, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Settle(ctx context.Context, payment *model.Payment, actorID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := transitionTx(tx, TaskTransition{
			TaskID:  payment.TaskID,
			ActorID: actorID,
			From:    model.TaskStatusSubmitted,
			To:      model.TaskStatusPaid,
		})
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
}

func (r *paymentRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) SumCompleted(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("status = ?", model.PaymentStatusCompleted).
		Select("SUM(amount)").
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
