package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the status of a payment.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Payment records the settlement of one task by its buyer.
type Payment struct {
	ID        uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	TaskID    uuid.UUID       `json:"task_id" gorm:"type:char(36);not null;uniqueIndex"`
	BuyerID   uuid.UUID       `json:"buyer_id" gorm:"type:char(36);not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Status    PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'completed';index"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Relations
	Task  Task `json:"-" gorm:"foreignKey:TaskID"`
	Buyer User `json:"-" gorm:"foreignKey:BuyerID"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
