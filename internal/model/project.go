package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is a buyer-owned container of tasks.
type Project struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	BuyerID     uuid.UUID `json:"buyer_id" gorm:"type:char(36);not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Buyer User `json:"-" gorm:"foreignKey:BuyerID"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
