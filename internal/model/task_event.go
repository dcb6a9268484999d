package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskEvent records one lifecycle transition of a task.
// It is written in the same transaction as the status change.
type TaskEvent struct {
	ID         uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	TaskID     uuid.UUID  `json:"task_id" gorm:"type:char(36);not null;index"`
	ActorID    uuid.UUID  `json:"actor_id" gorm:"type:char(36);not null"`
	FromStatus TaskStatus `json:"from_status,omitempty" gorm:"type:varchar(20)"`
	ToStatus   TaskStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time  `json:"created_at"`

	// Relations
	Task Task `json:"-" gorm:"foreignKey:TaskID"`
}

// BeforeCreate sets UUID before creating the record.
func (e *TaskEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
