package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaskStatus represents a task lifecycle state.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusPaid       TaskStatus = "paid"
)

// Lifecycle is strictly forward: todo -> in_progress -> submitted -> paid.
var taskTransitions = map[TaskStatus]TaskStatus{
	TaskStatusTodo:       TaskStatusInProgress,
	TaskStatusInProgress: TaskStatusSubmitted,
	TaskStatusSubmitted:  TaskStatusPaid,
}

// Valid reports whether s is a known lifecycle state.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusSubmitted, TaskStatusPaid:
		return true
	}
	return false
}

// Next returns the only state reachable from s.
func (s TaskStatus) Next() (TaskStatus, bool) {
	next, ok := taskTransitions[s]
	return next, ok
}

// CanTransitionTo reports whether moving from s to target is a legal step.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	next, ok := s.Next()
	return ok && next == target
}

// Task is a unit of paid work assigned to one developer under a project.
type Task struct {
	ID                  uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	Title               string              `json:"title" gorm:"size:255;not null"`
	Description         string              `json:"description" gorm:"type:text;not null"`
	ProjectID           uuid.UUID           `json:"project_id" gorm:"type:char(36);not null;index"`
	AssignedDeveloperID uuid.UUID           `json:"assigned_developer" gorm:"column:assigned_developer;type:char(36);not null;index"`
	HourlyRate          decimal.Decimal     `json:"hourly_rate" gorm:"type:decimal(20,2);not null"`
	Status              TaskStatus          `json:"status" gorm:"type:varchar(20);not null;default:'todo';index"`
	HoursSpent          decimal.NullDecimal `json:"hours_spent" gorm:"type:decimal(10,2)"`
	SolutionFile        *string             `json:"solution_file" gorm:"size:512"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`

	// Relations
	Project   Project `json:"-" gorm:"foreignKey:ProjectID"`
	Developer User    `json:"-" gorm:"foreignKey:AssignedDeveloperID"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Redacted returns a copy of the task with the solution file withheld
// unless the task has been paid.
func (t Task) Redacted() Task {
	if t.Status != TaskStatusPaid {
		t.SolutionFile = nil
	}
	return t
}

// Amount is the payable total for a submitted task.
func (t *Task) Amount() decimal.Decimal {
	if !t.HoursSpent.Valid {
		return decimal.Zero
	}
	return t.HourlyRate.Mul(t.HoursSpent.Decimal)
}

// Upper bounds of the decimal(20,2) and decimal(10,2) columns.
var (
	maxHourlyRate = decimal.New(1, 18)
	maxHoursSpent = decimal.New(1, 8)
)

// ValidHourlyRate reports whether rate is positive and storable without rounding.
func ValidHourlyRate(rate decimal.Decimal) bool {
	return fitsCents(rate, maxHourlyRate)
}

// ValidHoursSpent reports whether hours is positive and storable without rounding.
func ValidHoursSpent(hours decimal.Decimal) bool {
	return fitsCents(hours, maxHoursSpent)
}

func fitsCents(d, limit decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(limit) && d.Equal(d.Round(2))
}
