package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/model"
)

// TaskTransition is one guarded lifecycle step.
// Fields are the extra columns written together with the new status.
type TaskTransition struct {
	TaskID  uuid.UUID
	ActorID uuid.UUID
	From    model.TaskStatus
	To      model.TaskStatus
	Fields  map[string]interface{}
}

// StatusCount is the number of tasks in one status.
type StatusCount struct {
	Status model.TaskStatus
	Count  int64
}

// TaskRepository defines task persistence operations.
type TaskRepository interface {
	// Create persists a todo task and its creation event.
	Create(ctx context.Context, task *model.Task, actorID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	// FindAssigned finds the task only if it is assigned to developerID.
	FindAssigned(ctx context.Context, id, developerID uuid.UUID) (*model.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Task, error)
	ListByProjectAndDeveloper(ctx context.Context, projectID, developerID uuid.UUID) ([]model.Task, error)
	ListByDeveloper(ctx context.Context, developerID uuid.UUID) ([]model.Task, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Task, error)
	// Transition applies t only if the task is still in t.From and records the event.
	// It returns apperrors.ErrTaskStateChanged when another writer got there first.
	Transition(ctx context.Context, t TaskTransition) error
	ListEvents(ctx context.Context, taskID uuid.UUID) ([]model.TaskEvent, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	SumPaidHours(ctx context.Context) (decimal.Decimal, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task, actorID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return createEvent(tx, task.ID, actorID, "", task.Status)
	})
}

func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindAssigned(ctx context.Context, id, developerID uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Where("id = ? AND assigned_developer = ?", id, developerID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).Where("project_id = ?", projectID))
}

func (r *taskRepository) ListByProjectAndDeveloper(ctx context.Context, projectID, developerID uuid.UUID) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).Where("project_id = ? AND assigned_developer = ?", projectID, developerID))
}

func (r *taskRepository) ListByDeveloper(ctx context.Context, developerID uuid.UUID) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).Where("assigned_developer = ?", developerID))
}

func (r *taskRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Task, error) {
	return r.list(r.db.WithContext(ctx).
		Select("tasks.*").
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("projects.buyer_id = ?", buyerID))
}

func (r *taskRepository) list(q *gorm.DB) ([]model.Task, error) {
	var tasks []model.Task
	if err := q.Order("tasks.created_at ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) Transition(ctx context.Context, t TaskTransition) error {
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("illegal task transition %s -> %s", t.From, t.To)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionTx(tx, t)
	})
}

// transitionTx is the conditional update shared by every lifecycle step.
func transitionTx(tx *gorm.DB, t TaskTransition) error {
	fields := make(map[string]interface{}, len(t.Fields)+1)
	for k, v := range t.Fields {
		fields[k] = v
	}
	fields["status"] = t.To

	result := tx.Model(&model.Task{}).
		Where("id = ? AND status = ?", t.TaskID, t.From).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update task status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTaskStateChanged
	}
	return createEvent(tx, t.TaskID, t.ActorID, t.From, t.To)
}

func createEvent(tx *gorm.DB, taskID, actorID uuid.UUID, from, to model.TaskStatus) error {
	event := &model.TaskEvent{
		TaskID:     taskID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
	}
	if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
		return fmt.Errorf("create task event: %w", err)
	}
	return nil
}

func (r *taskRepository) ListEvents(ctx context.Context, taskID uuid.UUID) ([]model.TaskEvent, error) {
	var events []model.TaskEvent
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *taskRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).Count(&n).Error
	return n, err
}

func (r *taskRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make([]StatusCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, StatusCount{Status: model.TaskStatus(row.Status), Count: row.Count})
	}
	return counts, nil
}

func (r *taskRepository) SumPaidHours(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ?", model.TaskStatusPaid).
		Select("SUM(hours_spent)").
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
