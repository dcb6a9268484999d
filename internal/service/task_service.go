package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/metrics"
	"taskmarket/internal/model"
	"taskmarket/internal/repository"
	"taskmarket/internal/storage"
)

// CreateTaskInput carries the fields a buyer supplies for a new task.
type CreateTaskInput struct {
	ProjectID         uuid.UUID
	Title             string
	Description       string
	AssignedDeveloper uuid.UUID
	HourlyRate        decimal.Decimal
}

// SubmitTaskInput carries a developer's finished work.
type SubmitTaskInput struct {
	HoursSpent decimal.Decimal
	Filename   string
	Content    []byte
}

// TaskService is the task lifecycle engine.
//
// Every task it returns is redacted: SolutionFile is nil unless the task is paid.
type TaskService interface {
	Create(ctx context.Context, actor model.Actor, in CreateTaskInput) (*model.Task, error)
	Start(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Task, error)
	Submit(ctx context.Context, actor model.Actor, taskID uuid.UUID, in SubmitTaskInput) (*model.Task, error)
	ListByProject(ctx context.Context, actor model.Actor, projectID uuid.UUID) ([]model.Task, error)
	ListMine(ctx context.Context, actor model.Actor) ([]model.Task, error)
	Get(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Task, error)
	// Solution returns the stored file of a paid task to a party of that task.
	Solution(ctx context.Context, actor model.Actor, taskID uuid.UUID) (filename string, data []byte, err error)
	History(ctx context.Context, actor model.Actor, taskID uuid.UUID) ([]model.TaskEvent, error)
}

type taskService struct {
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	users    repository.UserRepository
	files    storage.FileStore
	log      logrus.FieldLogger
}

// NewTaskService creates a new task service.
func NewTaskService(
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	users repository.UserRepository,
	files storage.FileStore,
	log logrus.FieldLogger,
) TaskService {
	return &taskService{
		tasks:    tasks,
		projects: projects,
		users:    users,
		files:    files,
		log:      log,
	}
}

func (s *taskService) Create(ctx context.Context, actor model.Actor, in CreateTaskInput) (*model.Task, error) {
	if err := requireRole(actor, model.RoleBuyer); err != nil {
		return nil, err
	}

	if _, err := s.projects.FindOwned(ctx, in.ProjectID, actor.ID); err != nil {
		return nil, notFound(err, apperrors.ErrProjectNotFound, "find project")
	}
	if _, err := s.users.FindByIDAndRole(ctx, in.AssignedDeveloper, model.RoleDeveloper); err != nil {
		return nil, notFound(err, apperrors.ErrDeveloperNotFound, "find developer")
	}
	if !model.ValidHourlyRate(in.HourlyRate) {
		return nil, apperrors.ErrInvalidRate
	}

	task := &model.Task{
		Title:               in.Title,
		Description:         in.Description,
		ProjectID:           in.ProjectID,
		AssignedDeveloperID: in.AssignedDeveloper,
		HourlyRate:          in.HourlyRate,
		Status:              model.TaskStatusTodo,
	}
	if err := s.tasks.Create(ctx, task, actor.ID); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.log.WithFields(logrus.Fields{"task_id": task.ID, "actor_id": actor.ID}).Info("task created")
	redacted := task.Redacted()
	return &redacted, nil
}

func (s *taskService) Start(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.findAssigned(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusTodo {
		return nil, apperrors.ErrTaskNotTodo
	}

	if err := s.transition(ctx, actor, task, model.TaskStatusInProgress, nil); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"task_id": task.ID, "actor_id": actor.ID}).Info("task started")
	redacted := task.Redacted()
	return &redacted, nil
}

func (s *taskService) Submit(ctx context.Context, actor model.Actor, taskID uuid.UUID, in SubmitTaskInput) (*model.Task, error) {
	task, err := s.findAssigned(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusInProgress {
		return nil, apperrors.ErrTaskNotInProgress
	}
	if !model.ValidHoursSpent(in.HoursSpent) {
		return nil, apperrors.ErrInvalidHours
	}
	name := baseName(in.Filename)
	if name == "" || len(in.Content) == 0 {
		return nil, apperrors.ErrSolutionMissing
	}

	stored, err := s.files.Store(ctx, task.ID.String()+"_"+name, in.Content)
	if err != nil {
		return nil, fmt.Errorf("store solution: %w", err)
	}

	hours := decimal.NewNullDecimal(in.HoursSpent)
	err = s.transition(ctx, actor, task, model.TaskStatusSubmitted, map[string]interface{}{
		"hours_spent":   hours,
		"solution_file": stored,
	})
	if err != nil {
		return nil, err
	}
	task.HoursSpent = hours
	task.SolutionFile = &stored

	s.log.WithFields(logrus.Fields{"task_id": task.ID, "actor_id": actor.ID, "hours_spent": hours.Decimal.String()}).Info("task submitted")
	redacted := task.Redacted()
	return &redacted, nil
}

func (s *taskService) ListByProject(ctx context.Context, actor model.Actor, projectID uuid.UUID) ([]model.Task, error) {
	var (
		tasks []model.Task
		err   error
	)
	switch actor.Role {
	case model.RoleAdmin:
		tasks, err = s.tasks.ListByProject(ctx, projectID)
	case model.RoleBuyer:
		if _, ferr := s.projects.FindOwned(ctx, projectID, actor.ID); ferr != nil {
			return nil, notFound(ferr, apperrors.ErrProjectNotFound, "find project")
		}
		tasks, err = s.tasks.ListByProject(ctx, projectID)
	case model.RoleDeveloper:
		tasks, err = s.tasks.ListByProjectAndDeveloper(ctx, projectID, actor.ID)
	default:
		return nil, apperrors.ErrRoleRequired
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return redactAll(tasks), nil
}

func (s *taskService) ListMine(ctx context.Context, actor model.Actor) ([]model.Task, error) {
	var (
		tasks []model.Task
		err   error
	)
	switch actor.Role {
	case model.RoleDeveloper:
		tasks, err = s.tasks.ListByDeveloper(ctx, actor.ID)
	case model.RoleBuyer:
		tasks, err = s.tasks.ListByBuyer(ctx, actor.ID)
	case model.RoleAdmin:
		return []model.Task{}, nil
	default:
		return nil, apperrors.ErrRoleRequired
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return redactAll(tasks), nil
}

func (s *taskService) Get(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotFound, "find task")
	}
	redacted := task.Redacted()
	return &redacted, nil
}

func (s *taskService) Solution(ctx context.Context, actor model.Actor, taskID uuid.UUID) (string, []byte, error) {
	task, err := s.findVisible(ctx, actor, taskID)
	if err != nil {
		return "", nil, err
	}
	if task.Status != model.TaskStatusPaid || task.SolutionFile == nil {
		return "", nil, apperrors.ErrSolutionUnavailable
	}

	data, err := s.files.Fetch(ctx, *task.SolutionFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, apperrors.ErrSolutionUnavailable
		}
		return "", nil, fmt.Errorf("fetch solution: %w", err)
	}

	name := strings.TrimPrefix(baseName(*task.SolutionFile), task.ID.String()+"_")
	return name, data, nil
}

func (s *taskService) History(ctx context.Context, actor model.Actor, taskID uuid.UUID) ([]model.TaskEvent, error) {
	task, err := s.findVisible(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	events, err := s.tasks.ListEvents(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", err)
	}
	return events, nil
}

// findAssigned loads a task the developer actor is assigned to.
func (s *taskService) findAssigned(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Task, error) {
	if err := requireRole(actor, model.RoleDeveloper); err != nil {
		return nil, err
	}
	task, err := s.tasks.FindAssigned(ctx, taskID, actor.ID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotAssigned, "find task")
	}
	return task, nil
}

// findVisible loads a task that actor is a party to: the owning buyer,
// the assigned developer, or an admin. Anyone else gets NotFound.
func (s *taskService) findVisible(ctx context.Context, actor model.Actor, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotFound, "find task")
	}

	switch actor.Role {
	case model.RoleAdmin:
		return task, nil
	case model.RoleDeveloper:
		if task.AssignedDeveloperID == actor.ID {
			return task, nil
		}
		return nil, apperrors.ErrTaskNotFound
	case model.RoleBuyer:
		if _, err := s.projects.FindOwned(ctx, task.ProjectID, actor.ID); err != nil {
			return nil, notFound(err, apperrors.ErrTaskNotFound, "find project")
		}
		return task, nil
	default:
		return nil, apperrors.ErrTaskNotFound
	}
}

func (s *taskService) transition(ctx context.Context, actor model.Actor, task *model.Task, to model.TaskStatus, fields map[string]interface{}) error {
	from := task.Status
	err := s.tasks.Transition(ctx, repository.TaskTransition{
		TaskID:  task.ID,
		ActorID: actor.ID,
		From:    from,
		To:      to,
		Fields:  fields,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidState) {
			return err
		}
		return fmt.Errorf("transition task: %w", err)
	}
	task.Status = to
	metrics.RecordTransition(string(from), string(to))
	return nil
}

// notFound maps gorm.ErrRecordNotFound to target and wraps anything else.
func notFound(err error, target *apperrors.Error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return fmt.Errorf("%s: %w", op, err)
}

func redactAll(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Redacted())
	}
	return out
}

// baseName strips any directory part a client sent along with the filename.
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
