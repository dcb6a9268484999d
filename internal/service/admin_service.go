package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"taskmarket/internal/model"
	"taskmarket/internal/repository"
)

// Stats is the platform-wide report.
type Stats struct {
	TotalUsers     int64                      `json:"total_users"`
	TotalProjects  int64                      `json:"total_projects"`
	TotalTasks     int64                      `json:"total_tasks"`
	TasksByStatus  map[model.TaskStatus]int64 `json:"tasks_by_status"`
	TotalRevenue   decimal.Decimal            `json:"total_revenue"`
	TotalPaidHours decimal.Decimal            `json:"total_paid_hours"`
}

// AdminService is the read-only admin aggregator.
type AdminService interface {
	Stats(ctx context.Context, actor model.Actor) (*Stats, error)
}

type adminService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	payments repository.PaymentRepository
}

// NewAdminService creates a new admin service.
func NewAdminService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	payments repository.PaymentRepository,
) AdminService {
	return &adminService{users: users, projects: projects, tasks: tasks, payments: payments}
}

func (s *adminService) Stats(ctx context.Context, actor model.Actor) (*Stats, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		stats = &Stats{TasksByStatus: map[model.TaskStatus]int64{}}
		err   error
	)
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if stats.TotalProjects, err = s.projects.Count(ctx); err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	if stats.TotalTasks, err = s.tasks.Count(ctx); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	for _, c := range counts {
		stats.TasksByStatus[c.Status] = c.Count
	}

	if stats.TotalRevenue, err = s.payments.SumCompleted(ctx); err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	if stats.TotalPaidHours, err = s.tasks.SumPaidHours(ctx); err != nil {
		return nil, fmt.Errorf("sum paid hours: %w", err)
	}
	return stats, nil
}
