package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/model"
	"taskmarket/internal/repository"
)

// ProjectService manages buyer-owned projects.
type ProjectService interface {
	Create(ctx context.Context, actor model.Actor, title, description string) (*model.Project, error)
	// ListMine returns the projects owned by actor.
	ListMine(ctx context.Context, actor model.Actor) ([]model.Project, error)
}

type projectService struct {
	projects repository.ProjectRepository
	log      logrus.FieldLogger
}

// NewProjectService creates a new project service.
func NewProjectService(projects repository.ProjectRepository, log logrus.FieldLogger) ProjectService {
	return &projectService{projects: projects, log: log}
}

func (s *projectService) Create(ctx context.Context, actor model.Actor, title, description string) (*model.Project, error) {
	if err := requireRole(actor, model.RoleBuyer); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "Title is required", "INVALID_TITLE")
	}

	project := &model.Project{
		Title:       title,
		Description: description,
		BuyerID:     actor.ID,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.log.WithFields(logrus.Fields{"project_id": project.ID, "actor_id": actor.ID}).Info("project created")
	return project, nil
}

func (s *projectService) ListMine(ctx context.Context, actor model.Actor) ([]model.Project, error) {
	projects, err := s.projects.ListByBuyer(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// requireRole fails with ErrRoleRequired unless actor holds role.
func requireRole(actor model.Actor, role model.Role) error {
	if !actor.Is(role) {
		return apperrors.ErrRoleRequired
	}
	return nil
}
