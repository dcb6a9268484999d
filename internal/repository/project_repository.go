package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskmarket/internal/model"
)

// ProjectRepository defines project persistence operations.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// FindOwned finds the project only if buyerID owns it.
	FindOwned(ctx context.Context, id, buyerID uuid.UUID) (*model.Project, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Project, error)
	Count(ctx context.Context) (int64, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(project).Error
}

func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FindOwned(ctx context.Context, id, buyerID uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("id = ? AND buyer_id = ?", id, buyerID).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	if err := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).Order("created_at ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Count(&n).Error
	return n, err
}
