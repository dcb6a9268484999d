package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"taskmarket/internal/model"
	"taskmarket/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDAndRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockProjectRepository is a mock implementation of ProjectRepository.
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return m.Called(ctx, project).Error(0)
}

func (m *MockProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepository) FindOwned(ctx context.Context, id, buyerID uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Project, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *MockProjectRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockTaskRepository is a mock implementation of TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *model.Task, actorID uuid.UUID) error {
	return m.Called(ctx, task, actorID).Error(0)
}

func (m *MockTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) FindAssigned(ctx context.Context, id, developerID uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id, developerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) tasks(args mock.Arguments) ([]model.Task, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	return m.tasks(m.Called(ctx, projectID))
}

func (m *MockTaskRepository) ListByProjectAndDeveloper(ctx context.Context, projectID, developerID uuid.UUID) ([]model.Task, error) {
	return m.tasks(m.Called(ctx, projectID, developerID))
}

func (m *MockTaskRepository) ListByDeveloper(ctx context.Context, developerID uuid.UUID) ([]model.Task, error) {
	return m.tasks(m.Called(ctx, developerID))
}

func (m *MockTaskRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Task, error) {
	return m.tasks(m.Called(ctx, buyerID))
}

func (m *MockTaskRepository) Transition(ctx context.Context, t repository.TaskTransition) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTaskRepository) ListEvents(ctx context.Context, taskID uuid.UUID) ([]model.TaskEvent, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TaskEvent), args.Error(1)
}

func (m *MockTaskRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) CountByStatus(ctx context.Context) ([]repository.StatusCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StatusCount), args.Error(1)
}

func (m *MockTaskRepository) SumPaidHours(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Settle(ctx context.Context, payment *model.Payment, actorID uuid.UUID) error {
	return m.Called(ctx, payment, actorID).Error(0)
}

func (m *MockPaymentRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) SumCompleted(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockFileStore is a mock implementation of storage.FileStore.
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Store(ctx context.Context, key string, data []byte) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

func (m *MockFileStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error {
	return m.Called(ctx, tokenID, userID, ttl).Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	return m.Called(ctx, tokenID).Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	return m.Called(ctx, tokenID, ttl).Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}
