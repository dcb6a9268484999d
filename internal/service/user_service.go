package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"taskmarket/internal/cache"
	"taskmarket/internal/model"
	"taskmarket/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService resolves users for the authorization gate and admin listings.
type UserService interface {
	// FindByID returns the user, from cache when possible.
	// The cached copy carries no password hash.
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

func (s *userService) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil && cached.ID == id {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}
