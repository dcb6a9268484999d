package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskmarket/internal/auth"
	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/model"
	"taskmarket/internal/repository"
)

const bcryptCost = 10

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, name, email, password string, role model.Role) (*model.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *model.User, err error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	// Logout revokes refreshToken and blacklists the access token in access.
	Logout(ctx context.Context, refreshToken string, access *auth.Claims) error
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	log        logrus.FieldLogger
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface, log logrus.FieldLogger) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		tokenStore: tokenStore,
		log:        log,
	}
}

// Register creates a new user with a hashed password.
func (s *authService) Register(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	if _, err := model.ParseRole(string(role)); err != nil {
		return nil, apperrors.ErrInvalidRole
	}
	email = strings.TrimSpace(email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrEmailExists
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return user, nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *model.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, apperrors.ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, s.jwtService.RefreshTTL()); err != nil {
		return "", "", nil, fmt.Errorf("store refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// RefreshToken validates a live refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}

	storedUserID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedUserID.String() != claims.UserID {
		return "", apperrors.ErrInvalidRefreshToken
	}

	// The role may only come from the stored user.
	user, err := s.userRepo.FindByID(ctx, storedUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string, access *auth.Claims) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidRefreshToken
	}
	if access != nil && access.UserID != claims.UserID {
		return apperrors.ErrInvalidRefreshToken
	}

	if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if access != nil && access.ID != "" {
		if err := s.tokenStore.BlacklistAccessToken(ctx, access.ID, access.Remaining()); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}
