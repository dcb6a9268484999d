package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/model"
)

type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

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

func accessClaims(user *model.User) *Claims {
	c := &Claims{UserID: user.ID.String(), Role: user.Role, Type: TokenTypeAccess}
	c.ID = "jti-1"
	return c
}

func TestGate_Resolve(t *testing.T) {
	buyer := testUser(model.RoleBuyer)

	tests := []struct {
		name       string
		claims     *Claims
		capability Capability
		setup      func(*MockUserFinder, *MockTokenStore)
		wantKind   error
	}{
		{
			name:       "current actor",
			claims:     accessClaims(buyer),
			capability: CurrentActor(),
			setup: func(u *MockUserFinder, ts *MockTokenStore) {
				ts.On("IsAccessTokenBlacklisted", mock.Anything, "jti-1").Return(false, nil)
				u.On("FindByID", mock.Anything, buyer.ID).Return(buyer, nil)
			},
		},
		{
			name:       "role satisfied",
			claims:     accessClaims(buyer),
			capability: RoleRequired(model.RoleBuyer),
			setup: func(u *MockUserFinder, ts *MockTokenStore) {
				ts.On("IsAccessTokenBlacklisted", mock.Anything, "jti-1").Return(false, nil)
				u.On("FindByID", mock.Anything, buyer.ID).Return(buyer, nil)
			},
		},
		{
			name:       "wrong role is forbidden",
			claims:     accessClaims(buyer),
			capability: RoleRequired(model.RoleAdmin),
			setup: func(u *MockUserFinder, ts *MockTokenStore) {
				ts.On("IsAccessTokenBlacklisted", mock.Anything, "jti-1").Return(false, nil)
				u.On("FindByID", mock.Anything, buyer.ID).Return(buyer, nil)
			},
			wantKind: apperrors.ErrForbidden,
		},
		{
			name:       "missing claims",
			capability: CurrentActor(),
			setup:      func(*MockUserFinder, *MockTokenStore) {},
			wantKind:   apperrors.ErrUnauthorized,
		},
		{
			name: "refresh token as bearer",
			claims: &Claims{
				UserID: buyer.ID.String(),
				Type:   TokenTypeRefresh,
			},
			capability: CurrentActor(),
			setup:      func(*MockUserFinder, *MockTokenStore) {},
			wantKind:   apperrors.ErrUnauthorized,
		},
		{
			name:       "blacklisted token",
			claims:     accessClaims(buyer),
			capability: CurrentActor(),
			setup: func(u *MockUserFinder, ts *MockTokenStore) {
				ts.On("IsAccessTokenBlacklisted", mock.Anything, "jti-1").Return(true, nil)
			},
			wantKind: apperrors.ErrUnauthorized,
		},
		{
			name:       "deleted user",
			claims:     accessClaims(buyer),
			capability: CurrentActor(),
			setup: func(u *MockUserFinder, ts *MockTokenStore) {
				ts.On("IsAccessTokenBlacklisted", mock.Anything, "jti-1").Return(false, nil)
				u.On("FindByID", mock.Anything, buyer.ID).Return(nil, gorm.ErrRecordNotFound)
			},
			wantKind: apperrors.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserFinder)
			tokens := new(MockTokenStore)
			tt.setup(users, tokens)

			gate := NewGate(users, tokens)
			user, err := gate.Resolve(context.Background(), tt.claims, tt.capability)

			if tt.wantKind != nil {
				assert.ErrorIs(t, err, tt.wantKind)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, buyer.ID, user.ID)
			}
			users.AssertExpectations(t)
			tokens.AssertExpectations(t)
		})
	}
}

func TestGate_ResolveDatabaseError(t *testing.T) {
	buyer := testUser(model.RoleBuyer)
	users := new(MockUserFinder)
	tokens := new(MockTokenStore)
	tokens.On("IsAccessTokenBlacklisted", mock.Anything, "jti-1").Return(false, nil)
	users.On("FindByID", mock.Anything, buyer.ID).Return(nil, errors.New("connection reset"))

	_, err := NewGate(users, tokens).Resolve(context.Background(), accessClaims(buyer), CurrentActor())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGate_Middleware(t *testing.T) {
	jwtSvc := NewJWTService("test-secret", time.Minute, time.Hour)
	dev := testUser(model.RoleDeveloper)

	users := new(MockUserFinder)
	users.On("FindByID", mock.Anything, dev.ID).Return(dev, nil)
	tokens := new(MockTokenStore)
	tokens.On("IsAccessTokenBlacklisted", mock.Anything, mock.Anything).Return(false, nil)
	gate := NewGate(users, tokens)

	e := echo.New()
	handler := func(c echo.Context) error {
		actor, ok := ActorFrom(c)
		require.True(t, ok)
		_, ok = ClaimsFrom(c)
		require.True(t, ok)
		return c.String(http.StatusOK, string(actor.Role))
	}
	e.GET("/dev", handler, JWTMiddleware(jwtSvc.Secret()), gate.Require(RoleRequired(model.RoleDeveloper)))
	e.GET("/buyer", handler, JWTMiddleware(jwtSvc.Secret()), gate.Require(RoleRequired(model.RoleBuyer)))

	token, err := jwtSvc.GenerateAccessToken(dev)
	require.NoError(t, err)

	do := func(path, authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authz != "" {
			req.Header.Set(echo.HeaderAuthorization, authz)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/dev", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "developer", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/buyer", "Bearer "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, do("/dev", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/dev", "Bearer garbage").Code)
}
