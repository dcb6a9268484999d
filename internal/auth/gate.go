package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	apperrors "taskmarket/internal/errors"
	"taskmarket/internal/model"
)

const (
	actorContextKey  = "actor"
	claimsContextKey = "claims"
)

type capabilityMode int

const (
	modeCurrentActor capabilityMode = iota
	modeRoleRequired
)

// Capability is what an operation demands of the caller.
type Capability struct {
	mode capabilityMode
	role model.Role
}

// CurrentActor admits any authenticated user.
func CurrentActor() Capability {
	return Capability{mode: modeCurrentActor}
}

// RoleRequired admits only users holding role.
func RoleRequired(role model.Role) Capability {
	return Capability{mode: modeRoleRequired, role: role}
}

// UserFinder loads the user a token was issued to.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Gate resolves verified token claims into an actor and checks capabilities.
type Gate struct {
	users  UserFinder
	tokens TokenStoreInterface
}

// NewGate creates an authorization gate.
func NewGate(users UserFinder, tokens TokenStoreInterface) *Gate {
	return &Gate{users: users, tokens: tokens}
}

// Resolve returns the user behind claims if it satisfies capability.
// The role is read from the stored user, not from the token.
func (g *Gate) Resolve(ctx context.Context, claims *Claims, capability Capability) (*model.User, error) {
	if claims == nil || claims.Type != TokenTypeAccess {
		return nil, apperrors.ErrInvalidToken
	}

	if claims.ID != "" {
		revoked, err := g.tokens.IsAccessTokenBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token blacklist: %w", err)
		}
		if revoked {
			return nil, apperrors.ErrInvalidToken
		}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("load actor: %w", err)
	}

	switch capability.mode {
	case modeCurrentActor:
		return user, nil
	case modeRoleRequired:
		if user.Role != capability.role {
			return nil, apperrors.ErrRoleRequired
		}
		return user, nil
	default:
		return nil, fmt.Errorf("unknown capability mode %d", capability.mode)
	}
}

// Require is echo middleware enforcing capability. It must run after JWTMiddleware.
func (g *Gate) Require(capability Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var claims *Claims
			if token, ok := c.Get("user").(*jwt.Token); ok {
				claims, _ = token.Claims.(*Claims)
			}

			user, err := g.Resolve(c.Request().Context(), claims, capability)
			if err != nil {
				httpErr := apperrors.MapErrorToHTTP(err)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}

			c.Set(actorContextKey, user)
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// JWTMiddleware verifies the bearer token and stores it under "user".
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  secret,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			httpErr := apperrors.MapErrorToHTTP(apperrors.ErrInvalidToken)
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
		},
	})
}

// ActorFrom returns the user stored by Require.
func ActorFrom(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(actorContextKey).(*model.User)
	return user, ok && user != nil
}

// ClaimsFrom returns the access token claims stored by Require.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}
