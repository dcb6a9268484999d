package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskmarket/internal/model"
)

const (
	// DefaultAccessTokenExpiry is used when no access TTL is configured.
	DefaultAccessTokenExpiry = 60 * time.Minute
	// DefaultRefreshTokenExpiry is used when no refresh TTL is configured.
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims represents JWT claims.
type Claims struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	Type   string     `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTService creates a new JWT service. Zero TTLs fall back to the defaults.
func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenExpiry
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenExpiry
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Secret returns the signing key, for the echo-jwt middleware.
func (s *JWTService) Secret() []byte {
	return s.secret
}

// RefreshTTL is how long refresh tokens stay valid.
func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// GenerateAccessToken issues a short-lived bearer token for user.
func (s *JWTService) GenerateAccessToken(user *model.User) (string, error) {
	return s.sign(user, TokenTypeAccess, generateTokenID(), s.accessTTL)
}

// GenerateRefreshToken issues a refresh token for user.
// The token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(user *model.User) (tokenID string, token string, err error) {
	tokenID = generateTokenID()
	token, err = s.sign(user, TokenTypeRefresh, tokenID, s.refreshTTL)
	return tokenID, token, err
}

func (s *JWTService) sign(user *model.User, typ, id string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID.String(),
		Role:   user.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ValidateRefreshToken validates tokenString and requires it to be a refresh token with an ID.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, errors.New("not a refresh token")
	}
	if claims.ID == "" {
		return nil, errors.New("token ID not found")
	}
	return claims, nil
}

// Remaining is how long claims stay valid from now, never negative.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := time.Until(c.ExpiresAt.Time); d > 0 {
		return d
	}
	return 0
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	return uuid.New().String()
}
