package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskmarket/internal/cache"
)

const (
	refreshTokenKeyPrefix = "refresh_token:"
	accessTokenKeyPrefix  = "blacklist:access_token:"
)

// ErrRefreshTokenNotFound is returned when a refresh token is not live in the store.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// TokenStoreInterface defines the interface for token storage operations.
type TokenStoreInterface interface {
	StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
	BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// TokenStore handles storage and retrieval of tokens in Redis.
// With redis down it fails safe: refresh tokens are never found and
// no access token is reported as blacklisted.
type TokenStore struct {
	cache *cache.Client
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

type refreshRecord struct {
	UserID string `json:"user_id"`
}

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// StoreRefreshToken stores a refresh token in Redis with TTL.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error {
	payload, err := json.Marshal(refreshRecord{UserID: userID.String()})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}
	return s.cache.Set(ctx, refreshTokenKeyPrefix+tokenID, payload, ttl)
}

// GetRefreshToken returns the user a live refresh token belongs to.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, error) {
	data, err := s.cache.Get(ctx, refreshTokenKeyPrefix+tokenID)
	if err != nil || data == nil {
		return uuid.Nil, ErrRefreshTokenNotFound
	}

	var rec refreshRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal token data: %w", err)
	}
	userID, err := uuid.Parse(rec.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user_id in token data: %w", err)
	}
	return userID, nil
}

// DeleteRefreshToken removes a refresh token from Redis.
func (s *TokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	return s.cache.Delete(ctx, refreshTokenKeyPrefix+tokenID)
}

// BlacklistAccessToken adds an access token to the blacklist until it expires.
func (s *TokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, accessTokenKeyPrefix+tokenID, []byte("1"), ttl)
}

// IsAccessTokenBlacklisted checks if an access token is blacklisted.
func (s *TokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	data, err := s.cache.Get(ctx, accessTokenKeyPrefix+tokenID)
	if err != nil {
		return false, nil
	}
	return data != nil, nil
}
