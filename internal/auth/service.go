package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Service struct {
	jwt         *JWTManager
	redisClient *redis.Client
}

func NewService(jwt *JWTManager, redisClient *redis.Client) *Service {
	return &Service{
		jwt:         jwt,
		redisClient: redisClient,
	}
}

// refreshKey derives the Redis key for a refresh token. Only the SHA-256 of
// the token is stored, so a Redis dump cannot be replayed as a credential.
func refreshKey(userID, token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("refresh:%s:%s", userID, hex.EncodeToString(sum[:]))
}

func (s *Service) GenerateTokens(ctx context.Context, userID, email string) (*TokenPair, error) {
	pair, err := s.jwt.GenerateTokenPair(userID, email)
	if err != nil {
		return nil, err
	}

	err = s.redisClient.Set(ctx, refreshKey(userID, pair.RefreshToken), "1", s.jwt.RefreshExpiry()).Err()
	if err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return pair, nil
}

// RefreshTokens validates and rotates a refresh token. The old token is
// consumed atomically so a stolen-and-replayed token fails.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := refreshKey(claims.UserID, refreshToken)
	if err := s.redisClient.GetDel(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("refresh token revoked")
		}
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}

	return s.GenerateTokens(ctx, claims.UserID, claims.Email)
}

// Logout revokes every refresh token belonging to the user.
func (s *Service) Logout(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("refresh:%s:*", userID)
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.redisClient.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}

func (s *Service) JWT() *JWTManager {
	return s.jwt
}
