package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabworks/fabworks-auth/internal/password"
	"github.com/fabworks/fabworks-auth/internal/repository"
)

// RedisChallengeStore implements ChallengeStore backed by Redis. Each
// challenge is an opaque random token mapping to the pending user id.
type RedisChallengeStore struct {
	client redis.UniversalClient
}

var _ repository.ChallengeStore = (*RedisChallengeStore)(nil)

// NewRedisChallengeStore constructs a Redis-backed challenge store.
func NewRedisChallengeStore(client redis.UniversalClient) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func challengeKey(token string) string {
	return "auth:mfa:" + token
}

// Create mints a random challenge token and stores the pending user id
// under it with the given TTL.
func (s *RedisChallengeStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token, err := password.GenerateToken(32)
	if err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}
	if err := s.client.Set(ctx, challengeKey(token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("persist challenge: %w", err)
	}
	return token, nil
}

// Resolve returns the pending user id without consuming the challenge,
// so a wrong second-factor code stays retriable until the TTL expires.
func (s *RedisChallengeStore) Resolve(ctx context.Context, token string) (int64, bool, error) {
	value, err := s.client.Get(ctx, challengeKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load challenge: %w", err)
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode challenge: %w", err)
	}
	return userID, true, nil
}

// Consume deletes the challenge so it cannot be replayed.
func (s *RedisChallengeStore) Consume(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, challengeKey(token)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}
