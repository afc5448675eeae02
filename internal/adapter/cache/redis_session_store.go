package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabworks/fabworks-auth/internal/domain"
	"github.com/fabworks/fabworks-auth/internal/repository"
)

// RedisSessionStore implements SessionStore backed by Redis. Each session
// lives in its own key with a TTL; a per-user set indexes the session ids
// so "list my sessions" and "log out everywhere" stay cheap. The index
// has no TTL of its own, so stale members are pruned when discovered.
type RedisSessionStore struct {
	client redis.UniversalClient
}

var _ repository.SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(userID int64, sessionID string) string {
	return fmt.Sprintf("auth:session:%d:%s", userID, sessionID)
}

func sessionIndexKey(userID int64) string {
	return "auth:sessions:" + strconv.FormatInt(userID, 10)
}

// Create writes the session blob with TTL and indexes the session id.
func (s *RedisSessionStore) Create(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.UserID, sess.SessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := s.client.SAdd(ctx, sessionIndexKey(sess.UserID), sess.SessionID).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

// Get loads and decodes the session blob. A missing blob means "not
// logged in" regardless of what the index says; the stale index entry is
// pruned on the way out.
func (s *RedisSessionStore) Get(ctx context.Context, userID int64, sessionID string) (*domain.Session, error) {
	bytes, err := s.client.Get(ctx, sessionKey(userID, sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			_ = s.client.SRem(ctx, sessionIndexKey(userID), sessionID).Err()
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(bytes, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Touch updates LastActivity and rewrites the blob with a refreshed TTL,
// giving sessions a sliding-window expiry. The rewrite is SET XX: a
// session deleted between the read and the rewrite (logout racing an
// authenticated request) stays deleted instead of being resurrected.
func (s *RedisSessionStore) Touch(ctx context.Context, userID int64, sessionID string, ttl time.Duration) (*domain.Session, error) {
	sess, err := s.Get(ctx, userID, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}
	sess.LastActivity = time.Now().UTC()
	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, sessionKey(userID, sessionID), payload, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if !ok {
		_ = s.client.SRem(ctx, sessionIndexKey(userID), sessionID).Err()
		return nil, nil
	}
	return sess, nil
}

// Delete removes the blob and its index entry.
func (s *RedisSessionStore) Delete(ctx context.Context, userID int64, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(userID, sessionID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.client.SRem(ctx, sessionIndexKey(userID), sessionID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("unindex session: %w", err)
	}
	return nil
}

// DeleteAll removes every session in the user's index set.
func (s *RedisSessionStore) DeleteAll(ctx context.Context, userID int64) error {
	ids, err := s.client.SMembers(ctx, sessionIndexKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(userID, id))
	}
	keys = append(keys, sessionIndexKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// List returns every live session for the user, pruning index entries
// whose blobs have already expired.
func (s *RedisSessionStore) List(ctx context.Context, userID int64) ([]domain.Session, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			sessions = append(sessions, *sess)
		}
	}
	return sessions, nil
}
