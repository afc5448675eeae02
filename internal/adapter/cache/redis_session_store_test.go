package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fabworks/fabworks-auth/internal/adapter/cache"
	"github.com/fabworks/fabworks-auth/internal/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testSession(userID int64, sessionID string) domain.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Session{
		UserID:       userID,
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    "10.0.0.1",
		UserAgent:    "test-agent",
	}
}

func TestSessionCreateGetDelete(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)
	ctx := context.Background()

	sess := testSession(1, "sess-a")
	require.NoError(t, store.Create(ctx, sess, time.Hour))

	got, err := store.Get(ctx, 1, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, sess.SessionID, got.SessionID)
	require.Equal(t, sess.IPAddress, got.IPAddress)

	require.NoError(t, store.Delete(ctx, 1, "sess-a"))

	got, err = store.Get(ctx, 1, "sess-a")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionGetMissingReturnsNil(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)

	got, err := store.Get(context.Background(), 99, "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionTouchSlidesExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession(1, "sess-a"), time.Minute))

	// 40s in: without a touch the session would die at the 60s mark.
	mr.FastForward(40 * time.Second)
	touched, err := store.Touch(ctx, 1, "sess-a", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, touched)

	mr.FastForward(40 * time.Second)
	got, err := store.Get(ctx, 1, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, got, "touched session should have outlived the original TTL")

	mr.FastForward(2 * time.Minute)
	got, err = store.Get(ctx, 1, "sess-a")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionTouchMissingReturnsNil(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)

	touched, err := store.Touch(context.Background(), 1, "gone", time.Minute)
	require.NoError(t, err)
	require.Nil(t, touched)
}

func TestTouchDoesNotResurrectDeletedSession(t *testing.T) {
	mr, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)
	ctx := context.Background()

	// Touch in a loop while the session is deleted underneath it; the
	// conditional rewrite must never bring the session back.
	for i := 0; i < 20; i++ {
		require.NoError(t, store.Create(ctx, testSession(1, "sess-a"), time.Hour))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 25; j++ {
				_, _ = store.Touch(ctx, 1, "sess-a", time.Hour)
			}
		}()
		require.NoError(t, store.Delete(ctx, 1, "sess-a"))
		<-done

		got, err := store.Get(ctx, 1, "sess-a")
		require.NoError(t, err)
		require.Nil(t, got)
		require.False(t, mr.Exists("auth:session:1:sess-a"))
	}
}

func TestSessionListPrunesExpired(t *testing.T) {
	mr, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession(1, "short"), time.Minute))
	require.NoError(t, store.Create(ctx, testSession(1, "long"), time.Hour))

	mr.FastForward(2 * time.Minute)

	sessions, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "long", sessions[0].SessionID)
}

func TestSessionDeleteAll(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession(1, "a"), time.Hour))
	require.NoError(t, store.Create(ctx, testSession(1, "b"), time.Hour))
	require.NoError(t, store.Create(ctx, testSession(2, "c"), time.Hour))

	require.NoError(t, store.DeleteAll(ctx, 1))

	sessions, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, sessions)

	other, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, other, 1)
}
