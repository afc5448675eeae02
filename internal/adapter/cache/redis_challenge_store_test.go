package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabworks/fabworks-auth/internal/adapter/cache"
)

func TestChallengeResolveDoesNotConsume(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisChallengeStore(client)
	ctx := context.Background()

	token, err := store.Create(ctx, 42, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// A wrong second-factor code resolves the challenge again; it stays
	// usable until consumed or expired.
	for i := 0; i < 3; i++ {
		userID, found, err := store.Resolve(ctx, token)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, int64(42), userID)
	}
}

func TestChallengeConsumeIsFinal(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisChallengeStore(client)
	ctx := context.Background()

	token, err := store.Create(ctx, 42, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Consume(ctx, token))

	_, found, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.False(t, found)

	// Consuming an already-gone challenge is a no-op.
	require.NoError(t, store.Consume(ctx, token))
}

func TestChallengeExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	store := cache.NewRedisChallengeStore(client)
	ctx := context.Background()

	token, err := store.Create(ctx, 42, time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, found, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.False(t, found)
}

func TestChallengeUnknownToken(t *testing.T) {
	_, client := newTestRedis(t)
	store := cache.NewRedisChallengeStore(client)

	_, found, err := store.Resolve(context.Background(), "never-issued")
	require.NoError(t, err)
	require.False(t, found)
}
