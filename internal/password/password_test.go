package password_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabworks/fabworks-auth/internal/password"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	hasher := password.NewHasher(password.Params{MemoryKiB: 8 * 1024, Time: 1, Threads: 1})

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := hasher.Verify("correct horse battery staple", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasher.Verify("wrong password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyReadsParamsFromHash(t *testing.T) {
	// Hash with one cost, verify with a hasher configured differently; the
	// encoded parameters must win.
	writer := password.NewHasher(password.Params{MemoryKiB: 8 * 1024, Time: 1, Threads: 1})
	reader := password.NewHasher(password.Params{MemoryKiB: 16 * 1024, Time: 2, Threads: 2})

	hash, err := writer.Hash("some password")
	require.NoError(t, err)

	ok, err := reader.Verify("some password", hash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := password.NewHasher(password.DefaultParams)

	for _, hash := range []string{
		"",
		"not a hash",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	} {
		ok, err := hasher.Verify("password", hash)
		require.Error(t, err, "hash %q", hash)
		require.False(t, ok)
	}
}

func TestVerifyDecoyCostsLikeAMismatch(t *testing.T) {
	hasher := password.NewHasher(password.Params{MemoryKiB: 8 * 1024, Time: 1, Threads: 1})

	hash, err := hasher.Hash("real password")
	require.NoError(t, err)

	start := time.Now()
	ok, err := hasher.Verify("wrong password", hash)
	require.NoError(t, err)
	require.False(t, ok)
	mismatch := time.Since(start)

	// The decoy path must burn real hashing work, not return early.
	// Generous bound to stay stable on loaded machines.
	start = time.Now()
	hasher.VerifyDecoy("wrong password")
	decoy := time.Since(start)
	require.Greater(t, decoy*10, mismatch)

	// And it must not disturb ordinary verification.
	ok, err = hasher.Verify("real password", hash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGeneratePassword(t *testing.T) {
	got, err := password.GeneratePassword(20)
	require.NoError(t, err)
	require.Len(t, got, 20)

	result := password.DefaultValidator().Validate(got)
	require.True(t, result.IsValid, "generated password failed policy: %v", result.Errors)
}

func TestGenerateToken(t *testing.T) {
	a, err := password.GenerateToken(32)
	require.NoError(t, err)
	b, err := password.GenerateToken(32)
	require.NoError(t, err)

	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
	require.NotContains(t, a, "+")
	require.NotContains(t, a, "/")
}
