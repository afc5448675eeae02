package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabworks/fabworks-auth/internal/domain"
	"github.com/fabworks/fabworks-auth/internal/jwt"
)

var (
	accessSecret  = []byte("access-secret-access-secret-1234")
	refreshSecret = []byte("refresh-secret-refresh-secret-12")
)

func testUser() domain.User {
	return domain.User{ID: 42, OrgID: 7, Email: "operator@plant.example"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	g := jwt.NewGenerator(accessSecret, refreshSecret, time.Minute, time.Hour, "fabworks-auth")

	token, err := g.GenerateAccessToken(testUser(), "sess-1", true)
	require.NoError(t, err)

	identity, err := g.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), identity.UserID)
	require.Equal(t, int64(7), identity.Claims.OrgID)
	require.Equal(t, "operator@plant.example", identity.Claims.Email)
	require.Equal(t, "sess-1", identity.Claims.SessionID)
	require.Equal(t, jwt.TypeAccess, identity.Claims.TokenType)
	require.True(t, identity.Claims.MFAVerified)
}

func TestRefreshTokenCarriesFamily(t *testing.T) {
	g := jwt.NewGenerator(accessSecret, refreshSecret, time.Minute, time.Hour, "fabworks-auth")

	token, err := g.GenerateRefreshToken(testUser(), "sess-1", "family-abc")
	require.NoError(t, err)

	identity, err := g.ParseRefreshToken(token)
	require.NoError(t, err)
	require.Equal(t, "family-abc", identity.Claims.Family)
	require.Equal(t, jwt.TypeRefresh, identity.Claims.TokenType)
}

func TestTokenTypeIsEnforced(t *testing.T) {
	g := jwt.NewGenerator(accessSecret, refreshSecret, time.Minute, time.Hour, "fabworks-auth")

	access, err := g.GenerateAccessToken(testUser(), "sess-1", false)
	require.NoError(t, err)
	refresh, err := g.GenerateRefreshToken(testUser(), "sess-1", "family-abc")
	require.NoError(t, err)

	// Each token fails at the other endpoint: different signing secret.
	_, err = g.ParseRefreshToken(access)
	require.Error(t, err)
	_, err = g.ParseAccessToken(refresh)
	require.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	g := jwt.NewGenerator(accessSecret, refreshSecret, time.Minute, time.Hour, "fabworks-auth")
	other := jwt.NewGenerator([]byte("another-secret-entirely-12345678"), refreshSecret, time.Minute, time.Hour, "fabworks-auth")

	token, err := g.GenerateAccessToken(testUser(), "sess-1", false)
	require.NoError(t, err)

	_, err = other.ParseAccessToken(token)
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	g := jwt.NewGenerator(accessSecret, refreshSecret, -time.Minute, time.Hour, "fabworks-auth")

	token, err := g.GenerateAccessToken(testUser(), "sess-1", false)
	require.NoError(t, err)

	_, err = g.ParseAccessToken(token)
	require.Error(t, err)
}

func TestIssuerMismatchRejected(t *testing.T) {
	g := jwt.NewGenerator(accessSecret, refreshSecret, time.Minute, time.Hour, "fabworks-auth")
	other := jwt.NewGenerator(accessSecret, refreshSecret, time.Minute, time.Hour, "someone-else")

	token, err := g.GenerateAccessToken(testUser(), "sess-1", false)
	require.NoError(t, err)

	_, err = other.ParseAccessToken(token)
	require.Error(t, err)
}
