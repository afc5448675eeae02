package breach_test

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabworks/fabworks-auth/internal/adapter/breach"
)

func rangeParts(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(fmt.Sprintf("%x", sum))
	return digest[:5], digest[5:]
}

func TestIsBreachedFindsSuffix(t *testing.T) {
	prefix, suffix := rangeParts("password123")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+prefix, r.URL.Path)
		require.Equal(t, "true", r.Header.Get("Add-Padding"))
		fmt.Fprintf(w, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:0\r\n%s:2314\r\nBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB:1\r\n", suffix)
	}))
	defer srv.Close()

	client := breach.NewClient(srv.URL, srv.Client(), false, zap.NewNop())

	breached, err := client.IsBreached(context.Background(), "password123")
	require.NoError(t, err)
	require.True(t, breached)
}

func TestIsBreachedCleanPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:3\r\n")
	}))
	defer srv.Close()

	client := breach.NewClient(srv.URL, srv.Client(), false, zap.NewNop())

	breached, err := client.IsBreached(context.Background(), "vK9#mTqw!2zL-px7")
	require.NoError(t, err)
	require.False(t, breached)
}

func TestIsBreachedFailsOpenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := breach.NewClient(srv.URL, srv.Client(), true, zap.NewNop())

	breached, err := client.IsBreached(context.Background(), "anything")
	require.NoError(t, err)
	require.False(t, breached)
}

func TestIsBreachedFailClosedPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := breach.NewClient(srv.URL, srv.Client(), false, zap.NewNop())

	_, err := client.IsBreached(context.Background(), "anything")
	require.Error(t, err)
}

func TestIsBreachedFailsOpenOnUnreachableService(t *testing.T) {
	client := breach.NewClient("http://127.0.0.1:1", nil, true, zap.NewNop())

	breached, err := client.IsBreached(context.Background(), "anything")
	require.NoError(t, err)
	require.False(t, breached)
}
