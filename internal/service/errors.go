package service

import (
	"fmt"
	"net/http"
)

// Error codes surfaced to clients. The set is deliberately closed: lower
// level failures are translated here so callers can tell an outage from
// an auth failure, and nothing leaks which internal check rejected a
// credential.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeAccountUnusable    = "account_unusable"
	CodeSessionExpired     = "session_expired"
	CodeReauthenticate     = "reauthenticate_required"
	CodeWeakPassword       = "weak_password"
	CodeServiceUnavailable = "service_unavailable"
)

// AuthError is the user-facing error shape for all auth flows.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func errInvalidCredentials() *AuthError {
	return &AuthError{Code: CodeInvalidCredentials, Description: "Wrong email or password.", Status: http.StatusBadRequest}
}

func errInvalidToken() *AuthError {
	return &AuthError{Code: CodeInvalidToken, Description: "Invalid or expired token.", Status: http.StatusUnauthorized}
}

func errAccountUnusable() *AuthError {
	return &AuthError{Code: CodeAccountUnusable, Description: "Account is not active.", Status: http.StatusForbidden}
}

func errSessionExpired() *AuthError {
	return &AuthError{Code: CodeSessionExpired, Description: "Session expired or revoked. Sign in again.", Status: http.StatusUnauthorized}
}

func errReauthenticate() *AuthError {
	return &AuthError{Code: CodeReauthenticate, Description: "Full re-authentication required.", Status: http.StatusUnauthorized}
}

func errWeakPassword(desc string) *AuthError {
	return &AuthError{Code: CodeWeakPassword, Description: desc, Status: http.StatusBadRequest}
}

func errServiceUnavailable() *AuthError {
	return &AuthError{Code: CodeServiceUnavailable, Description: "Service temporarily unavailable.", Status: http.StatusServiceUnavailable}
}
