package domain

import "time"

// Revocation reasons recorded on refresh token rows.
const (
	RevokedRotation  = "rotated"
	RevokedLogout    = "logout"
	RevokedLogoutAll = "logout_all"
	RevokedReuse     = "reuse_detected"
	RevokedPassword  = "password_changed"
	RevokedAdmin     = "admin"
)

// RefreshTokenRecord persists one issued refresh token. TokenHash holds a
// one-way hash of the raw token so a database compromise never leaks a
// usable credential. Family ties together every token descended from one
// original login; at most one non-revoked record exists per family.
type RefreshTokenRecord struct {
	ID            int64
	UserID        int64
	TokenHash     string
	Family        string
	SessionID     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason string
	IPAddress     string
	UserAgent     string
}

// Live reports whether the record can still be redeemed.
func (r RefreshTokenRecord) Live(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}
