package repository

import (
	"context"
	"time"

	"github.com/fabworks/fabworks-auth/internal/domain"
)

// UserRepository reads account records and writes credential material.
// The rest of the account lifecycle belongs to the platform's user
// service; nothing here creates or deletes accounts except bootstrap.
type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	// ConsumeBackupCode marks a backup code hash used; returns false when
	// the hash is unknown or already consumed.
	ConsumeBackupCode(ctx context.Context, userID int64, codeHash string) (bool, error)
}

// RefreshTokenRepository persists the refresh-token ledger.
type RefreshTokenRepository interface {
	Create(ctx context.Context, rec domain.RefreshTokenRecord) error
	// GetLiveByHash returns the non-revoked record for the hash.
	GetLiveByHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error)
	// GetByHash returns the record regardless of revocation status; used
	// by reuse detection to tell "stolen and replayed" from "never issued".
	GetByHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error)
	// Rotate revokes the old record and inserts its successor in one
	// transaction. Returns false without inserting when the old record
	// was already revoked, which signals a concurrent reuse.
	Rotate(ctx context.Context, oldID int64, reason string, next domain.RefreshTokenRecord) (bool, error)
	RevokeFamily(ctx context.Context, family, reason string) error
	RevokeAllForUser(ctx context.Context, userID int64, reason string) error
	// DeleteExpired removes rows past expiry, and revoked rows older than
	// the retention window. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// SessionStore keeps ephemeral session records with sliding TTLs.
type SessionStore interface {
	Create(ctx context.Context, sess domain.Session, ttl time.Duration) error
	// Get returns nil when no live session exists, including when only a
	// stale index entry remains.
	Get(ctx context.Context, userID int64, sessionID string) (*domain.Session, error)
	// Touch refreshes LastActivity and the TTL; returns the updated
	// session or nil when it no longer exists.
	Touch(ctx context.Context, userID int64, sessionID string, ttl time.Duration) (*domain.Session, error)
	Delete(ctx context.Context, userID int64, sessionID string) error
	DeleteAll(ctx context.Context, userID int64) error
	List(ctx context.Context, userID int64) ([]domain.Session, error)
}

// ChallengeStore bridges a verified primary credential to the pending
// second-factor step.
type ChallengeStore interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	// Resolve looks the pending user up without consuming the challenge.
	Resolve(ctx context.Context, token string) (int64, bool, error)
	// Consume deletes the challenge; called exactly once after a
	// successful second-factor verification.
	Consume(ctx context.Context, token string) error
}
