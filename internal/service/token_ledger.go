package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fabworks/fabworks-auth/internal/domain"
	"github.com/fabworks/fabworks-auth/internal/jwt"
	"github.com/fabworks/fabworks-auth/internal/repository"
)

// Ledger-internal signals; the flow layer translates these into the
// user-facing error taxonomy.
var (
	// ErrTokenInvalid covers malformed, expired, wrong-secret, and
	// never-recorded tokens alike. Deliberately undifferentiated.
	ErrTokenInvalid = errors.New("refresh token invalid")
	// ErrTokenReused means an already-rotated-away token was presented
	// again; the whole family has been revoked as a consequence.
	ErrTokenReused = errors.New("refresh token reuse detected")
)

// RefreshValidation is the outcome of a successful Validate call.
type RefreshValidation struct {
	Record   domain.RefreshTokenRecord
	Identity *jwt.Identity
}

// TokenLedger owns the refresh-token family lifecycle:
// ISSUED -> (ROTATED -> ISSUED)* -> REVOKED|EXPIRED.
type TokenLedger struct {
	tokens     repository.RefreshTokenRepository
	jwt        *jwt.Generator
	node       *snowflake.Node
	refreshTTL time.Duration
	retention  time.Duration
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewTokenLedger wires dependencies.
func NewTokenLedger(tokens repository.RefreshTokenRepository, generator *jwt.Generator, node *snowflake.Node, refreshTTL, retention time.Duration, logger *zap.Logger) *TokenLedger {
	return &TokenLedger{
		tokens:     tokens,
		jwt:        generator,
		node:       node,
		refreshTTL: refreshTTL,
		retention:  retention,
		logger:     logger,
		tracer:     otel.Tracer("github.com/fabworks/fabworks-auth/internal/service"),
	}
}

// HashToken derives the one-way hash under which a refresh token is
// stored. The raw value never touches the database.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Issue mints an access/refresh token pair and records the refresh token
// in the ledger. A persistence failure is fatal to the login attempt: a
// token must never exist that the ledger does not know about.
func (l *TokenLedger) Issue(ctx context.Context, user domain.User, sessionID, family string, mfaVerified bool, ip, userAgent string) (*TokenPair, error) {
	ctx, span := l.startSpan(ctx, "TokenLedger.Issue")
	defer span.End()

	access, err := l.jwt.GenerateAccessToken(user, sessionID, mfaVerified)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := l.jwt.GenerateRefreshToken(user, sessionID, family)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	rec := domain.RefreshTokenRecord{
		ID:        l.node.Generate().Int64(),
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		Family:    family,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(l.refreshTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := l.tokens.Create(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(l.jwt.AccessTTL().Seconds()),
	}, nil
}

// Validate verifies a raw refresh token against the ledger. A token whose
// JWT verifies but whose hash matches only a revoked record was valid
// once and has been rotated away: its reuse is the theft signal, and the
// entire family is revoked before ErrTokenReused is returned.
func (l *TokenLedger) Validate(ctx context.Context, raw string) (*RefreshValidation, error) {
	ctx, span := l.startSpan(ctx, "TokenLedger.Validate")
	defer span.End()

	identity, err := l.jwt.ParseRefreshToken(raw)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	hash := HashToken(raw)
	rec, err := l.tokens.GetLiveByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			span.RecordError(err)
			return nil, fmt.Errorf("lookup refresh token: %w", err)
		}
		return nil, l.detectReuse(ctx, hash)
	}

	now := time.Now().UTC()
	if !rec.Live(now) || rec.UserID != identity.UserID {
		return nil, ErrTokenInvalid
	}

	return &RefreshValidation{Record: rec, Identity: identity}, nil
}

// detectReuse runs after a live lookup misses: a hash matching any
// historical record means a rotated-away token came back.
func (l *TokenLedger) detectReuse(ctx context.Context, hash string) error {
	stale, err := l.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Signed but never recorded: wrong environment or already
			// garbage-collected. Plain invalid either way.
			return ErrTokenInvalid
		}
		return fmt.Errorf("lookup stale refresh token: %w", err)
	}

	l.logger.Error("refresh token reuse detected, revoking family",
		zap.Int64("user_id", stale.UserID),
		zap.String("family", stale.Family),
		zap.String("original_reason", stale.RevokedReason),
	)
	if err := l.tokens.RevokeFamily(ctx, stale.Family, domain.RevokedReuse); err != nil {
		return fmt.Errorf("revoke family on reuse: %w", err)
	}
	return ErrTokenReused
}

// Rotate revokes the presented record and issues its successor in the
// same family under a fresh session id. The two writes are sequenced in
// one transaction; a concurrent rotation losing the race is treated as
// reuse and burns the family.
func (l *TokenLedger) Rotate(ctx context.Context, old domain.RefreshTokenRecord, user domain.User, mfaVerified bool, ip, userAgent string) (*TokenPair, string, error) {
	ctx, span := l.startSpan(ctx, "TokenLedger.Rotate")
	defer span.End()

	sessionID := uuid.NewString()
	access, err := l.jwt.GenerateAccessToken(user, sessionID, mfaVerified)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := l.jwt.GenerateRefreshToken(user, sessionID, old.Family)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	next := domain.RefreshTokenRecord{
		ID:        l.node.Generate().Int64(),
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		Family:    old.Family,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(l.refreshTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	rotated, err := l.tokens.Rotate(ctx, old.ID, domain.RevokedRotation, next)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// Lost a race against another rotation of the same record:
		// concurrent reuse of one token.
		l.logger.Error("concurrent refresh token rotation, revoking family",
			zap.Int64("user_id", user.ID),
			zap.String("family", old.Family),
		)
		if err := l.tokens.RevokeFamily(ctx, old.Family, domain.RevokedReuse); err != nil {
			return nil, "", fmt.Errorf("revoke family on rotation race: %w", err)
		}
		return nil, "", ErrTokenReused
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(l.jwt.AccessTTL().Seconds()),
	}, sessionID, nil
}

// RevokeFamily marks every record in one login lineage revoked.
func (l *TokenLedger) RevokeFamily(ctx context.Context, family, reason string) error {
	if err := l.tokens.RevokeFamily(ctx, family, reason); err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	return nil
}

// RevokeAllForUser marks every live record for the user revoked.
func (l *TokenLedger) RevokeAllForUser(ctx context.Context, userID int64, reason string) error {
	if err := l.tokens.RevokeAllForUser(ctx, userID, reason); err != nil {
		return fmt.Errorf("revoke all for user: %w", err)
	}
	return nil
}

// CleanupExpired removes expired rows and revoked rows past the
// retention window, keeping recent revocations as forensic evidence.
func (l *TokenLedger) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := l.tokens.DeleteExpired(ctx, l.retention)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired tokens: %w", err)
	}
	return count, nil
}

func (l *TokenLedger) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if l == nil || l.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return l.tracer.Start(ctx, name)
}
