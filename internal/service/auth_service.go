package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fabworks/fabworks-auth/internal/adapter/breach"
	"github.com/fabworks/fabworks-auth/internal/domain"
	"github.com/fabworks/fabworks-auth/internal/jwt"
	"github.com/fabworks/fabworks-auth/internal/mfa"
	"github.com/fabworks/fabworks-auth/internal/password"
	"github.com/fabworks/fabworks-auth/internal/repository"
)

// AuthService orchestrates the login / MFA / refresh / logout protocol
// on top of the credential, ledger, session, and challenge components.
type AuthService struct {
	users      repository.UserRepository
	ledger     *TokenLedger
	sessions   repository.SessionStore
	challenges repository.ChallengeStore
	hasher     *password.Hasher
	validator  password.Validator
	breach     *breach.Client
	jwt        *jwt.Generator

	sessionTTL   time.Duration
	challengeTTL time.Duration

	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(
	users repository.UserRepository,
	ledger *TokenLedger,
	sessions repository.SessionStore,
	challenges repository.ChallengeStore,
	hasher *password.Hasher,
	validator password.Validator,
	breachClient *breach.Client,
	generator *jwt.Generator,
	sessionTTL, challengeTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		ledger:       ledger,
		sessions:     sessions,
		challenges:   challenges,
		hasher:       hasher,
		validator:    validator,
		breach:       breachClient,
		jwt:          generator,
		sessionTTL:   sessionTTL,
		challengeTTL: challengeTTL,
		logger:       logger,
		tracer:       otel.Tracer("github.com/fabworks/fabworks-auth/internal/service"),
	}
}

// Login verifies the primary credential. Accounts with a second factor
// enrolled get a challenge token instead of credentials; everyone else
// gets tokens and a session directly.
func (s *AuthService) Login(ctx context.Context, email, pass, ip, userAgent string) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Burn the same hashing cost as a mismatch so response
			// timing does not reveal whether the account exists.
			s.hasher.VerifyDecoy(pass)
			s.audit("login.failure", "email", normalized, "reason", "unknown_account")
			return nil, errInvalidCredentials()
		}
		span.RecordError(err)
		return nil, errServiceUnavailable()
	}

	valid, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		// Malformed hash is treated as a plain mismatch so nothing about
		// the stored credential leaks through the error path.
		s.log().Warn("stored password hash unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if !valid {
		s.audit("login.failure", "user_id", user.ID, "reason", "bad_password")
		return nil, errInvalidCredentials()
	}

	if !user.CanAuthenticate() {
		s.audit("login.failure", "user_id", user.ID, "reason", "account_"+strings.ToLower(user.Status))
		return nil, errAccountUnusable()
	}

	if user.MFAEnabled {
		challenge, err := s.challenges.Create(ctx, user.ID, s.challengeTTL)
		if err != nil {
			span.RecordError(err)
			return nil, errServiceUnavailable()
		}
		s.audit("login.mfa_pending", "user_id", user.ID)
		return &LoginResult{RequiresMFA: true, MFAChallengeToken: challenge}, nil
	}

	pair, err := s.establishSession(ctx, user, false, ip, userAgent)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("login.success", "user_id", user.ID, "org_id", user.OrgID)
	return &LoginResult{TokenPair: pair}, nil
}

// VerifyMFA completes a pending challenge with a TOTP code or a
// single-use backup code. A wrong code leaves the challenge usable until
// its TTL; success consumes it so it cannot be replayed.
func (s *AuthService) VerifyMFA(ctx context.Context, challengeToken, code, ip, userAgent string) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyMFA")
	defer span.End()

	userID, found, err := s.challenges.Resolve(ctx, challengeToken)
	if err != nil {
		span.RecordError(err)
		return nil, errServiceUnavailable()
	}
	if !found {
		return nil, errInvalidCredentials()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidCredentials()
		}
		span.RecordError(err)
		return nil, errServiceUnavailable()
	}
	if !user.CanAuthenticate() {
		return nil, errAccountUnusable()
	}

	if !s.verifySecondFactor(ctx, user, strings.TrimSpace(code)) {
		s.audit("mfa.failure", "user_id", user.ID)
		return nil, errInvalidCredentials()
	}

	if err := s.challenges.Consume(ctx, challengeToken); err != nil {
		span.RecordError(err)
		return nil, errServiceUnavailable()
	}

	pair, err := s.establishSession(ctx, user, true, ip, userAgent)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("mfa.success", "user_id", user.ID, "org_id", user.OrgID)
	return &LoginResult{TokenPair: pair}, nil
}

// Refresh rotates a refresh token. Reuse of a rotated-away token has
// already burned the family by the time the ledger reports it; the
// caller gets a distinct re-authenticate signal rather than a generic
// credential error.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, ip, userAgent string) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	v, err := s.ledger.Validate(ctx, rawRefresh)
	if err != nil {
		return nil, s.mapLedgerError(ctx, span, err)
	}

	user, err := s.users.GetByID(ctx, v.Record.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidToken()
		}
		span.RecordError(err)
		return nil, errServiceUnavailable()
	}
	if !user.CanAuthenticate() {
		return nil, errAccountUnusable()
	}

	// Tokens for MFA-enabled accounts only ever exist past a verified
	// second factor, so the rotated access token keeps that claim.
	pair, newSessionID, err := s.ledger.Rotate(ctx, v.Record, user, user.MFAEnabled, ip, userAgent)
	if err != nil {
		return nil, s.mapLedgerError(ctx, span, err)
	}

	now := time.Now().UTC()
	sess := domain.Session{
		UserID:       user.ID,
		SessionID:    newSessionID,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    ip,
		UserAgent:    userAgent,
		MFAVerified:  user.MFAEnabled,
	}
	if err := s.sessions.Create(ctx, sess, s.sessionTTL); err != nil {
		span.RecordError(err)
		return nil, errServiceUnavailable()
	}
	if err := s.sessions.Delete(ctx, user.ID, v.Record.SessionID); err != nil {
		s.log().Warn("drop superseded session failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	s.audit("refresh.success", "user_id", user.ID, "family", v.Record.Family)
	return &LoginResult{TokenPair: pair}, nil
}

// Logout revokes the presented token's whole family and drops its
// session. Invalid tokens are a no-op: logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	v, err := s.ledger.Validate(ctx, rawRefresh)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenReused) {
			return nil
		}
		span.RecordError(err)
		return errServiceUnavailable()
	}

	if err := s.ledger.RevokeFamily(ctx, v.Record.Family, domain.RevokedLogout); err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}
	if err := s.sessions.Delete(ctx, v.Record.UserID, v.Record.SessionID); err != nil {
		s.log().Warn("delete session on logout failed", zap.Int64("user_id", v.Record.UserID), zap.Error(err))
	}

	s.audit("logout.success", "user_id", v.Record.UserID, "family", v.Record.Family)
	return nil
}

// LogoutAll revokes every refresh token and session for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutAll")
	defer span.End()

	if err := s.ledger.RevokeAllForUser(ctx, userID, domain.RevokedLogoutAll); err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}
	if err := s.sessions.DeleteAll(ctx, userID); err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}
	s.audit("logout_all.success", "user_id", userID)
	return nil
}

// ChangePassword verifies the current credential, gates the replacement
// on strength and breach policy, swaps the hash, and forces re-login
// everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errInvalidCredentials()
		}
		span.RecordError(err)
		return errServiceUnavailable()
	}

	valid, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		s.log().Warn("stored password hash unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if !valid {
		s.audit("password.change.failure", "user_id", user.ID, "reason", "bad_current_password")
		return errInvalidCredentials()
	}

	if result := s.validator.Validate(next); !result.IsValid {
		return errWeakPassword(strings.Join(result.Errors, "; "))
	}
	breached, err := s.breach.IsBreached(ctx, next)
	if err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}
	if breached {
		return errWeakPassword("password appears in known data breaches")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}

	if err := s.ledger.RevokeAllForUser(ctx, user.ID, domain.RevokedPassword); err != nil {
		span.RecordError(err)
		return errServiceUnavailable()
	}
	if err := s.sessions.DeleteAll(ctx, user.ID); err != nil {
		s.log().Warn("delete sessions on password change failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	s.audit("password.change.success", "user_id", user.ID)
	return nil
}

// Authenticate validates a bearer access token for request middleware:
// signature and expiry first, then a live session for its session id.
// The session is touched, sliding its expiry forward.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (*jwt.Identity, error) {
	identity, err := s.jwt.ParseAccessToken(bearer)
	if err != nil {
		return nil, errInvalidToken()
	}

	sess, err := s.sessions.Touch(ctx, identity.UserID, identity.Claims.SessionID, s.sessionTTL)
	if err != nil {
		return nil, errServiceUnavailable()
	}
	if sess == nil {
		return nil, errSessionExpired()
	}
	return identity, nil
}

// GetUserInfo returns the sanitized profile for /auth/me.
func (s *AuthService) GetUserInfo(ctx context.Context, userID int64) (UserInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserInfo{}, errInvalidToken()
		}
		return UserInfo{}, errServiceUnavailable()
	}
	return UserInfo{
		ID:         user.ID,
		OrgID:      user.OrgID,
		Email:      user.Email,
		Name:       user.Name,
		Role:       user.Role,
		Status:     user.Status,
		MFAEnabled: user.MFAEnabled,
	}, nil
}

// Sessions lists the user's live sessions.
func (s *AuthService) Sessions(ctx context.Context, userID int64) ([]domain.Session, error) {
	sessions, err := s.sessions.List(ctx, userID)
	if err != nil {
		return nil, errServiceUnavailable()
	}
	return sessions, nil
}

// RevokeSession drops one session, invalidating its access tokens.
func (s *AuthService) RevokeSession(ctx context.Context, userID int64, sessionID string) error {
	if err := s.sessions.Delete(ctx, userID, sessionID); err != nil {
		return errServiceUnavailable()
	}
	s.audit("session.revoked", "user_id", userID, "session_id", sessionID)
	return nil
}

func (s *AuthService) establishSession(ctx context.Context, user domain.User, mfaVerified bool, ip, userAgent string) (*TokenPair, error) {
	sessionID := uuid.NewString()
	family := uuid.NewString()

	pair, err := s.ledger.Issue(ctx, user, sessionID, family, mfaVerified, ip, userAgent)
	if err != nil {
		return nil, errServiceUnavailable()
	}

	now := time.Now().UTC()
	sess := domain.Session{
		UserID:       user.ID,
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    ip,
		UserAgent:    userAgent,
		MFAVerified:  mfaVerified,
	}
	if err := s.sessions.Create(ctx, sess, s.sessionTTL); err != nil {
		// Do not hand out tokens without a session behind them.
		if revokeErr := s.ledger.RevokeFamily(ctx, family, domain.RevokedAdmin); revokeErr != nil {
			s.log().Error("revoke family after session failure", zap.Error(revokeErr))
		}
		return nil, errServiceUnavailable()
	}
	return pair, nil
}

func (s *AuthService) verifySecondFactor(ctx context.Context, user domain.User, code string) bool {
	if code == "" {
		return false
	}
	if user.MFASecret != "" && mfa.VerifyTOTP(code, user.MFASecret) {
		return true
	}
	for _, hash := range user.BackupCodeHashes {
		if mfa.BackupCodeEqual(code, hash) {
			consumed, err := s.users.ConsumeBackupCode(ctx, user.ID, hash)
			if err != nil {
				s.log().Warn("consume backup code failed", zap.Int64("user_id", user.ID), zap.Error(err))
				return false
			}
			return consumed
		}
	}
	return false
}

func (s *AuthService) mapLedgerError(ctx context.Context, span trace.Span, err error) error {
	switch {
	case errors.Is(err, ErrTokenReused):
		// The distinct code tells clients to restart login; the theft
		// signal itself stays server-side.
		return errReauthenticate()
	case errors.Is(err, ErrTokenInvalid):
		return errInvalidToken()
	default:
		span.RecordError(err)
		return errServiceUnavailable()
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

// audit emits a best-effort security event log; it never participates in
// the flow's error handling.
func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
