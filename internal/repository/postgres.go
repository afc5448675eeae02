package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabworks/fabworks-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
)

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserSQL = `SELECT id, org_id, email, password_hash, name, role, status, mfa_enabled, mfa_secret, backup_code_hashes, created_at, updated_at
FROM users`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, org_id, email, password_hash, name, role, status, mfa_enabled, mfa_secret, backup_code_hashes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, org_id, email, password_hash, name, role, status, mfa_enabled, mfa_secret, backup_code_hashes, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.OrgID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.Status,
		user.MFAEnabled,
		user.MFASecret,
		user.BackupCodeHashes,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, hash,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password hash: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresUserRepo) ConsumeBackupCode(ctx context.Context, userID int64, codeHash string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET backup_code_hashes = array_remove(backup_code_hashes, $2), updated_at = now()
WHERE id = $1 AND $2 = ANY(backup_code_hashes)`,
		userID, codeHash,
	)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.OrgID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.Status,
		&u.MFAEnabled,
		&u.MFASecret,
		&u.BackupCodeHashes,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const selectTokenSQL = `SELECT id, user_id, token_hash, family, session_id, issued_at, expires_at, revoked, revoked_at, revoked_reason, ip_address, user_agent
FROM refresh_tokens`

const insertTokenSQL = `INSERT INTO refresh_tokens (id, user_id, token_hash, family, session_id, issued_at, expires_at, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, rec domain.RefreshTokenRecord) error {
	if _, err := r.db.Exec(ctx, insertTokenSQL,
		rec.ID,
		rec.UserID,
		rec.TokenHash,
		rec.Family,
		rec.SessionID,
		rec.IssuedAt,
		rec.ExpiresAt,
		rec.IPAddress,
		rec.UserAgent,
	); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) GetLiveByHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error) {
	row := r.db.QueryRow(ctx, selectTokenSQL+` WHERE token_hash = $1 AND revoked = false`, hash)
	rec, err := scanToken(row)
	if err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("get live refresh token: %w", err)
	}
	return rec, nil
}

func (r *PostgresRefreshTokenRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error) {
	row := r.db.QueryRow(ctx, selectTokenSQL+` WHERE token_hash = $1`, hash)
	rec, err := scanToken(row)
	if err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("get refresh token: %w", err)
	}
	return rec, nil
}

func (r *PostgresRefreshTokenRepo) Rotate(ctx context.Context, oldID int64, reason string, next domain.RefreshTokenRecord) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	// Revoke-then-insert is sequenced inside the transaction so a crash
	// between the two writes never leaves two live records in a family.
	// The revoked = false guard makes concurrent rotations mutually
	// exclusive: the loser sees zero rows and reports reuse.
	tag, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true, revoked_at = now(), revoked_reason = $2 WHERE id = $1 AND revoked = false`,
		oldID, reason,
	)
	if err != nil {
		return false, fmt.Errorf("revoke rotated token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, insertTokenSQL,
		next.ID,
		next.UserID,
		next.TokenHash,
		next.Family,
		next.SessionID,
		next.IssuedAt,
		next.ExpiresAt,
		next.IPAddress,
		next.UserAgent,
	); err != nil {
		return false, fmt.Errorf("insert rotated token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit rotation: %w", err)
	}
	return true, nil
}

func (r *PostgresRefreshTokenRepo) RevokeFamily(ctx context.Context, family, reason string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true, revoked_at = now(), revoked_reason = $2 WHERE family = $1 AND revoked = false`,
		family, reason,
	); err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, reason string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true, revoked_at = now(), revoked_reason = $2 WHERE user_id = $1 AND revoked = false`,
		userID, reason,
	); err != nil {
		return fmt.Errorf("revoke all for user: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < now() OR (revoked = true AND revoked_at < now() - $1::interval)`,
		fmt.Sprintf("%d seconds", int64(retention.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (domain.RefreshTokenRecord, error) {
	var rec domain.RefreshTokenRecord
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.TokenHash,
		&rec.Family,
		&rec.SessionID,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.Revoked,
		&rec.RevokedAt,
		&rec.RevokedReason,
		&rec.IPAddress,
		&rec.UserAgent,
	); err != nil {
		return domain.RefreshTokenRecord{}, err
	}
	return rec, nil
}
