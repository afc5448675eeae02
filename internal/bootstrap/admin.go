package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fabworks/fabworks-auth/internal/config"
	"github.com/fabworks/fabworks-auth/internal/domain"
	"github.com/fabworks/fabworks-auth/internal/password"
	"github.com/fabworks/fabworks-auth/internal/repository"
)

const adminRole = "admin"

// EnsureAdmin creates a default admin user for dev/e2e if missing. A
// deployment that manages accounts elsewhere leaves ADMIN_EMAIL unset
// and this becomes a no-op.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, hasher *password.Hasher, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, hasher, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, hasher *password.Hasher, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	user := domain.User{
		ID:           node.Generate().Int64(),
		OrgID:        cfg.DefaultOrgID,
		Email:        email,
		PasswordHash: hashed,
		Name:         "Admin",
		Role:         adminRole,
		Status:       domain.ActiveStatus,
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("org_id", cfg.DefaultOrgID),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
