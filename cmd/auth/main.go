package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fabworks/fabworks-auth/internal/adapter/breach"
	cacheadapter "github.com/fabworks/fabworks-auth/internal/adapter/cache"
	"github.com/fabworks/fabworks-auth/internal/bootstrap"
	"github.com/fabworks/fabworks-auth/internal/config"
	httptransport "github.com/fabworks/fabworks-auth/internal/http"
	"github.com/fabworks/fabworks-auth/internal/http/handler"
	"github.com/fabworks/fabworks-auth/internal/http/middleware"
	"github.com/fabworks/fabworks-auth/internal/jwt"
	"github.com/fabworks/fabworks-auth/internal/password"
	"github.com/fabworks/fabworks-auth/internal/repository"
	"github.com/fabworks/fabworks-auth/internal/server"
	"github.com/fabworks/fabworks-auth/internal/service"
	"github.com/fabworks/fabworks-auth/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newRedisClient,
			newUserRepository,
			newRefreshTokenRepository,
			newSessionStore,
			newChallengeStore,
			newHasher,
			newValidator,
			newBreachClient,
			newTokenGenerator,
			newTokenLedger,
			newAuthService,
			newJanitor,
			newRateLimiter,
			newAuthMiddleware,
			handler.NewAuthHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startJanitor, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool)
}

func newSessionStore(client redis.UniversalClient) repository.SessionStore {
	return cacheadapter.NewRedisSessionStore(client)
}

func newChallengeStore(client redis.UniversalClient) repository.ChallengeStore {
	return cacheadapter.NewRedisChallengeStore(client)
}

func newHasher(cfg config.Config) *password.Hasher {
	return password.NewHasher(password.Params{
		MemoryKiB: cfg.ArgonMemoryKiB,
		Time:      cfg.ArgonTime,
		Threads:   cfg.ArgonThreads,
	})
}

func newValidator(cfg config.Config) password.Validator {
	v := password.DefaultValidator()
	v.MinLength = cfg.PasswordMinLength
	v.MinScore = cfg.PasswordMinScore
	return v
}

func newBreachClient(cfg config.Config, logger *zap.Logger) *breach.Client {
	httpClient := &http.Client{Timeout: cfg.BreachCheckTimeout}
	return breach.NewClient(cfg.BreachCheckURL, httpClient, cfg.BreachCheckFailOpen, logger)
}

func newTokenGenerator(cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.ServiceName,
	)
}

func newTokenLedger(tokens repository.RefreshTokenRepository, generator *jwt.Generator, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *service.TokenLedger {
	return service.NewTokenLedger(tokens, generator, node, cfg.RefreshTokenTTL, cfg.RevokedRetention, logger)
}

func newAuthService(
	users repository.UserRepository,
	ledger *service.TokenLedger,
	sessions repository.SessionStore,
	challenges repository.ChallengeStore,
	hasher *password.Hasher,
	validator password.Validator,
	breachClient *breach.Client,
	generator *jwt.Generator,
	cfg config.Config,
	logger *zap.Logger,
) *service.AuthService {
	return service.NewAuthService(
		users,
		ledger,
		sessions,
		challenges,
		hasher,
		validator,
		breachClient,
		generator,
		cfg.SessionTTL,
		cfg.MFAChallengeTTL,
		logger,
	)
}

func newJanitor(ledger *service.TokenLedger, cfg config.Config, logger *zap.Logger) *service.Janitor {
	return service.NewJanitor(ledger, cfg.CleanupInterval, logger)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAuthMiddleware(authService *service.AuthService) *middleware.Auth {
	return &middleware.Auth{AuthService: authService}
}

func startJanitor(lc fx.Lifecycle, janitor *service.Janitor) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			go janitor.Run(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
