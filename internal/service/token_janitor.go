package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically garbage-collects the refresh-token ledger.
type Janitor struct {
	ledger   *TokenLedger
	interval time.Duration
	logger   *zap.Logger
}

// NewJanitor constructs the cleanup loop driver.
func NewJanitor(ledger *TokenLedger, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{ledger: ledger, interval: interval, logger: logger}
}

// Run blocks until ctx is done, sweeping the ledger on each tick.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := j.ledger.CleanupExpired(ctx)
			if err != nil {
				j.logger.Warn("token ledger cleanup failed", zap.Error(err))
				continue
			}
			if count > 0 {
				j.logger.Info("token ledger cleanup", zap.Int64("removed", count))
			}
		}
	}
}
