package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ResetCodeCleaner clears password reset codes whose expiry has passed
type ResetCodeCleaner interface {
	ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically clears expired reset codes. Login attempts are
// kept indefinitely and are not touched here.
type CleanupManager struct {
	cleaner  ResetCodeCleaner
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewCleanupManager(cleaner ResetCodeCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		cleaner:  cleaner,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one pass immediately, then one per interval until Stop is
// called or ctx is cancelled. It blocks; run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := cm.cleaner.ClearExpiredResetCodes(cleanupCtx, cm.now())
	if err != nil {
		cm.logger.Error("failed to clear expired reset codes", slog.Any("error", err))
		return
	}

	if cleared > 0 {
		cm.logger.Info("expired reset codes cleared", slog.Int64("rows", cleared))
	}
}

// Stop signals the cleanup loop to exit. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
