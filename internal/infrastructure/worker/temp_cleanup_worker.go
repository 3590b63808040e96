package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TempCleaner removes staged uploads that were never linked
type TempCleaner interface {
	CleanupTemp(ctx context.Context, maxAge time.Duration) (int, error)
}

// TempCleanupWorkerConfig holds configuration for the temp cleanup worker
type TempCleanupWorkerConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// DefaultTempCleanupWorkerConfig returns default configuration
func DefaultTempCleanupWorkerConfig() TempCleanupWorkerConfig {
	return TempCleanupWorkerConfig{
		Interval: time.Hour,
		MaxAge:   24 * time.Hour,
	}
}

// TempCleanupWorker periodically deletes stale temp attachments
type TempCleanupWorker struct {
	*periodicWorker
}

// NewTempCleanupWorker creates a new temp cleanup worker
func NewTempCleanupWorker(cfg TempCleanupWorkerConfig, cleaner TempCleaner, logger *zap.Logger) *TempCleanupWorker {
	w := &TempCleanupWorker{}
	w.periodicWorker = &periodicWorker{
		name:     "TempCleanupWorker",
		interval: cfg.Interval,
		runOnce:  true,
		logger:   logger,
		task: func(ctx context.Context) error {
			removed, err := cleaner.CleanupTemp(ctx, cfg.MaxAge)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("Stale temp attachments removed", zap.Int("count", removed))
			}
			return nil
		},
	}
	return w
}

// Stats returns the worker's progress counters
func (w *TempCleanupWorker) Stats() Stats {
	return w.stats()
}
