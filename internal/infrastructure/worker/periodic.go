package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// periodicWorker runs one task on a fixed interval until stopped
type periodicWorker struct {
	name     string
	interval time.Duration
	runOnce  bool // run immediately on start as well
	task     func(ctx context.Context) error
	logger   *zap.Logger

	mu             sync.RWMutex
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	lastRun        time.Time
	processedCount int
	failedCount    int
	lastError      error
}

func (w *periodicWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", w.name)
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("%s already running", w.name)
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("Worker loop started", zap.String("worker_name", w.name), zap.Duration("interval", w.interval))

	go w.pollLoop(runCtx, w.done)
	return nil
}

func (w *periodicWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("Worker loop stopped",
		zap.String("worker_name", w.name),
		zap.Int("processed_count", w.processedCount),
		zap.Int("failed_count", w.failedCount))
	return nil
}

func (w *periodicWorker) Name() string {
	return w.name
}

func (w *periodicWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if w.runOnce {
		w.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *periodicWorker) tick(ctx context.Context) {
	err := w.task(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = time.Now()
	if err != nil {
		w.failedCount++
		w.lastError = err
		w.logger.Error("Worker task failed", zap.String("worker_name", w.name), zap.Error(err))
		return
	}
	w.processedCount++
}

// Stats is a snapshot of a worker's progress
type Stats struct {
	LastRun        time.Time
	ProcessedCount int
	FailedCount    int
	LastError      error
}

func (w *periodicWorker) stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		LastRun:        w.lastRun,
		ProcessedCount: w.processedCount,
		FailedCount:    w.failedCount,
		LastError:      w.lastError,
	}
}
