package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"go.uber.org/zap"
)

const backupPrefix = "reimbursement-"

// BackupWorkerConfig holds configuration for the database backup worker
type BackupWorkerConfig struct {
	Interval time.Duration
	Dir      string
	Keep     int
}

// BackupWorker writes periodic database snapshots and prunes old ones
type BackupWorker struct {
	*periodicWorker
	cfg      BackupWorkerConfig
	backuper port.Backuper
	now      func() time.Time
}

// NewBackupWorker creates a new backup worker
func NewBackupWorker(cfg BackupWorkerConfig, backuper port.Backuper, logger *zap.Logger) *BackupWorker {
	if cfg.Keep <= 0 {
		cfg.Keep = 7
	}
	w := &BackupWorker{cfg: cfg, backuper: backuper, now: time.Now}
	w.periodicWorker = &periodicWorker{
		name:     "BackupWorker",
		interval: cfg.Interval,
		logger:   logger,
		task:     w.backup,
	}
	return w
}

func (w *BackupWorker) backup(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}

	dest := filepath.Join(w.cfg.Dir, backupPrefix+w.now().Format("20060102-150405")+".db")
	if err := w.backuper.Backup(ctx, dest); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	w.logger.Info("Database backup written", zap.String("path", dest))

	return w.prune()
}

// prune keeps only the newest cfg.Keep snapshots
func (w *BackupWorker) prune() error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".db") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= w.cfg.Keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-w.cfg.Keep] {
		if err := os.Remove(filepath.Join(w.cfg.Dir, name)); err != nil {
			w.logger.Warn("Failed to remove old backup", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

// Stats returns the worker's progress counters
func (w *BackupWorker) Stats() Stats {
	return w.stats()
}
