package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingCleaner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingCleaner) CleanupTemp(context.Context, time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 2, c.err
}

func (c *countingCleaner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestTempCleanupWorker_RunsOnStart(t *testing.T) {
	cleaner := &countingCleaner{}
	w := NewTempCleanupWorker(TempCleanupWorkerConfig{Interval: time.Hour, MaxAge: time.Minute}, cleaner, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return cleaner.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Error(t, w.Start(context.Background()), "second start must fail")

	require.NoError(t, w.Stop())
	assert.Equal(t, 1, w.Stats().ProcessedCount)
	assert.NoError(t, w.Stop(), "stop is idempotent")
}

func TestTempCleanupWorker_CountsFailures(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("disk gone")}
	w := NewTempCleanupWorker(TempCleanupWorkerConfig{Interval: 5 * time.Millisecond}, cleaner, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return cleaner.count() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.FailedCount, 2)
	assert.EqualError(t, stats.LastError, "disk gone")
}

type fileBackuper struct{}

func (fileBackuper) Backup(_ context.Context, dest string) error {
	return os.WriteFile(dest, []byte("snapshot"), 0o644)
}

func TestBackupWorker_PrunesOldSnapshots(t *testing.T) {
	dir := t.TempDir()
	w := NewBackupWorker(BackupWorkerConfig{Interval: time.Hour, Dir: dir, Keep: 2}, fileBackuper{}, zap.NewNop())

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		w.now = func() time.Time { return at }
		require.NoError(t, w.backup(context.Background()))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "reimbursement-20240501-020000.db", entries[0].Name())
	assert.Equal(t, "reimbursement-20240501-030000.db", entries[1].Name())

	_, err = os.Stat(filepath.Join(dir, "reimbursement-20240501-000000.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	cleaner := &countingCleaner{}
	m.Register(NewTempCleanupWorker(TempCleanupWorkerConfig{Interval: time.Hour}, cleaner, zap.NewNop()))
	assert.Equal(t, 1, m.GetWorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
}
