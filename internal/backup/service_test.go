package backup

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	backups   int
	cleanups  int
	backupErr error
	retention time.Duration
}

func (f *fakeStore) Backup(ctx context.Context, dir string) (string, error) {
	f.backups++
	return dir + "/academy_20260101_030000.db", f.backupErr
}

func (f *fakeStore) CleanupBackups(dir string, retention time.Duration) (int, error) {
	f.cleanups++
	f.retention = retention
	return 1, nil
}

func TestRun(t *testing.T) {
	logger := zerolog.New(io.Discard)
	store := &fakeStore{}
	svc := NewBackupService(store, Config{Dir: t.TempDir(), Retention: 48 * time.Hour}, &logger)

	svc.Run()
	assert.Equal(t, 1, store.backups)
	assert.Equal(t, 1, store.cleanups)
	assert.Equal(t, 48*time.Hour, store.retention)

	// A failed snapshot still prunes.
	store.backupErr = errors.New("disk full")
	svc.Run()
	assert.Equal(t, 2, store.cleanups)
}

func TestSchedule(t *testing.T) {
	logger := zerolog.New(io.Discard)
	c := cron.New()

	svc := NewBackupService(&fakeStore{}, Config{Schedule: "0 3 * * *", Dir: t.TempDir()}, &logger)
	require.NoError(t, svc.Schedule(c))
	assert.Len(t, c.Entries(), 1)

	bad := NewBackupService(&fakeStore{}, Config{Schedule: "not a spec", Dir: t.TempDir()}, &logger)
	assert.Error(t, bad.Schedule(c))
}
