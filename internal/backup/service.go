// Package backup schedules SQLite snapshots and prunes old ones.
package backup

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Store takes snapshots and removes expired ones.
type Store interface {
	Backup(ctx context.Context, dir string) (string, error)
	CleanupBackups(dir string, retention time.Duration) (int, error)
}

type Config struct {
	Schedule  string // cron spec
	Dir       string
	Retention time.Duration
	Timeout   time.Duration
}

type BackupService struct {
	store  Store
	config Config
	logger *zerolog.Logger

	mu sync.Mutex
}

func NewBackupService(store Store, cfg Config, logger *zerolog.Logger) *BackupService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	l := logger.With().Str("component", "backup").Logger()
	return &BackupService{store: store, config: cfg, logger: &l}
}

// Schedule registers the backup job on c.
func (s *BackupService) Schedule(c *cron.Cron) error {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.config.Schedule, s.Run); err != nil {
		return err
	}
	s.logger.Info().Str("schedule", s.config.Schedule).Str("dir", s.config.Dir).Msg("Backup job scheduled")
	return nil
}

// Run takes one snapshot and removes expired ones. Concurrent runs wait for each other.
func (s *BackupService) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	path, err := s.store.Backup(ctx, s.config.Dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Backup failed")
	} else {
		s.logger.Info().Str("path", path).Msg("Backup completed")
	}

	deleted, err := s.store.CleanupBackups(s.config.Dir, s.config.Retention)
	if err != nil {
		s.logger.Error().Err(err).Msg("Backup cleanup failed")
	} else if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Cleaned up old backups")
	}
}
