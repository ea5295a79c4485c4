package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const backupPrefix = "academy_"

// Backup writes a consistent copy of the live database into dir and returns its path.
func (db *DB) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s%s.db", backupPrefix, time.Now().Format("20060102_150405"))
	target := filepath.Join(dir, name)

	// VACUUM INTO copies through SQLite, so WAL pages that are not checkpointed yet are included.
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", target, err)
	}

	if db.logger != nil {
		db.logger.Info().Str("path", target).Msg("Backup completed successfully")
	}
	return target, nil
}

// CleanupBackups removes backups in dir older than retention. It returns the number removed.
func (db *DB) CleanupBackups(dir string, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				if db.logger != nil {
					db.logger.Warn().Err(err).Str("file", e.Name()).Msg("Failed to delete old backup")
				}
				continue
			}
			if db.logger != nil {
				db.logger.Info().Str("file", e.Name()).Msg("Deleted old backup")
			}
			removed++
		}
	}
	return removed, nil
}
