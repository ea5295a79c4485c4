package config

import (
	"context"
	"os"
	"time"
)

// WatchPolicy polls the config file and calls onUpdate with the policy section
// whenever the file changes. Only the policy section is hot reloaded; other
// settings need a restart.
func WatchPolicy(ctx context.Context, path string, interval time.Duration, onUpdate func(PolicyConfig)) error {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg.Policy)
				}
			}
		}
	}()

	return nil
}
