package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"academy/internal/progress"
)

// ProgressCache keeps enrollment progress snapshots in Redis. A nil client or a zero TTL
// disables it; every method is then a miss or a no-op.
type ProgressCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewProgressCache constructs the cache.
func NewProgressCache(client *redis.Client, ttl time.Duration) *ProgressCache {
	return &ProgressCache{redis: client, ttl: ttl}
}

func progressKey(userID, courseID int64) string {
	return fmt.Sprintf("progress:%d:%d", userID, courseID)
}

func (c *ProgressCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get returns the cached snapshot and whether it was found.
func (c *ProgressCache) Get(ctx context.Context, userID, courseID int64) (progress.Snapshot, bool) {
	var snap progress.Snapshot
	if !c.enabled() {
		return snap, false
	}
	val, err := c.redis.Get(ctx, progressKey(userID, courseID)).Result()
	if err != nil {
		return snap, false
	}
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return snap, false
	}
	return snap, true
}

// Set stores the snapshot for the configured TTL.
func (c *ProgressCache) Set(ctx context.Context, userID, courseID int64, snap progress.Snapshot) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, progressKey(userID, courseID), data, c.ttl).Err()
}

// Invalidate drops the user's snapshot for the course.
func (c *ProgressCache) Invalidate(ctx context.Context, userID, courseID int64) error {
	if !c.enabled() {
		return nil
	}
	return c.redis.Del(ctx, progressKey(userID, courseID)).Err()
}

// Ping checks the Redis connection. Without a client it reports nil.
func (c *ProgressCache) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
