package imagecache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"github.com/zapdesk/zapdesk/pkg/logger"
)

// PruneLoop deletes cached images older than maxAge, on the given cron
// schedule. Blocks until ctx is cancelled; run it in a goroutine.
func (c *Cache) PruneLoop(ctx context.Context, schedule string, maxAge time.Duration) {
	if _, err := gronx.NextTick(schedule, false); err != nil {
		logger.ErrorCF("imagecache", "Invalid prune schedule, pruning disabled", map[string]interface{}{
			"schedule": schedule, "error": err.Error(),
		})
		return
	}

	logger.InfoCF("imagecache", "Prune loop started", map[string]interface{}{
		"schedule": schedule, "max_age": maxAge.String(),
	})

	for {
		next, err := gronx.NextTick(schedule, false)
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			c.Prune(maxAge)
		}
	}
}

// Prune removes every cached image whose modification time is older than
// maxAge. Returns the number of files removed.
func (c *Cache) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		logger.WarnCF("imagecache", "Prune scan failed", map[string]interface{}{
			"error": err.Error(),
		})
		return 0
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jpg" {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
			removed++
		}
	}

	if removed > 0 {
		logger.InfoCF("imagecache", "Pruned stale images", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed
}
