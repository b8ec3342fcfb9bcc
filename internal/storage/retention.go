package storage

import (
	"context"
	"log/slog"
	"time"
)

// SharedRetention is how long uploaded share payloads are kept.
const SharedRetention = 8 * time.Hour

// Sweeper removes objects under a prefix older than a cutoff.
type Sweeper interface {
	DeleteOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}

// PurgeExpired deletes everything under prefix older than maxAge.
func PurgeExpired(ctx context.Context, s Sweeper, prefix string, maxAge time.Duration, now time.Time) int {
	removed, err := s.DeleteOlderThan(ctx, prefix, now.Add(-maxAge))
	if err != nil {
		slog.Error("retention: sweep failed", "prefix", prefix, "removed", removed, "error", err)
		return removed
	}
	if removed > 0 {
		slog.Info("retention: removed expired objects", "prefix", prefix, "count", removed)
	}
	return removed
}

// StartRetentionLoop sweeps prefix every interval until ctx ends.
func StartRetentionLoop(ctx context.Context, s Sweeper, prefix string, maxAge, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("retention: shutting down")
				return
			case <-ticker.C:
				PurgeExpired(ctx, s, prefix, maxAge, time.Now())
			}
		}
	}()
}
