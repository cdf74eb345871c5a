package session

import (
	"context"
	"log/slog"
	"time"
)

// ExpireCallback is called for every session removed by the sweeper.
type ExpireCallback func(userID int64)

// StartSweeper runs a background goroutine that periodically removes
// sessions idle for longer than ttl. A non-positive ttl disables it.
func StartSweeper(ctx context.Context, store *Store, ttl, interval time.Duration, onExpire ExpireCallback) {
	if ttl <= 0 {
		slog.Info("Session sweeper disabled")
		return
	}
	if interval <= 0 {
		interval = ttl / 4
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpired(store, ttl, time.Now(), onExpire)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpired(store *Store, ttl time.Duration, now time.Time, onExpire ExpireCallback) int {
	expired := store.Expired(ttl, now)
	if len(expired) == 0 {
		return 0
	}

	removed := 0
	for _, userID := range expired {
		unlock := store.Lock(userID)
		// Re-check under the user's lock: an event may have refreshed it.
		if sess, ok := store.Get(userID); ok && sess.Idle(now) > ttl {
			store.Remove(userID)
			removed++
			if onExpire != nil {
				onExpire(userID)
			}
		}
		unlock()
	}

	slog.Info("Session sweeper removed idle sessions", "count", removed)
	return removed
}
