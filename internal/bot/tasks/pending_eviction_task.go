package tasks

import (
	"context"
)

// newPendingEvictionTask drops approval requests nobody answered in time.
func newPendingEvictionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "pending_eviction")

	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		evicted := deps.Pending.EvictExpired()
		if evicted > 0 {
			log.InfoContext(ctx, "Evicted expired pending items", "evicted", evicted, "remaining", deps.Pending.Len())
		} else {
			log.DebugContext(ctx, "No expired pending items", "remaining", deps.Pending.Len())
		}
		return nil
	}
}
