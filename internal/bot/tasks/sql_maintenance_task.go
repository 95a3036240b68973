package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// defaultDeliveryRetention applies when TaskDeps.DeliveryRetention is unset.
const defaultDeliveryRetention = 30 * 24 * time.Hour

// newSQLMaintenanceTask prunes old delivery records and then runs database maintenance.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")
	retention := deps.DeliveryRetention
	if retention <= 0 {
		retention = defaultDeliveryRetention
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := clock.Now()

		pruned, err := deps.Store.PruneDeliveries(ctx, startTime.Add(-retention))
		if err != nil {
			log.ErrorContext(ctx, "Delivery pruning failed", "error", err)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", clock.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed successfully", "pruned_deliveries", pruned, "duration", clock.Since(startTime))
		return nil
	}
}
