// Package tasks implements the scheduled maintenance jobs of the relay.
package tasks

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/topicrelay/internal/database"
	"github.com/edgard/topicrelay/internal/routing"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Pending *routing.PendingStore
	Clock   clockwork.Clock

	// DeliveryRetention is how long delivery records are kept.
	DeliveryRetention time.Duration
}
