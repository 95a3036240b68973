package tasks_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/topicrelay/internal/bot/tasks"
	"github.com/edgard/topicrelay/internal/config"
	"github.com/edgard/topicrelay/internal/database"
	"github.com/edgard/topicrelay/internal/routing"
)

func newDeps(t *testing.T, clock clockwork.Clock) tasks.TaskDeps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.NewDB(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return tasks.TaskDeps{
		Logger:            logger,
		Store:             database.NewStore(db, logger),
		Pending:           routing.NewPendingStore(clock, time.Hour, 10, nil),
		Clock:             clock,
		DeliveryRetention: 7 * 24 * time.Hour,
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()
	registered := tasks.RegisterAllTasks(newDeps(t, clockwork.NewFakeClock()))

	for _, name := range []string{config.TaskPendingEviction, config.TaskSQLMaintenance} {
		if registered[name] == nil {
			t.Errorf("task %q is not registered", name)
		}
	}
}

func TestPendingEvictionTask(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	deps := newDeps(t, clock)
	task := tasks.RegisterAllTasks(deps)[config.TaskPendingEviction]

	deps.Pending.Enqueue(1, routing.SingleUnit(routing.Post{ID: 1, Text: "a"}))
	deps.Pending.Enqueue(2, routing.SingleUnit(routing.Post{ID: 2, Text: "b"}))
	clock.Advance(90 * time.Minute)
	deps.Pending.Enqueue(3, routing.SingleUnit(routing.Post{ID: 3, Text: "c"}))

	if err := task(context.Background()); err != nil {
		t.Fatalf("task error = %v", err)
	}
	if got := deps.Pending.Len(); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
	if _, ok := deps.Pending.Resolve(3); !ok {
		t.Error("fresh item was evicted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := task(ctx); err == nil {
		t.Error("task with cancelled context succeeded")
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC().Truncate(time.Second)
	clock := clockwork.NewFakeClockAt(now)
	deps := newDeps(t, clock)
	ctx := context.Background()

	for i, age := range []time.Duration{time.Hour, 10 * 24 * time.Hour, 30 * 24 * time.Hour} {
		d := routing.Delivery{
			ID:       string(rune('a' + i)),
			TopicKey: "uy",
			Mode:     routing.ModeAuto,
			Status:   routing.DeliverySent,
			At:       now.Add(-age),
		}
		if err := deps.Store.RecordDelivery(ctx, d); err != nil {
			t.Fatalf("RecordDelivery() error = %v", err)
		}
	}

	task := tasks.RegisterAllTasks(deps)[config.TaskSQLMaintenance]
	if err := task(ctx); err != nil {
		t.Fatalf("task error = %v", err)
	}

	stats, err := deps.Store.GetDeliveryStats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("GetDeliveryStats() error = %v", err)
	}
	if len(stats) != 1 || stats[0].Sent != 1 {
		t.Errorf("stats after pruning = %+v, want one recent delivery", stats)
	}
}
