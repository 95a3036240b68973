package bot

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/edgard/topicrelay/internal/bot/tasks"
	"github.com/edgard/topicrelay/internal/config"
)

func TestScheduler_StartRegistersEnabledTasks(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noop := func(context.Context) error { return nil }

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":  {Enabled: true, Schedule: "0 */10 * * * *"},
		"disabled": {Enabled: false, Schedule: "0 */10 * * * *"},
		"unknown":  {Enabled: true, Schedule: "0 */10 * * * *"},
		"bad_cron": {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"enabled":  noop,
		"disabled": noop,
		"bad_cron": noop,
	}

	s, err := NewScheduler(logger, cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if got := s.Jobs(); !slices.Equal(got, []string{"enabled"}) {
		t.Errorf("Jobs() = %v, want [enabled]", got)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start() succeeded")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on stopped scheduler error = %v", err)
	}
}

func TestScheduler_NoTasks(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler(nil, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want none", s.Jobs())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
