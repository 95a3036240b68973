package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/edgard/topicrelay/internal/config"
	"github.com/edgard/topicrelay/internal/routing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SOURCE_CHAT_ID", "-1001")
	t.Setenv("DEST_CHAT_ID", "-1002")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_IDS", " 5, 6,,")
	t.Setenv("BOT_USERNAME", "@relay_bot")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.SourceChatID != -1001 || cfg.Telegram.DestChatID != -1002 {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if !reflect.DeepEqual(cfg.Telegram.AdminIDs, []int64{5, 6}) {
		t.Errorf("admin ids = %v, want [5 6]", cfg.Telegram.AdminIDs)
	}
	if cfg.Telegram.BotUsername != "relay_bot" {
		t.Errorf("bot username = %q, want relay_bot", cfg.Telegram.BotUsername)
	}
	if len(cfg.Routing.Topics) != 9 || len(cfg.Routing.Keywords) != 8 {
		t.Errorf("got %d topics and %d keyword entries, want 9 and 8", len(cfg.Routing.Topics), len(cfg.Routing.Keywords))
	}
	if cfg.Routing.AlbumQuietPeriod != 1200*time.Millisecond || cfg.Routing.PendingTTL != 24*time.Hour {
		t.Errorf("routing timings = %v / %v", cfg.Routing.AlbumQuietPeriod, cfg.Routing.PendingTTL)
	}
	if cfg.Routing.DefaultMode != "auto" || cfg.Routing.DefaultTopic != "umumiy" {
		t.Errorf("routing defaults = %q / %q", cfg.Routing.DefaultMode, cfg.Routing.DefaultTopic)
	}
	if task := cfg.Scheduler.Tasks[config.TaskPendingEviction]; !task.Enabled || task.Schedule == "" {
		t.Errorf("pending eviction task = %+v", task)
	}
	if cfg.Messages.NotAdminAlert != "⛔ Admin emas" {
		t.Errorf("not admin alert = %q", cfg.Messages.NotAdminAlert)
	}
	if !cfg.Telegram.IsAdmin(6) || cfg.Telegram.IsAdmin(7) {
		t.Error("IsAdmin() does not match admin_ids")
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
  json: true
telegram:
  token: "file-token"
  source_chat_id: -1
  dest_chat_id: -2
  admin_ids: [42]
routing:
  default_mode: manual
  default_topic: b
  fallback_topic: a
  album_quiet_period: 2s
  topics:
    - key: a
      thread_id: 10
    - key: b
      thread_id: 20
      label: Bee
  keywords:
    - topic: b
      words: [bee, honey]
    - topic: a
      words: [ant]
messages:
  welcome: "hi"
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Errorf("logger = %+v", cfg.Logger)
	}
	if cfg.Routing.AlbumQuietPeriod != 2*time.Second {
		t.Errorf("album quiet period = %v, want 2s", cfg.Routing.AlbumQuietPeriod)
	}
	wantTopics := []routing.Topic{{Key: "a", ThreadID: 10, Label: "a"}, {Key: "b", ThreadID: 20, Label: "Bee"}}
	if got := cfg.Routing.TopicList(); !reflect.DeepEqual(got, wantTopics) {
		t.Errorf("TopicList() = %+v, want %+v", got, wantTopics)
	}
	wantState := routing.State{
		Mode:         routing.ModeManual,
		DefaultTopic: "b",
		Keywords: routing.KeywordTable{
			{Topic: "b", Keywords: []string{"bee", "honey"}},
			{Topic: "a", Keywords: []string{"ant"}},
		},
	}
	if got := cfg.Routing.DefaultState(); !reflect.DeepEqual(got, wantState) {
		t.Errorf("DefaultState() = %+v, want %+v", got, wantState)
	}
	if cfg.Messages.Welcome != "hi" || cfg.Messages.AdminPanel != config.DefaultMessages.AdminPanel {
		t.Errorf("messages not merged with defaults: %q / %q", cfg.Messages.Welcome, cfg.Messages.AdminPanel)
	}
	if cfg.Scheduler.Tasks[config.TaskSQLMaintenance].Enabled {
		t.Error("sql_maintenance should be disabled by the file")
	}
	if !cfg.Scheduler.Tasks[config.TaskPendingEviction].Enabled {
		t.Error("pending_eviction should keep its default")
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "file-token"
  source_chat_id: -1
  dest_chat_id: -2
`)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("RELAY_ROUTING_DEFAULT_MODE", "manual")
	t.Setenv("RELAY_ROUTING_PENDING_CAPACITY", "7")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Telegram.Token)
	}
	if cfg.Routing.DefaultMode != "manual" || cfg.Routing.PendingCapacity != 7 {
		t.Errorf("routing = %q / %d", cfg.Routing.DefaultMode, cfg.Routing.PendingCapacity)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing token",
			body: "telegram:\n  source_chat_id: -1\n  dest_chat_id: -2\n",
		},
		{
			name: "missing destination",
			body: "telegram:\n  token: t\n  source_chat_id: -1\n",
		},
		{
			name: "unknown mode",
			body: "telegram:\n  token: t\n  source_chat_id: -1\n  dest_chat_id: -2\nrouting:\n  default_mode: sometimes\n",
		},
		{
			name: "default topic not configured",
			body: "telegram:\n  token: t\n  source_chat_id: -1\n  dest_chat_id: -2\nrouting:\n  default_topic: nowhere\n",
		},
		{
			name: "keywords for unknown topic",
			body: "telegram:\n  token: t\n  source_chat_id: -1\n  dest_chat_id: -2\nrouting:\n  keywords:\n    - topic: ghost\n      words: [boo]\n",
		},
		{
			name: "duplicate topic keys",
			body: "telegram:\n  token: t\n  source_chat_id: -1\n  dest_chat_id: -2\nrouting:\n  topics:\n    - key: umumiy\n    - key: umumiy\n",
		},
		{
			name: "quiet period too short",
			body: "telegram:\n  token: t\n  source_chat_id: -1\n  dest_chat_id: -2\nrouting:\n  album_quiet_period: 1ms\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "")
			t.Setenv("SOURCE_CHAT_ID", "")
			t.Setenv("DEST_CHAT_ID", "")

			_, err := config.LoadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("LoadConfig() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	setRequiredEnv(t)
	if _, err := config.LoadConfig(writeConfig(t, "logger: [unterminated")); err == nil {
		t.Fatal("LoadConfig() succeeded on malformed YAML")
	}
}
