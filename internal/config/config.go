// Package config loads, defaults and validates the relay configuration from a
// YAML file, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/edgard/topicrelay/internal/routing"
)

// EnvPrefix prefixes every environment override, e.g. RELAY_ROUTING_DEFAULT_MODE.
const EnvPrefix = "RELAY"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig configures the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and the chats it relays between.
type TelegramConfig struct {
	Token        string  `mapstructure:"token"          validate:"required"`
	AdminIDs     []int64 `mapstructure:"admin_ids"      validate:"unique,dive,ne=0"`
	SourceChatID int64   `mapstructure:"source_chat_id" validate:"required"`
	DestChatID   int64   `mapstructure:"dest_chat_id"   validate:"required"`
	BotUsername  string  `mapstructure:"bot_username"`
	DropPending  bool    `mapstructure:"drop_pending_updates"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// TopicConfig maps a topic key to a forum thread of the destination chat.
type TopicConfig struct {
	Key      string `mapstructure:"key"       validate:"required"`
	ThreadID int    `mapstructure:"thread_id" validate:"gte=0"`
	Label    string `mapstructure:"label"`
}

// KeywordsConfig is one ordered entry of the keyword table.
type KeywordsConfig struct {
	Topic string   `mapstructure:"topic" validate:"required"`
	Words []string `mapstructure:"words"`
}

// RoutingConfig tunes classification, album aggregation and approval.
type RoutingConfig struct {
	Topics           []TopicConfig    `mapstructure:"topics"             validate:"unique=Key,dive"`
	Keywords         []KeywordsConfig `mapstructure:"keywords"           validate:"unique=Topic,dive"`
	DefaultMode      string           `mapstructure:"default_mode"       validate:"oneof=auto manual"`
	DefaultTopic     string           `mapstructure:"default_topic"      validate:"required"`
	FallbackTopic    string           `mapstructure:"fallback_topic"     validate:"required"`
	AlbumQuietPeriod time.Duration    `mapstructure:"album_quiet_period" validate:"min=100ms,max=1m"`
	AlbumMemory      time.Duration    `mapstructure:"album_memory"       validate:"min=1s"`
	PendingTTL       time.Duration    `mapstructure:"pending_ttl"        validate:"min=1m"`
	PendingCapacity  int              `mapstructure:"pending_capacity"   validate:"min=1"`
	CaptionLimit     int              `mapstructure:"caption_limit"      validate:"min=1,max=1024"`
	TextLimit        int              `mapstructure:"text_limit"         validate:"min=1,max=4096"`
	PreviewLimit     int              `mapstructure:"preview_limit"      validate:"min=1,max=3500"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TaskConfig enables a scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// SchedulerConfig maps task names to their schedule.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// MetricsConfig exposes Prometheus metrics. An empty address disables the listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// MessagesConfig holds every user-visible text.
type MessagesConfig struct {
	Welcome          string `mapstructure:"welcome"           validate:"required"`
	Help             string `mapstructure:"help"              validate:"required"`
	AdminPanel       string `mapstructure:"admin_panel"       validate:"required"`
	NotAdmin         string `mapstructure:"not_admin"         validate:"required"`
	NotAdminAlert    string `mapstructure:"not_admin_alert"   validate:"required"`
	OK               string `mapstructure:"ok"                validate:"required"`
	Saved            string `mapstructure:"saved"             validate:"required"`
	KeywordsReset    string `mapstructure:"keywords_reset"    validate:"required"`
	ChooseDefault    string `mapstructure:"choose_default"    validate:"required"`
	KeywordsHeader   string `mapstructure:"keywords_header"   validate:"required"`
	ModeAuto         string `mapstructure:"mode_auto"         validate:"required"`
	ModeManual       string `mapstructure:"mode_manual"       validate:"required"`
	ModeButtonFmt    string `mapstructure:"mode_button_fmt"   validate:"required"`
	DefaultButtonFmt string `mapstructure:"default_button_fmt" validate:"required"`
	ShowKeywords     string `mapstructure:"show_keywords"     validate:"required"`
	ResetKeywords    string `mapstructure:"reset_keywords"    validate:"required"`
	Back             string `mapstructure:"back"              validate:"required"`
	ApprovalHeader   string `mapstructure:"approval_header"   validate:"required"`
	ApprovalNoText   string `mapstructure:"approval_no_text"  validate:"required"`
	PendingExpired   string `mapstructure:"pending_expired"   validate:"required"`
	BadCallback      string `mapstructure:"bad_callback"      validate:"required"`
	Sent             string `mapstructure:"sent"              validate:"required"`
	SentFmt          string `mapstructure:"sent_fmt"          validate:"required"`
	SendFailed       string `mapstructure:"send_failed"       validate:"required"`
	KeywordUsageFmt  string `mapstructure:"keyword_usage_fmt" validate:"required"`
	KeywordAddedFmt  string `mapstructure:"keyword_added_fmt" validate:"required"`
	KeywordExists    string `mapstructure:"keyword_exists"    validate:"required"`
	KeywordDelFmt    string `mapstructure:"keyword_del_fmt"   validate:"required"`
	KeywordNotFound  string `mapstructure:"keyword_not_found" validate:"required"`
	UnknownTopicFmt  string `mapstructure:"unknown_topic_fmt" validate:"required"`
	StatsHeaderFmt   string `mapstructure:"stats_header_fmt"  validate:"required"`
	StatsEmpty       string `mapstructure:"stats_empty"       validate:"required"`
	GeneralError     string `mapstructure:"general_error"     validate:"required"`
}

// LoadConfig reads path (a missing file is not an error), applies .env and
// environment overrides on top of the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		idListHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyCompiledDefaults(cfg)
	cfg.Telegram.BotUsername = strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.BotUsername), "@")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-references between topics,
// keywords and the default and fallback topics.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	known := make(map[string]bool, len(c.Routing.Topics))
	for _, t := range c.Routing.Topics {
		known[t.Key] = true
	}
	if len(known) == 0 {
		return fmt.Errorf("%w: routing.topics is empty", ErrInvalidConfig)
	}
	if !known[c.Routing.DefaultTopic] {
		return fmt.Errorf("%w: routing.default_topic %q is not a configured topic", ErrInvalidConfig, c.Routing.DefaultTopic)
	}
	if !known[c.Routing.FallbackTopic] {
		return fmt.Errorf("%w: routing.fallback_topic %q is not a configured topic", ErrInvalidConfig, c.Routing.FallbackTopic)
	}
	for _, kw := range c.Routing.Keywords {
		if !known[kw.Topic] {
			return fmt.Errorf("%w: routing.keywords references unknown topic %q", ErrInvalidConfig, kw.Topic)
		}
	}
	return nil
}

// IsAdmin reports whether userID may use admin commands and callbacks.
func (t TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// TopicList converts the configured topics for the registry.
func (r RoutingConfig) TopicList() []routing.Topic {
	topics := make([]routing.Topic, 0, len(r.Topics))
	for _, t := range r.Topics {
		topics = append(topics, routing.Topic{Key: t.Key, ThreadID: t.ThreadID, Label: t.Label})
	}
	return topics
}

// KeywordTable converts the configured keywords, keeping their order.
func (r RoutingConfig) KeywordTable() routing.KeywordTable {
	table := make(routing.KeywordTable, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		table = append(table, routing.TopicKeywords{Topic: kw.Topic, Keywords: append([]string{}, kw.Words...)})
	}
	return table
}

// DefaultState is the routing state used before anything was persisted and
// restored by a keyword reset.
func (r RoutingConfig) DefaultState() routing.State {
	return routing.State{
		Mode:         routing.Mode(r.DefaultMode),
		DefaultTopic: r.DefaultTopic,
		Keywords:     r.KeywordTable(),
	}
}

// AggregatorConfig returns the album buffering settings.
func (r RoutingConfig) AggregatorConfig() routing.AggregatorConfig {
	return routing.AggregatorConfig{
		QuietPeriod: r.AlbumQuietPeriod,
		Memory:      r.AlbumMemory,
		MaxItems:    routing.MaxAlbumItems,
	}
}

// bindEnv maps the plain variable names used by existing deployments in
// addition to the RELAY_ prefixed ones.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"telegram.token":          {"RELAY_TELEGRAM_TOKEN", "BOT_TOKEN"},
		"telegram.admin_ids":      {"RELAY_TELEGRAM_ADMIN_IDS", "ADMIN_IDS"},
		"telegram.source_chat_id": {"RELAY_TELEGRAM_SOURCE_CHAT_ID", "SOURCE_CHAT_ID"},
		"telegram.dest_chat_id":   {"RELAY_TELEGRAM_DEST_CHAT_ID", "DEST_CHAT_ID"},
		"telegram.bot_username":   {"RELAY_TELEGRAM_BOT_USERNAME", "BOT_USERNAME"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// idListHook decodes "1, 2,3" into []int64, skipping blanks.
func idListHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]int64(nil)) {
			return data, nil
		}
		var ids []int64
		for _, part := range strings.Split(data.(string), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q: %w", part, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
}
