// Package main contains the entrypoint for the channel-to-topics relay bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/edgard/topicrelay/internal/bot"
	"github.com/edgard/topicrelay/internal/bot/handlers"
	"github.com/edgard/topicrelay/internal/bot/tasks"
	"github.com/edgard/topicrelay/internal/config"
	"github.com/edgard/topicrelay/internal/database"
	"github.com/edgard/topicrelay/internal/logger"
	"github.com/edgard/topicrelay/internal/routing"
	"github.com/edgard/topicrelay/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logger, storage, the routing core, the Telegram client and
// the scheduler, blocks until shutdown and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	registry, err := routing.NewRegistry(cfg.Routing.TopicList(), cfg.Routing.FallbackTopic)
	if err != nil {
		log.Error("Invalid topic registry", "error", err)
		return 1
	}
	settings := routing.NewSettings(cfg.Routing.DefaultState(), registry, store)
	if err := settings.Load(ctx); err != nil {
		log.Warn("Failed to load routing state, using defaults", "error", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := routing.NewMetrics(promRegistry)
	clock := clockwork.NewRealClock()

	// The default handler needs the router, and the router needs the bot to
	// send, so the handler is bound once everything is built.
	var channelPosts tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			channelPosts(ctx, b, update)
		}),
		tgbot.WithAllowedUpdates(tgbot.AllowedUpdates{"message", "channel_post", "callback_query"}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if cfg.Telegram.DropPending {
		if err := telegram.DropPendingUpdates(ctx, tg); err != nil {
			log.Warn("Could not drop pending updates", "error", err)
		}
	}

	dispatcher := routing.NewDispatcher(telegram.NewSender(tg, log), registry, routing.DispatcherConfig{
		DestChatID:   cfg.Telegram.DestChatID,
		CaptionLimit: cfg.Routing.CaptionLimit,
		TextLimit:    cfg.Routing.TextLimit,
	}, metrics, log)

	var approver routing.Approver
	if len(cfg.Telegram.AdminIDs) > 0 {
		approver = telegram.NewApprover(tg, telegram.ApproverConfig{
			RecipientID:  cfg.Telegram.AdminIDs[0],
			Header:       cfg.Messages.ApprovalHeader,
			NoText:       cfg.Messages.ApprovalNoText,
			PreviewLimit: cfg.Routing.PreviewLimit,
		}, log)
	} else {
		log.Warn("No admin ids configured, manual mode will route automatically")
	}

	pending := routing.NewPendingStore(clock, cfg.Routing.PendingTTL, cfg.Routing.PendingCapacity, metrics)
	router := routing.NewRouter(routing.RouterDeps{
		Settings:   settings,
		Registry:   registry,
		Pending:    pending,
		Dispatcher: dispatcher,
		Approver:   approver,
		Deliveries: store,
		Metrics:    metrics,
		Clock:      clock,
		Logger:     log,
	}, cfg.Telegram.SourceChatID, cfg.Routing.AggregatorConfig())

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		Settings: settings,
		Registry: registry,
		Router:   router,
	}
	channelPosts = handlers.NewChannelPostHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Pending: pending,
		Clock:   clock,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, tg, sched, promRegistry)

	st := settings.Snapshot()
	log.Info("Starting relay...",
		"mode", st.Mode, "default_topic", st.DefaultTopic,
		"source_chat_id", cfg.Telegram.SourceChatID, "dest_chat_id", cfg.Telegram.DestChatID)
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
