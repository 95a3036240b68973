package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/topicrelay/internal/bot/handlers"
	"github.com/edgard/topicrelay/internal/config"
	"github.com/edgard/topicrelay/internal/database"
	"github.com/edgard/topicrelay/internal/routing"
	"github.com/edgard/topicrelay/internal/telegram"
	"github.com/edgard/topicrelay/internal/telegram/telegramtest"
)

const (
	adminID    = int64(100)
	strangerID = int64(200)
	sourceChat = int64(-1001)
	destChat   = int64(-1002)
)

type fixture struct {
	srv      *telegramtest.Server
	b        *tgbot.Bot
	deps     handlers.HandlerDeps
	store    database.Store
	handlers map[string]handlers.RegisteredHandler
}

func newFixture(t *testing.T, mode routing.Mode) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			AdminIDs:     []int64{adminID},
			SourceChatID: sourceChat,
			DestChatID:   destChat,
		},
		Routing: config.RoutingConfig{
			Topics:       config.DefaultTopics(),
			Keywords:     config.DefaultKeywords(),
			DefaultMode:  string(mode),
			DefaultTopic: "umumiy",
		},
		Messages: config.DefaultMessages,
	}

	db, err := database.NewDB(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, logger)

	registry, err := routing.NewRegistry(cfg.Routing.TopicList(), "umumiy")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	settings := routing.NewSettings(cfg.Routing.DefaultState(), registry, store)

	srv := telegramtest.NewServer(t)
	b := srv.Bot(t)
	clock := clockwork.NewFakeClock()

	router := routing.NewRouter(routing.RouterDeps{
		Settings:   settings,
		Registry:   registry,
		Pending:    routing.NewPendingStore(clock, time.Hour, 10, nil),
		Dispatcher: routing.NewDispatcher(telegram.NewSender(b, logger), registry, routing.DispatcherConfig{DestChatID: destChat}, nil, logger),
		Approver: telegram.NewApprover(b, telegram.ApproverConfig{
			RecipientID: adminID,
			Header:      cfg.Messages.ApprovalHeader,
			NoText:      cfg.Messages.ApprovalNoText,
		}, logger),
		Deliveries: store,
		Clock:      clock,
		Logger:     logger,
	}, sourceChat, routing.AggregatorConfig{QuietPeriod: time.Second, Memory: time.Minute, MaxItems: routing.MaxAlbumItems})

	deps := handlers.HandlerDeps{
		Logger:   logger,
		Config:   cfg,
		Store:    store,
		Settings: settings,
		Registry: registry,
		Router:   router,
	}
	return &fixture{
		srv:      srv,
		b:        b,
		deps:     deps,
		store:    store,
		handlers: handlers.RegisterAllCommands(deps),
	}
}

// run invokes a registered handler with its middleware applied.
func (f *fixture) run(t *testing.T, name string, update *models.Update) {
	t.Helper()
	reg, ok := f.handlers[name]
	if !ok {
		t.Fatalf("handler %q is not registered", name)
	}
	h := reg.Handler
	for i := len(reg.Middleware) - 1; i >= 0; i-- {
		h = reg.Middleware[i](h)
	}
	h(context.Background(), f.b, update)
}

// lastText returns the text of the last call to method.
func (f *fixture) lastText(t *testing.T, method string) string {
	t.Helper()
	calls := f.srv.CallsTo(method)
	if len(calls) == 0 {
		t.Fatalf("no %s calls", method)
	}
	return calls[len(calls)-1].Form.Get("text")
}

func commandUpdate(userID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   1,
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

func callbackUpdate(userID int64, data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-" + data,
			From: models.User{ID: userID},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 55, Chat: models.Chat{ID: userID, Type: "private"}},
			},
		},
	}
}

func channelUpdate(chatID int64, id int, text string) *models.Update {
	return &models.Update{
		ID: 3,
		ChannelPost: &models.Message{
			ID:   id,
			Chat: models.Chat{ID: chatID, Type: "channel"},
			Text: text,
			Date: int(time.Now().Unix()),
		},
	}
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("%q does not contain %q", got, want)
	}
}
