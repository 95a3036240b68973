package handlers

import (
	"log/slog"

	"github.com/edgard/topicrelay/internal/config"
	"github.com/edgard/topicrelay/internal/database"
	"github.com/edgard/topicrelay/internal/routing"
)

// HandlerDeps provides dependencies for Telegram command and callback handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Settings *routing.Settings
	Registry *routing.Registry
	Router   *routing.Router
}
