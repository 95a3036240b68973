package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/topicrelay/internal/telegram/keyboard"
)

// RegisteredHandler represents a command or callback handler with its middleware.
// It encapsulates all information needed to register it with the bot.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns all command and callback handlers.
// Channel posts are not listed: they reach NewChannelPostHandler as the bot's
// default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	commands := map[string]tgbot.HandlerFunc{
		"admin":    NewAdminHandler(deps),
		"keywords": NewKeywordsHandler(deps),
		"kw_add":   NewKeywordAddHandler(deps),
		"kw_del":   NewKeywordDelHandler(deps),
		"stats":    NewStatsHandler(deps),
	}
	for name, handler := range commands {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     handler,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  adminMiddleware,
		}
	}

	adminCallbacks := NewAdminCallbackHandler(deps)
	for _, prefix := range []string{keyboard.PrefixAdmin, keyboard.PrefixDefault} {
		handlers[prefix] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeCallbackQueryData,
			Pattern:     prefix,
			Handler:     adminCallbacks,
			MatchType:   tgbot.MatchTypePrefix,
			Middleware:  adminMiddleware,
		}
	}
	handlers[keyboard.PrefixPick] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     keyboard.PrefixPick,
		Handler:     NewPickHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  adminMiddleware,
	}

	return handlers
}
