// Package handlers contains Telegram bot command, callback and channel post
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets only configured admins through.
// Other users get a refusal message, or an alert for callback queries.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			log := deps.Logger.With("middleware", "AdminOnly")

			switch {
			case update.CallbackQuery != nil:
				userID := update.CallbackQuery.From.ID
				if deps.Config.Telegram.IsAdmin(userID) {
					next(ctx, bot, update)
					return
				}
				log.WarnContext(ctx, "Unauthorized callback attempt", "user_id", userID, "data", update.CallbackQuery.Data)
				answerCallback(ctx, bot, log, update.CallbackQuery, deps.Config.Messages.NotAdminAlert, true)

			case update.Message != nil && update.Message.From != nil:
				userID := update.Message.From.ID
				if deps.Config.Telegram.IsAdmin(userID) {
					next(ctx, bot, update)
					return
				}
				chatID := update.Message.Chat.ID
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)
				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Messages.NotAdmin,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}

			default:
				log.DebugContext(ctx, "Dropping update without sender", "update_id", update.ID)
			}
		}
	}
}
