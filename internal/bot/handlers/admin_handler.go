package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/topicrelay/internal/routing"
	"github.com/edgard/topicrelay/internal/telegram/keyboard"
)

// NewAdminHandler returns a handler for the /admin command.
func NewAdminHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminHandler{deps}.Handle
}

type adminHandler struct {
	deps HandlerDeps
}

func (h adminHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin")
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        h.deps.Config.Messages.AdminPanel,
		ReplyMarkup: adminPanel(h.deps),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send admin panel", "error", err, "chat_id", chatID)
	}
}

// NewAdminCallbackHandler returns a handler for admin panel buttons, both
// "adm:" actions and "def:" default topic choices.
func NewAdminCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminCallbackHandler{deps}.Handle
}

type adminCallbackHandler struct {
	deps HandlerDeps
}

func (h adminCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin_callback")
	q := update.CallbackQuery
	if q == nil {
		return
	}
	msgs := h.deps.Config.Messages

	if key, ok := keyboard.ParseDefault(q.Data); ok {
		err := h.deps.Settings.SetDefaultTopic(ctx, key)
		if errors.Is(err, routing.ErrUnknownTopic) {
			answerCallback(ctx, b, log, q, msgs.BadCallback, true)
			return
		}
		if err != nil {
			log.WarnContext(ctx, "Default topic changed but not persisted", "topic", key, "error", err)
		}
		log.InfoContext(ctx, "Default topic changed", "topic", key, "user_id", q.From.ID)
		answerCallback(ctx, b, log, q, msgs.Saved, false)
		editText(ctx, b, log, q, msgs.AdminPanel, adminPanel(h.deps))
		return
	}

	switch q.Data {
	case keyboard.ActionToggleMode:
		mode, err := h.deps.Settings.ToggleMode(ctx)
		if err != nil {
			log.WarnContext(ctx, "Mode changed but not persisted", "mode", mode, "error", err)
		}
		log.InfoContext(ctx, "Routing mode changed", "mode", mode, "user_id", q.From.ID)
		answerCallback(ctx, b, log, q, msgs.OK, false)
		editMarkup(ctx, b, log, q, adminPanel(h.deps))

	case keyboard.ActionSetDefault:
		answerCallback(ctx, b, log, q, msgs.OK, false)
		editText(ctx, b, log, q, msgs.ChooseDefault, keyboard.TopicPicker(h.deps.Registry.Topics(), keyboard.DefaultData, msgs.Back))

	case keyboard.ActionShowKeywords:
		answerCallback(ctx, b, log, q, msgs.OK, false)
		chatID, _, ok := callbackMessage(q)
		if !ok {
			chatID = q.From.ID
		}
		text := formatKeywords(msgs.KeywordsHeader, h.deps.Registry, h.deps.Settings.Snapshot().Keywords)
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
			log.ErrorContext(ctx, "Failed to send keyword listing", "error", err, "chat_id", chatID)
		}

	case keyboard.ActionResetKeywords:
		if err := h.deps.Settings.ResetKeywords(ctx); err != nil {
			log.WarnContext(ctx, "Keywords reset but not persisted", "error", err)
		}
		log.InfoContext(ctx, "Keywords reset to defaults", "user_id", q.From.ID)
		answerCallback(ctx, b, log, q, msgs.KeywordsReset, false)
		editMarkup(ctx, b, log, q, adminPanel(h.deps))

	case keyboard.ActionBack:
		answerCallback(ctx, b, log, q, msgs.OK, false)
		editText(ctx, b, log, q, msgs.AdminPanel, adminPanel(h.deps))

	default:
		log.WarnContext(ctx, "Unknown admin callback", "data", q.Data)
		answerCallback(ctx, b, log, q, msgs.BadCallback, true)
	}
}
