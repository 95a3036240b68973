package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/topicrelay/internal/routing"
	"github.com/edgard/topicrelay/internal/telegram/keyboard"
)

// NewPickHandler returns a handler for the topic buttons of approval requests.
func NewPickHandler(deps HandlerDeps) bot.HandlerFunc {
	return pickHandler{deps}.Handle
}

type pickHandler struct {
	deps HandlerDeps
}

func (h pickHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "pick")
	q := update.CallbackQuery
	if q == nil {
		return
	}
	msgs := h.deps.Config.Messages

	unitID, key, err := keyboard.ParsePick(q.Data)
	if err != nil {
		log.WarnContext(ctx, "Malformed pick callback", "data", q.Data, "error", err)
		answerCallback(ctx, b, log, q, msgs.BadCallback, true)
		return
	}

	topic, err := h.deps.Router.Resolve(ctx, unitID, key)
	switch {
	case errors.Is(err, routing.ErrPendingNotFound):
		log.InfoContext(ctx, "Pick for unknown or expired unit", "unit_id", unitID, "topic", key)
		answerCallback(ctx, b, log, q, msgs.PendingExpired, true)
	case err != nil:
		log.ErrorContext(ctx, "Failed to dispatch picked unit", "unit_id", unitID, "topic", key, "error", err)
		answerCallback(ctx, b, log, q, msgs.SendFailed, true)
	default:
		log.InfoContext(ctx, "Unit dispatched by admin decision", "unit_id", unitID, "topic", topic.Key, "user_id", q.From.ID)
		answerCallback(ctx, b, log, q, msgs.Sent, false)
		editText(ctx, b, log, q, fmt.Sprintf(msgs.SentFmt, topic.Label), nil)
	}
}
