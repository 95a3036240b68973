package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// statsWindow is the period /stats reports on.
const statsWindow = 24 * time.Hour

// NewStatsHandler returns a handler for the /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps: deps, now: time.Now}.Handle
}

type statsHandler struct {
	deps HandlerDeps
	now  func() time.Time
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var reply string
	stats, err := h.deps.Store.GetDeliveryStats(timeoutCtx, h.now().Add(-statsWindow))
	switch {
	case err != nil:
		log.ErrorContext(ctx, "Failed to load delivery stats", "error", err)
		reply = msgs.GeneralError
	case len(stats) == 0:
		reply = msgs.StatsEmpty
	default:
		total := 0
		var lines strings.Builder
		for _, s := range stats {
			total += s.Sent
			fmt.Fprintf(&lines, "\n%s: %d", h.deps.Registry.Label(s.TopicKey), s.Sent)
			if s.Failed > 0 {
				fmt.Fprintf(&lines, " (❌ %d)", s.Failed)
			}
		}
		reply = fmt.Sprintf(msgs.StatsHeaderFmt, total) + "\n" + lines.String()
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.ErrorContext(ctx, "Failed to send stats", "error", err, "chat_id", chatID)
	}
}
