package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/topicrelay/internal/routing"
	"github.com/edgard/topicrelay/internal/telegram/keyboard"
)

// maxMessageRunes is the Bot API limit for a text message.
const maxMessageRunes = 4096

// keywordsShown is how many keywords per topic the listings print.
const keywordsShown = 20

func answerCallback(ctx context.Context, b *bot.Bot, log *slog.Logger, q *models.CallbackQuery, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: q.ID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err, "callback_id", q.ID)
	}
}

// callbackMessage locates the message a callback button belongs to.
func callbackMessage(q *models.CallbackQuery) (chatID int64, messageID int, ok bool) {
	switch {
	case q.Message.Message != nil:
		return q.Message.Message.Chat.ID, q.Message.Message.ID, true
	case q.Message.InaccessibleMessage != nil:
		return q.Message.InaccessibleMessage.Chat.ID, q.Message.InaccessibleMessage.MessageID, true
	default:
		return 0, 0, false
	}
}

func editText(ctx context.Context, b *bot.Bot, log *slog.Logger, q *models.CallbackQuery, text string, markup models.ReplyMarkup) {
	chatID, messageID, ok := callbackMessage(q)
	if !ok {
		return
	}
	params := &bot.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		log.DebugContext(ctx, "Failed to edit message text", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

func editMarkup(ctx context.Context, b *bot.Bot, log *slog.Logger, q *models.CallbackQuery, markup models.ReplyMarkup) {
	chatID, messageID, ok := callbackMessage(q)
	if !ok {
		return
	}
	_, err := b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{ChatID: chatID, MessageID: messageID, ReplyMarkup: markup})
	if err != nil {
		log.DebugContext(ctx, "Failed to edit reply markup", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

// adminPanel renders the panel keyboard for the current settings.
func adminPanel(deps HandlerDeps) *models.InlineKeyboardMarkup {
	msgs := deps.Config.Messages
	st := deps.Settings.Snapshot()

	mode := msgs.ModeAuto
	if st.Mode == routing.ModeManual {
		mode = msgs.ModeManual
	}
	return keyboard.AdminPanel(keyboard.PanelLabels{
		Mode:          fmt.Sprintf(msgs.ModeButtonFmt, mode),
		Default:       fmt.Sprintf(msgs.DefaultButtonFmt, deps.Registry.Label(st.DefaultTopic)),
		ShowKeywords:  msgs.ShowKeywords,
		ResetKeywords: msgs.ResetKeywords,
	})
}

// formatKeywords lists the first keywords of every topic in table order.
func formatKeywords(header string, registry *routing.Registry, table routing.KeywordTable) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, e := range table {
		words := e.Keywords
		more := ""
		if len(words) > keywordsShown {
			words, more = words[:keywordsShown], "…"
		}
		fmt.Fprintf(&sb, "\n%s: %s%s", registry.Label(e.Topic), strings.Join(words, ", "), more)
	}
	return capRunes(sb.String(), maxMessageRunes)
}

func capRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
