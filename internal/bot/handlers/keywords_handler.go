package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/topicrelay/internal/routing"
)

// NewKeywordsHandler returns a handler for the /keywords command.
func NewKeywordsHandler(deps HandlerDeps) bot.HandlerFunc {
	return keywordsHandler{deps}.Handle
}

type keywordsHandler struct {
	deps HandlerDeps
}

func (h keywordsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "keywords")
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	text := formatKeywords(h.deps.Config.Messages.KeywordsHeader, h.deps.Registry, h.deps.Settings.Snapshot().Keywords)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send keyword listing", "error", err, "chat_id", chatID)
	}
}

// NewKeywordAddHandler returns a handler for /kw_add <topic> <keyword>.
func NewKeywordAddHandler(deps HandlerDeps) bot.HandlerFunc {
	return keywordEditHandler{deps: deps, command: "kw_add", add: true}.Handle
}

// NewKeywordDelHandler returns a handler for /kw_del <topic> <keyword>.
func NewKeywordDelHandler(deps HandlerDeps) bot.HandlerFunc {
	return keywordEditHandler{deps: deps, command: "kw_del"}.Handle
}

// keywordEditHandler adds or removes one keyword of a topic.
type keywordEditHandler struct {
	deps    HandlerDeps
	command string
	add     bool
}

func (h keywordEditHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.command)
	if update.Message == nil {
		return
	}
	msgs := h.deps.Config.Messages
	chatID := update.Message.Chat.ID

	reply := fmt.Sprintf(msgs.KeywordUsageFmt, h.command)
	if topic, word, ok := parseKeywordArgs(update.Message.Text); ok {
		reply = h.apply(ctx, topic, word)
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: reply}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

func (h keywordEditHandler) apply(ctx context.Context, topic, word string) string {
	log := h.deps.Logger.With("handler", h.command)
	msgs := h.deps.Config.Messages

	var err error
	if h.add {
		err = h.deps.Settings.AddKeyword(ctx, topic, word)
	} else {
		err = h.deps.Settings.RemoveKeyword(ctx, topic, word)
	}

	switch {
	case errors.Is(err, routing.ErrUnknownTopic):
		return fmt.Sprintf(msgs.UnknownTopicFmt, topic)
	case errors.Is(err, routing.ErrKeywordExists):
		return msgs.KeywordExists
	case errors.Is(err, routing.ErrKeywordNotFound):
		return msgs.KeywordNotFound
	case err != nil:
		// The change is live in memory; only persisting it failed.
		log.WarnContext(ctx, "Keyword change not persisted", "topic", topic, "keyword", word, "error", err)
	}

	log.InfoContext(ctx, "Keyword table changed", "topic", topic, "keyword", word, "added", h.add)
	label := h.deps.Registry.Label(topic)
	if h.add {
		return fmt.Sprintf(msgs.KeywordAddedFmt, label, word)
	}
	return fmt.Sprintf(msgs.KeywordDelFmt, label, word)
}

// parseKeywordArgs splits "/cmd[@bot] <topic> <keyword...>". The keyword may
// contain spaces.
func parseKeywordArgs(text string) (topic, word string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return "", "", false
	}
	return strings.ToLower(fields[1]), strings.Join(fields[2:], " "), true
}
