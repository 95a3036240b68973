package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/sony/gobreaker"

	"github.com/edgard/topicrelay/internal/routing"
	"github.com/edgard/topicrelay/internal/telegram/keyboard"
)

// ApproverConfig configures the manual-mode approval request.
type ApproverConfig struct {
	// RecipientID is the chat that receives approval requests.
	RecipientID  int64
	Header       string
	NoText       string
	PreviewLimit int
}

// Approver asks the recipient, in a private chat, which topic a unit goes to.
type Approver struct {
	b       *bot.Bot
	cfg     ApproverConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ routing.Approver = (*Approver)(nil)

// NewApprover creates an Approver sending through b.
func NewApprover(b *bot.Bot, cfg ApproverConfig, logger *slog.Logger) *Approver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = 500
	}
	log := logger.With("component", "approver")
	return &Approver{
		b:       b,
		cfg:     cfg,
		breaker: newBreaker(breakerConfig{Name: "telegram_approval", MaxFailures: 3}, log),
		logger:  log,
	}
}

// RequestDecision sends a preview of unit with one button per topic.
func (a *Approver) RequestDecision(ctx context.Context, unit routing.Unit, choices []routing.Topic) error {
	if a.cfg.RecipientID == 0 {
		return routing.ErrNoApprover
	}

	text, _ := unit.Text()
	err := guarded(a.breaker, func() error {
		_, err := a.b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      a.cfg.RecipientID,
			Text:        Preview(a.cfg.Header, text, a.cfg.NoText, a.cfg.PreviewLimit),
			ReplyMarkup: keyboard.PickKeyboard(unit.ID(), choices),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send approval request for %d: %w", unit.ID(), err)
	}

	a.logger.DebugContext(ctx, "Approval requested", "unit_id", unit.ID(), "recipient_id", a.cfg.RecipientID, "items", len(unit.Posts))
	return nil
}

// Preview renders the approval message: header, blank line and the post
// text cut to limit runes, or noText for media without a caption.
func Preview(header, text, noText string, limit int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		text = noText
	} else if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit]) + "…"
	}
	return header + "\n\n" + text
}
