package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sony/gobreaker"

	"github.com/edgard/topicrelay/internal/routing"
)

// Sender delivers rendered posts through the Bot API. Media are always
// referenced by file id, so nothing is downloaded or uploaded again.
type Sender struct {
	b       *bot.Bot
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ routing.Sender = (*Sender)(nil)

// NewSender creates a Sender on top of b.
func NewSender(b *bot.Bot, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_sender")
	return &Sender{
		b:       b,
		breaker: newBreaker(breakerConfig{Name: "telegram_send"}, log),
		logger:  log,
	}
}

// SendText sends a text message.
func (s *Sender) SendText(ctx context.Context, dst routing.Destination, text string, entities []models.MessageEntity) error {
	return s.call("sendMessage", dst, func() error {
		_, err := s.b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Text:            text,
			Entities:        entities,
		})
		return err
	})
}

// SendPhoto sends a photo by file id.
func (s *Sender) SendPhoto(ctx context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.call("sendPhoto", dst, func() error {
		_, err := s.b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Photo:           &models.InputFileString{Data: fileID},
			Caption:         caption,
			CaptionEntities: entities,
		})
		return err
	})
}

// SendVideo sends a streamable video by file id.
func (s *Sender) SendVideo(ctx context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.call("sendVideo", dst, func() error {
		_, err := s.b.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:            dst.ChatID,
			MessageThreadID:   dst.ThreadID,
			Video:             &models.InputFileString{Data: fileID},
			Caption:           caption,
			CaptionEntities:   entities,
			SupportsStreaming: true,
		})
		return err
	})
}

// SendAnimation sends an animation by file id.
func (s *Sender) SendAnimation(ctx context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.call("sendAnimation", dst, func() error {
		_, err := s.b.SendAnimation(ctx, &bot.SendAnimationParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Animation:       &models.InputFileString{Data: fileID},
			Caption:         caption,
			CaptionEntities: entities,
		})
		return err
	})
}

// SendDocument sends a document by file id.
func (s *Sender) SendDocument(ctx context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.call("sendDocument", dst, func() error {
		_, err := s.b.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Document:        &models.InputFileString{Data: fileID},
			Caption:         caption,
			CaptionEntities: entities,
		})
		return err
	})
}

// SendVoice sends a voice note by file id.
func (s *Sender) SendVoice(ctx context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.call("sendVoice", dst, func() error {
		_, err := s.b.SendVoice(ctx, &bot.SendVoiceParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Voice:           &models.InputFileString{Data: fileID},
			Caption:         caption,
			CaptionEntities: entities,
		})
		return err
	})
}

// SendAudio sends an audio file by file id.
func (s *Sender) SendAudio(ctx context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.call("sendAudio", dst, func() error {
		_, err := s.b.SendAudio(ctx, &bot.SendAudioParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Audio:           &models.InputFileString{Data: fileID},
			Caption:         caption,
			CaptionEntities: entities,
		})
		return err
	})
}

// SendMediaGroup sends photos and videos as one album. Only items carrying a
// caption get one, which in practice is the first.
func (s *Sender) SendMediaGroup(ctx context.Context, dst routing.Destination, items []routing.GroupItem) error {
	media := make([]models.InputMedia, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case routing.KindPhoto:
			media = append(media, &models.InputMediaPhoto{
				Media:           it.FileID,
				Caption:         it.Caption,
				CaptionEntities: it.Entities,
			})
		case routing.KindVideo:
			media = append(media, &models.InputMediaVideo{
				Media:             it.FileID,
				Caption:           it.Caption,
				CaptionEntities:   it.Entities,
				SupportsStreaming: true,
			})
		default:
			return fmt.Errorf("media group cannot contain %s items", it.Kind)
		}
	}

	return s.call("sendMediaGroup", dst, func() error {
		_, err := s.b.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
			ChatID:          dst.ChatID,
			MessageThreadID: dst.ThreadID,
			Media:           media,
		})
		return err
	})
}

func (s *Sender) call(method string, dst routing.Destination, fn func() error) error {
	if err := guarded(s.breaker, fn); err != nil {
		s.logger.Debug("Bot API call failed", "method", method, "chat_id", dst.ChatID, "thread_id", dst.ThreadID, "error", err)
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}
