package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
)

// Platform limits, in runes.
const (
	DefaultCaptionLimit = 1024
	DefaultTextLimit    = 4096
)

// ErrNothingToSend is returned for a post with neither media nor text.
var ErrNothingToSend = errors.New("post has no content to send")

// ItemsError reports the items of a unit that could not be sent. Items not
// listed in Failed were delivered.
type ItemsError struct {
	Failed []Post
	Err    error
}

func (e *ItemsError) Error() string { return e.Err.Error() }

func (e *ItemsError) Unwrap() error { return e.Err }

// Destination is a chat and optional thread. ThreadID 0 targets the chat itself.
type Destination struct {
	ChatID   int64
	ThreadID int
}

// GroupItem is one element of a media group send.
type GroupItem struct {
	Kind     Kind
	FileID   string
	Caption  string
	Entities []models.MessageEntity
}

// Sender is the outbound side of the messaging platform.
type Sender interface {
	SendText(ctx context.Context, dst Destination, text string, entities []models.MessageEntity) error
	SendPhoto(ctx context.Context, dst Destination, fileID, caption string, entities []models.MessageEntity) error
	SendVideo(ctx context.Context, dst Destination, fileID, caption string, entities []models.MessageEntity) error
	SendAnimation(ctx context.Context, dst Destination, fileID, caption string, entities []models.MessageEntity) error
	SendDocument(ctx context.Context, dst Destination, fileID, caption string, entities []models.MessageEntity) error
	SendVoice(ctx context.Context, dst Destination, fileID, caption string, entities []models.MessageEntity) error
	SendAudio(ctx context.Context, dst Destination, fileID, caption string, entities []models.MessageEntity) error
	SendMediaGroup(ctx context.Context, dst Destination, items []GroupItem) error
}

// DispatcherConfig holds the destination chat and rendering limits.
type DispatcherConfig struct {
	DestChatID   int64
	CaptionLimit int
	TextLimit    int
}

// Dispatcher renders units into sends on the destination thread of a topic.
type Dispatcher struct {
	sender   Sender
	registry *Registry
	cfg      DispatcherConfig
	metrics  *Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(sender Sender, registry *Registry, cfg DispatcherConfig, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CaptionLimit <= 0 {
		cfg.CaptionLimit = DefaultCaptionLimit
	}
	if cfg.TextLimit <= 0 {
		cfg.TextLimit = DefaultTextLimit
	}
	return &Dispatcher{
		sender:   sender,
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With("component", "dispatcher"),
	}
}

// ResolveTopic maps key to a topic, falling back to defaultTopic and then to
// the registry fallback.
func (d *Dispatcher) ResolveTopic(key, defaultTopic string) Topic {
	if t, ok := d.registry.Lookup(key); ok {
		return t
	}
	return d.registry.Resolve(defaultTopic)
}

// Dispatch sends unit to the thread of topicKey and returns the topic used.
// Albums of photos and videos go out as one media group; anything else, or a
// failed group send, goes out item by item.
func (d *Dispatcher) Dispatch(ctx context.Context, unit Unit, topicKey, defaultTopic string) (Topic, error) {
	topic := d.ResolveTopic(topicKey, defaultTopic)
	dst := Destination{ChatID: d.cfg.DestChatID, ThreadID: topic.ThreadID}

	if len(unit.Posts) == 0 {
		return topic, ErrNothingToSend
	}
	if len(unit.Posts) == 1 {
		return topic, d.sendPost(ctx, dst, unit.Posts[0])
	}

	if groupable(unit.Posts) {
		caption, entities := unit.Text()
		err := d.sender.SendMediaGroup(ctx, dst, groupItems(unit.Posts, caption, entities, d.cfg.CaptionLimit))
		if err == nil {
			d.metrics.observeSend("media_group", nil)
			return topic, nil
		}
		d.metrics.observeSend("media_group", err)
		d.logger.WarnContext(ctx, "Media group send failed, sending items one by one",
			"unit_id", unit.ID(), "items", len(unit.Posts), "error", err)
	}

	var (
		failed []Post
		errs   []error
	)
	for _, p := range unit.Posts {
		if err := d.sendPost(ctx, dst, p); err != nil {
			d.logger.WarnContext(ctx, "Album item send failed", "message_id", p.ID, "error", err)
			failed = append(failed, p)
			errs = append(errs, fmt.Errorf("message %d: %w", p.ID, err))
		}
	}
	if len(errs) > 0 {
		return topic, &ItemsError{Failed: failed, Err: errors.Join(errs...)}
	}
	return topic, nil
}

func (d *Dispatcher) sendPost(ctx context.Context, dst Destination, p Post) error {
	kind := p.Kind()
	m, _ := p.media(kind)
	caption, captionEntities := truncate(p.Text, p.Entities, d.cfg.CaptionLimit)

	var err error
	switch kind {
	case KindPhoto:
		err = d.sender.SendPhoto(ctx, dst, m.FileID, caption, captionEntities)
	case KindVideo:
		err = d.sender.SendVideo(ctx, dst, m.FileID, caption, captionEntities)
	case KindAnimation:
		err = d.sender.SendAnimation(ctx, dst, m.FileID, caption, captionEntities)
	case KindDocument:
		err = d.sender.SendDocument(ctx, dst, m.FileID, caption, captionEntities)
	case KindVoice:
		err = d.sender.SendVoice(ctx, dst, m.FileID, caption, captionEntities)
	case KindAudio:
		err = d.sender.SendAudio(ctx, dst, m.FileID, caption, captionEntities)
	case KindText:
		text, entities := truncate(p.Text, p.Entities, d.cfg.TextLimit)
		err = d.sender.SendText(ctx, dst, text, entities)
	default:
		return ErrNothingToSend
	}
	d.metrics.observeSend(kind.String(), err)
	if err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

// truncate cuts s to limit runes and drops or clips the entities that no
// longer fit. Entity offsets are in UTF-16 code units.
func truncate(s string, entities []models.MessageEntity, limit int) (string, []models.MessageEntity) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, entities
	}
	s = string(runes[:limit])
	size := len(utf16.Encode(runes[:limit]))

	var kept []models.MessageEntity
	for _, e := range entities {
		if e.Offset >= size {
			continue
		}
		if e.Offset+e.Length > size {
			e.Length = size - e.Offset
		}
		kept = append(kept, e)
	}
	return s, kept
}
