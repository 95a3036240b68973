package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/topicrelay/internal/routing"
)

// NewChannelPostHandler returns the default handler. It feeds channel posts
// into the router and ignores every other unmatched update.
func NewChannelPostHandler(deps HandlerDeps) bot.HandlerFunc {
	return channelPostHandler{deps}.Handle
}

type channelPostHandler struct {
	deps HandlerDeps
}

func (h channelPostHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.ChannelPost == nil {
		return
	}
	h.deps.Router.HandlePost(ctx, PostFromMessage(update.ChannelPost))
}

// PostFromMessage converts a platform message into a routing post. The
// caption wins over the text, and photos use their largest size.
func PostFromMessage(m *models.Message) routing.Post {
	p := routing.Post{
		ChatID:   m.Chat.ID,
		ID:       m.ID,
		GroupID:  m.MediaGroupID,
		Text:     m.Text,
		Entities: m.Entities,
		Date:     time.Unix(int64(m.Date), 0),
	}
	if m.Caption != "" {
		p.Text, p.Entities = m.Caption, m.CaptionEntities
	}

	if n := len(m.Photo); n > 0 {
		p.Media = append(p.Media, routing.Media{Kind: routing.KindPhoto, FileID: m.Photo[n-1].FileID})
	}
	if m.Video != nil {
		p.Media = append(p.Media, routing.Media{Kind: routing.KindVideo, FileID: m.Video.FileID})
	}
	if m.Animation != nil {
		p.Media = append(p.Media, routing.Media{Kind: routing.KindAnimation, FileID: m.Animation.FileID})
	}
	if m.Document != nil {
		p.Media = append(p.Media, routing.Media{Kind: routing.KindDocument, FileID: m.Document.FileID})
	}
	if m.Voice != nil {
		p.Media = append(p.Media, routing.Media{Kind: routing.KindVoice, FileID: m.Voice.FileID})
	}
	if m.Audio != nil {
		p.Media = append(p.Media, routing.Media{Kind: routing.KindAudio, FileID: m.Audio.FileID})
	}
	return p
}
