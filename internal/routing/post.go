// Package routing implements the relay core: keyword classification, album
// aggregation, the auto/manual dispatch state machine, the pending-approval
// queue and rendering of posts into outbound sends.
package routing

import (
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
)

// Kind identifies the content kind a post is rendered as.
type Kind int

// Content kinds. A post carrying several media references is rendered as the
// first kind of kindRank it contains.
const (
	KindNone Kind = iota
	KindPhoto
	KindVideo
	KindAnimation
	KindDocument
	KindVoice
	KindAudio
	KindText
)

// kindRank is the dispatch priority of media kinds.
var kindRank = []Kind{KindPhoto, KindVideo, KindAnimation, KindDocument, KindVoice, KindAudio}

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindAnimation:
		return "animation"
	case KindDocument:
		return "document"
	case KindVoice:
		return "voice"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "none"
	}
}

// groupable reports whether items of this kind can be sent as one media group.
func (k Kind) groupable() bool {
	return k == KindPhoto || k == KindVideo
}

// Media is a reference to a piece of content already stored on the platform.
type Media struct {
	Kind   Kind
	FileID string
}

// Post is a message observed in the source channel.
type Post struct {
	ChatID   int64
	ID       int
	GroupID  string
	Text     string // text, or caption for media posts
	Entities []models.MessageEntity
	Media    []Media
	Date     time.Time
}

// Kind returns the content kind the post is rendered as.
func (p Post) Kind() Kind {
	for _, k := range kindRank {
		if _, ok := p.media(k); ok {
			return k
		}
	}
	if strings.TrimSpace(p.Text) != "" {
		return KindText
	}
	return KindNone
}

func (p Post) media(k Kind) (Media, bool) {
	for _, m := range p.Media {
		if m.Kind == k && m.FileID != "" {
			return m, true
		}
	}
	return Media{}, false
}

// Unit is what the state machine routes: a single post or a flushed album.
type Unit struct {
	Posts []Post
}

// SingleUnit wraps one post.
func SingleUnit(p Post) Unit {
	return Unit{Posts: []Post{p}}
}

// ID returns the representative post id (the first post).
func (u Unit) ID() int {
	if len(u.Posts) == 0 {
		return 0
	}
	return u.Posts[0].ID
}

// IsAlbum reports whether the unit holds more than one post.
func (u Unit) IsAlbum() bool {
	return len(u.Posts) > 1
}

// Text returns the first non-empty text of the unit along with its entities.
func (u Unit) Text() (string, []models.MessageEntity) {
	for _, p := range u.Posts {
		if strings.TrimSpace(p.Text) != "" {
			return p.Text, p.Entities
		}
	}
	return "", nil
}
