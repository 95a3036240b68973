package routing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"
)

// MaxAlbumItems is the largest media group the platform accepts.
const MaxAlbumItems = 10

// Action tells the caller what happened to an observed post.
type Action int

const (
	// ActionImmediate means the post is not part of an open album and must be routed now.
	ActionImmediate Action = iota
	// ActionBuffered means the post was added to an album buffer.
	ActionBuffered
	// ActionFlushNow means the album is complete and the returned posts must be routed now.
	ActionFlushNow
)

func (a Action) String() string {
	switch a {
	case ActionImmediate:
		return "immediate"
	case ActionBuffered:
		return "buffered"
	case ActionFlushNow:
		return "flush_now"
	default:
		return "unknown"
	}
}

// FlushFunc receives the posts of an album whose quiet period expired,
// ordered by ascending message id.
type FlushFunc func(ctx context.Context, posts []Post)

// AggregatorConfig tunes album buffering.
type AggregatorConfig struct {
	// QuietPeriod is measured from the first item of a group and never re-armed.
	QuietPeriod time.Duration
	// Memory is how long a flushed group id is remembered so that late
	// siblings are routed as standalone posts.
	Memory time.Duration
	// MaxItems flushes a buffer as soon as it holds this many posts.
	MaxItems int
}

type albumBuffer struct {
	ctx      context.Context
	openedAt time.Time
	posts    []Post
	timer    clockwork.Timer
}

// Aggregator buffers posts sharing a group id and flushes each group exactly once.
type Aggregator struct {
	clock   clockwork.Clock
	cfg     AggregatorConfig
	onFlush FlushFunc
	logger  *slog.Logger

	mu      sync.Mutex
	buffers map[string]*albumBuffer
	flushed map[string]time.Time
}

// NewAggregator creates an aggregator that calls onFlush from the timer
// goroutine when a group's quiet period expires.
func NewAggregator(clock clockwork.Clock, cfg AggregatorConfig, onFlush FlushFunc, logger *slog.Logger) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = MaxAlbumItems
	}
	return &Aggregator{
		clock:   clock,
		cfg:     cfg,
		onFlush: onFlush,
		logger:  logger.With("component", "album_aggregator"),
		buffers: make(map[string]*albumBuffer),
		flushed: make(map[string]time.Time),
	}
}

// Observe records p. Posts without a group id, and late siblings of an
// already flushed group, come back as ActionImmediate. With ActionFlushNow
// the returned posts are the complete album in message id order.
func (a *Aggregator) Observe(ctx context.Context, p Post) (Action, []Post) {
	if p.GroupID == "" {
		return ActionImmediate, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.forgetFlushed(now)

	if _, done := a.flushed[p.GroupID]; done {
		a.logger.InfoContext(ctx, "Late album item, routing as standalone post",
			"group_id", p.GroupID, "message_id", p.ID)
		return ActionImmediate, nil
	}

	buf, ok := a.buffers[p.GroupID]
	if !ok {
		groupID := p.GroupID
		buf = &albumBuffer{
			ctx:      context.WithoutCancel(ctx),
			openedAt: now,
			posts:    []Post{p},
		}
		buf.timer = a.clock.AfterFunc(a.cfg.QuietPeriod, func() { a.expire(groupID) })
		a.buffers[groupID] = buf
		a.logger.DebugContext(ctx, "Opened album buffer", "group_id", groupID, "message_id", p.ID)
		return ActionBuffered, nil
	}

	for _, existing := range buf.posts {
		if existing.ID == p.ID {
			return ActionBuffered, nil
		}
	}
	buf.posts = append(buf.posts, p)

	if len(buf.posts) >= a.cfg.MaxItems {
		buf.timer.Stop()
		a.logger.DebugContext(ctx, "Album buffer full, flushing now", "group_id", p.GroupID, "items", len(buf.posts))
		return ActionFlushNow, a.take(p.GroupID, now)
	}
	return ActionBuffered, nil
}

// Len returns the number of open album buffers.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

func (a *Aggregator) expire(groupID string) {
	a.mu.Lock()
	buf, ok := a.buffers[groupID]
	var posts []Post
	if ok {
		posts = a.take(groupID, buf.openedAt.Add(a.cfg.QuietPeriod))
	}
	a.mu.Unlock()

	if !ok {
		return
	}
	a.logger.DebugContext(buf.ctx, "Album quiet period expired", "group_id", groupID, "items", len(posts))
	if a.onFlush != nil {
		a.onFlush(buf.ctx, posts)
	}
}

// take removes the buffer and returns its posts sorted by message id.
// Callers must hold a.mu.
func (a *Aggregator) take(groupID string, at time.Time) []Post {
	buf := a.buffers[groupID]
	delete(a.buffers, groupID)
	a.flushed[groupID] = at

	posts := buf.posts
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

func (a *Aggregator) forgetFlushed(now time.Time) {
	for id, at := range a.flushed {
		if now.Sub(at) > a.cfg.Memory {
			delete(a.flushed, id)
		}
	}
}

// groupable reports whether posts can go out as a single media group.
func groupable(posts []Post) bool {
	if len(posts) < 2 || len(posts) > MaxAlbumItems {
		return false
	}
	for _, p := range posts {
		if !p.Kind().groupable() {
			return false
		}
	}
	return true
}

// groupItems renders an album with the unit caption on the first item only.
func groupItems(posts []Post, caption string, entities []models.MessageEntity, captionLimit int) []GroupItem {
	items := make([]GroupItem, 0, len(posts))
	for i, p := range posts {
		kind := p.Kind()
		m, _ := p.media(kind)
		item := GroupItem{Kind: kind, FileID: m.FileID}
		if i == 0 {
			item.Caption, item.Entities = truncate(caption, entities, captionLimit)
		}
		items = append(items, item)
	}
	return items
}
