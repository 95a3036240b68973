package routing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrPendingNotFound is returned when resolving an id that is not pending.
	ErrPendingNotFound = errors.New("pending item not found")
	// ErrNoApprover is returned when manual mode has nobody to ask.
	ErrNoApprover = errors.New("no approval recipient configured")
)

// Delivery statuses.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Approver asks a human which topic a unit belongs to. The answer comes back
// later through Router.Resolve.
type Approver interface {
	RequestDecision(ctx context.Context, unit Unit, choices []Topic) error
}

// Delivery describes one dispatched unit.
type Delivery struct {
	ID              string
	SourceMessageID int
	TopicKey        string
	ThreadID        int
	Items           int
	Mode            Mode
	Status          string
	Error           string
	At              time.Time
}

// DeliveryLog records dispatched units.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, d Delivery) error
}

// RouterDeps are the collaborators of a Router. Approver, Deliveries,
// Metrics, Clock and Logger may be nil.
type RouterDeps struct {
	Settings   *Settings
	Registry   *Registry
	Pending    *PendingStore
	Dispatcher *Dispatcher
	Approver   Approver
	Deliveries DeliveryLog
	Metrics    *Metrics
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// Router feeds source posts through album aggregation and the auto/manual
// state machine into the dispatcher.
type Router struct {
	sourceChatID int64
	settings     *Settings
	registry     *Registry
	aggregator   *Aggregator
	pending      *PendingStore
	dispatcher   *Dispatcher
	approver     Approver
	deliveries   DeliveryLog
	metrics      *Metrics
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewRouter creates a router accepting posts from sourceChatID (0 accepts any chat).
func NewRouter(deps RouterDeps, sourceChatID int64, albums AggregatorConfig) *Router {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := &Router{
		sourceChatID: sourceChatID,
		settings:     deps.Settings,
		registry:     deps.Registry,
		pending:      deps.Pending,
		dispatcher:   deps.Dispatcher,
		approver:     deps.Approver,
		deliveries:   deps.Deliveries,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
		logger:       deps.Logger.With("component", "router"),
	}
	r.aggregator = NewAggregator(deps.Clock, albums, r.flush, deps.Logger)
	return r
}

// HandlePost is the entry point for every source channel post.
func (r *Router) HandlePost(ctx context.Context, p Post) {
	if r.sourceChatID != 0 && p.ChatID != r.sourceChatID {
		r.logger.DebugContext(ctx, "Ignoring post from foreign chat", "chat_id", p.ChatID, "message_id", p.ID)
		return
	}
	if p.Kind() == KindNone {
		r.logger.DebugContext(ctx, "Ignoring post without routable content", "message_id", p.ID)
		return
	}

	action, posts := r.aggregator.Observe(ctx, p)
	r.metrics.observePost(action)

	switch action {
	case ActionImmediate:
		r.route(ctx, SingleUnit(p))
	case ActionFlushNow:
		r.flush(ctx, posts)
	}
}

// Resolve dispatches the pending unit id to topicKey. It returns
// ErrPendingNotFound when id is not pending. If the dispatch fails the
// undelivered posts stay pending under id so the decision can be made again.
func (r *Router) Resolve(ctx context.Context, id int, topicKey string) (Topic, error) {
	item, ok := r.pending.Resolve(id)
	if !ok {
		return Topic{}, ErrPendingNotFound
	}

	st := r.settings.Snapshot()
	topic, err := r.dispatch(ctx, item.Unit, topicKey, st.DefaultTopic, ModeManual)
	if err != nil {
		var itemsErr *ItemsError
		if errors.As(err, &itemsErr) {
			item.Unit = Unit{Posts: itemsErr.Failed}
		}
		r.pending.Restore(id, item)
		return topic, err
	}
	return topic, nil
}

// Pending returns the approval queue.
func (r *Router) Pending() *PendingStore {
	return r.pending
}

func (r *Router) flush(ctx context.Context, posts []Post) {
	if len(posts) == 0 {
		return
	}
	r.route(ctx, Unit{Posts: posts})
}

// route applies the routing mode to a finished unit.
func (r *Router) route(ctx context.Context, unit Unit) {
	st := r.settings.Snapshot()

	if st.Mode == ModeManual {
		err := r.requestApproval(ctx, unit)
		if err == nil {
			r.logger.InfoContext(ctx, "Unit queued for approval", "unit_id", unit.ID(), "items", len(unit.Posts))
			return
		}
		r.metrics.observeApprovalFallback()
		r.logger.WarnContext(ctx, "Approval request failed, routing automatically", "unit_id", unit.ID(), "error", err)
	}

	text, _ := unit.Text()
	key := Classify(text, st.Keywords, st.DefaultTopic)
	_, _ = r.dispatch(ctx, unit, key, st.DefaultTopic, ModeAuto)
}

func (r *Router) requestApproval(ctx context.Context, unit Unit) error {
	if r.approver == nil {
		return ErrNoApprover
	}
	id := unit.ID()
	r.pending.Enqueue(id, unit)
	if err := r.approver.RequestDecision(ctx, unit, r.registry.Topics()); err != nil {
		r.pending.Discard(id)
		return err
	}
	return nil
}

func (r *Router) dispatch(ctx context.Context, unit Unit, key, defaultTopic string, mode Mode) (Topic, error) {
	topic, err := r.dispatcher.Dispatch(ctx, unit, key, defaultTopic)

	d := Delivery{
		ID:              uuid.NewString(),
		SourceMessageID: unit.ID(),
		TopicKey:        topic.Key,
		ThreadID:        topic.ThreadID,
		Items:           len(unit.Posts),
		Mode:            mode,
		Status:          DeliverySent,
		At:              r.clock.Now(),
	}
	if err != nil {
		d.Status = DeliveryFailed
		d.Error = err.Error()
		r.logger.ErrorContext(ctx, "Dispatch failed",
			"unit_id", unit.ID(), "topic", topic.Key, "thread_id", topic.ThreadID, "mode", mode, "error", err)
	} else {
		r.metrics.observeRouted(mode, topic.Key)
		r.logger.InfoContext(ctx, "Unit dispatched",
			"unit_id", unit.ID(), "topic", topic.Key, "thread_id", topic.ThreadID, "items", len(unit.Posts), "mode", mode)
	}

	if r.deliveries != nil {
		if logErr := r.deliveries.RecordDelivery(ctx, d); logErr != nil {
			r.logger.WarnContext(ctx, "Failed to record delivery", "delivery_id", d.ID, "error", logErr)
		}
	}
	return topic, err
}
