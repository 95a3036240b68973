package routing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/topicrelay/internal/routing"
)

const (
	testSourceChat = int64(-1001)
	testDestChat   = int64(-1002)
)

var testTopics = []routing.Topic{
	{Key: "umumiy", ThreadID: 1, Label: "🧩 Umumiy"},
	{Key: "uy", ThreadID: 197, Label: "🏠 Uy"},
	{Key: "ish", ThreadID: 198, Label: "💼 Ish"},
	{Key: "taksi", ThreadID: 199, Label: "🚖 Taksi"},
	{Key: "visa", ThreadID: 200, Label: "🛂 Visa"},
	{Key: "elon", ThreadID: 12, Label: "📣 E’lon"},
}

func testKeywords() routing.KeywordTable {
	return routing.KeywordTable{
		{Topic: "uy", Keywords: []string{"ijara", "kvartira", "xonadon"}},
		{Topic: "ish", Keywords: []string{"ish", "vakansiya", "job"}},
		{Topic: "taksi", Keywords: []string{"taksi", "taxi"}},
		{Topic: "visa", Keywords: []string{"visa", "viza", "iqoma"}},
	}
}

func testDefaults() routing.State {
	return routing.State{Mode: routing.ModeAuto, DefaultTopic: "umumiy", Keywords: testKeywords()}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) *routing.Registry {
	t.Helper()
	reg, err := routing.NewRegistry(testTopics, "umumiy")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

type sendCall struct {
	Method   string
	Dst      routing.Destination
	FileID   string
	Text     string
	Entities []models.MessageEntity
	Items    []routing.GroupItem
}

type fakeSender struct {
	mu     sync.Mutex
	calls  []sendCall
	fail   map[string]error
	notify chan sendCall
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: map[string]error{}, notify: make(chan sendCall, 64)}
}

func (s *fakeSender) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

func (s *fakeSender) record(c sendCall) error {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	err := s.fail[c.Method]
	s.mu.Unlock()
	s.notify <- c
	return err
}

func (s *fakeSender) Calls() []sendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sendCall(nil), s.calls...)
}

// waitCalls blocks until n sends were recorded.
func (s *fakeSender) waitCalls(t *testing.T, n int) []sendCall {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(s.Calls()) < n {
		select {
		case <-s.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d sends, got %d", n, len(s.Calls()))
		}
	}
	return s.Calls()
}

func (s *fakeSender) SendText(_ context.Context, dst routing.Destination, text string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "text", Dst: dst, Text: text, Entities: entities})
}

func (s *fakeSender) SendPhoto(_ context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "photo", Dst: dst, FileID: fileID, Text: caption, Entities: entities})
}

func (s *fakeSender) SendVideo(_ context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "video", Dst: dst, FileID: fileID, Text: caption, Entities: entities})
}

func (s *fakeSender) SendAnimation(_ context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "animation", Dst: dst, FileID: fileID, Text: caption, Entities: entities})
}

func (s *fakeSender) SendDocument(_ context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "document", Dst: dst, FileID: fileID, Text: caption, Entities: entities})
}

func (s *fakeSender) SendVoice(_ context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "voice", Dst: dst, FileID: fileID, Text: caption, Entities: entities})
}

func (s *fakeSender) SendAudio(_ context.Context, dst routing.Destination, fileID, caption string, entities []models.MessageEntity) error {
	return s.record(sendCall{Method: "audio", Dst: dst, FileID: fileID, Text: caption, Entities: entities})
}

func (s *fakeSender) SendMediaGroup(_ context.Context, dst routing.Destination, items []routing.GroupItem) error {
	return s.record(sendCall{Method: "media_group", Dst: dst, Items: items})
}

type fakeApprover struct {
	mu       sync.Mutex
	err      error
	requests []routing.Unit
	choices  []routing.Topic
}

func (a *fakeApprover) RequestDecision(_ context.Context, unit routing.Unit, choices []routing.Topic) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, unit)
	a.choices = choices
	return a.err
}

func (a *fakeApprover) Requests() []routing.Unit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]routing.Unit(nil), a.requests...)
}

// memoryStateStore keeps the routing state document in memory.
type memoryStateStore struct {
	mu    sync.Mutex
	doc   []byte
	saves int
	err   error
}

func (s *memoryStateStore) LoadRoutingState(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte(nil), s.doc...), nil
}

func (s *memoryStateStore) SaveRoutingState(_ context.Context, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.doc = append([]byte(nil), doc...)
	s.saves++
	return nil
}

type memoryDeliveryLog struct {
	mu         sync.Mutex
	deliveries []routing.Delivery
}

func (l *memoryDeliveryLog) RecordDelivery(_ context.Context, d routing.Delivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, d)
	return nil
}

func (l *memoryDeliveryLog) All() []routing.Delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]routing.Delivery(nil), l.deliveries...)
}

var errSendFailed = errors.New("send failed")

func photoPost(id int, group, caption string) routing.Post {
	return routing.Post{
		ChatID:  testSourceChat,
		ID:      id,
		GroupID: group,
		Text:    caption,
		Media:   []routing.Media{{Kind: routing.KindPhoto, FileID: fileID("photo", id)}},
	}
}

func documentPost(id int, group, caption string) routing.Post {
	return routing.Post{
		ChatID:  testSourceChat,
		ID:      id,
		GroupID: group,
		Text:    caption,
		Media:   []routing.Media{{Kind: routing.KindDocument, FileID: fileID("doc", id)}},
	}
}

func textPost(id int, text string) routing.Post {
	return routing.Post{ChatID: testSourceChat, ID: id, Text: text}
}

func fileID(prefix string, id int) string {
	return prefix + "-" + strconv.Itoa(id)
}

type routerFixture struct {
	clock      *clockwork.FakeClock
	sender     *fakeSender
	approver   *fakeApprover
	store      *memoryStateStore
	deliveries *memoryDeliveryLog
	settings   *routing.Settings
	pending    *routing.PendingStore
	router     *routing.Router
}

func newRouterFixture(t *testing.T, withApprover bool) *routerFixture {
	t.Helper()
	f := &routerFixture{
		clock:      clockwork.NewFakeClock(),
		sender:     newFakeSender(),
		store:      &memoryStateStore{},
		deliveries: &memoryDeliveryLog{},
	}
	reg := newTestRegistry(t)
	f.settings = routing.NewSettings(testDefaults(), reg, f.store)
	f.pending = routing.NewPendingStore(f.clock, time.Hour, 100, nil)
	dispatcher := routing.NewDispatcher(f.sender, reg, routing.DispatcherConfig{DestChatID: testDestChat}, nil, discardLogger())

	deps := routing.RouterDeps{
		Settings:   f.settings,
		Registry:   reg,
		Pending:    f.pending,
		Dispatcher: dispatcher,
		Deliveries: f.deliveries,
		Clock:      f.clock,
		Logger:     discardLogger(),
	}
	if withApprover {
		f.approver = &fakeApprover{}
		deps.Approver = f.approver
	}
	f.router = routing.NewRouter(deps, testSourceChat, routing.AggregatorConfig{
		QuietPeriod: 1200 * time.Millisecond,
		Memory:      time.Minute,
	})
	return f
}
