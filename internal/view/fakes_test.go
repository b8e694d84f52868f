package view

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"forum/internal/model"
)

var errBackend = errors.New("backend unavailable")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *fakeTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

type fakeClock struct {
	mu       sync.Mutex
	tickers  []*fakeTicker
	interval time.Duration
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	c.interval = d
	return t
}

// Tick fires every live ticker once. The send blocks until the poll loop
// takes the tick, so two consecutive Ticks never overlap a refresh.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		select {
		case t.c <- time.Now():
		case <-t.stopped:
		}
	}
}

func (c *fakeClock) Tickers() []*fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTicker(nil), c.tickers...)
}

// fakeTopics serves one topic and records every fetch.
type fakeTopics struct {
	mu    sync.Mutex
	topic model.Topic
	err   error
	calls chan int64
}

func newFakeTopics(topic model.Topic) *fakeTopics {
	return &fakeTopics{topic: topic, calls: make(chan int64, 64)}
}

func (f *fakeTopics) Get(ctx context.Context, id int64) (model.Topic, error) {
	f.calls <- id

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Topic{}, f.err
	}
	if id != f.topic.ID {
		return model.Topic{}, errors.New("topic not found")
	}
	t := f.topic
	t.Messages = append([]model.Message(nil), f.topic.Messages...)
	return t, nil
}

func (f *fakeTopics) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeTopics) edit(fn func(*model.Topic)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.topic)
}

func (f *fakeTopics) waitCall(t *testing.T) int64 {
	t.Helper()
	select {
	case id := <-f.calls:
		return id
	case <-time.After(time.Second):
		t.Fatal("Expected a topic fetch but got none")
		return 0
	}
}

func (f *fakeTopics) expectNoCall(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case id := <-f.calls:
		t.Errorf("Expected no topic fetch but got one for topic %d", id)
	case <-time.After(wait):
	}
}

func (f *fakeTopics) drain() {
	for {
		select {
		case <-f.calls:
		default:
			return
		}
	}
}

// fakeMessages writes through to the topic it serves, like the server.
type fakeMessages struct {
	topics *fakeTopics

	mu      sync.Mutex
	err     error
	nextID  int64
	created []model.Message
	updated []model.MessagePatch
	deleted []int64
}

func (f *fakeMessages) Create(ctx context.Context, draft model.Message) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Message{}, f.err
	}
	f.nextID++
	draft.ID = 1000 + f.nextID
	f.created = append(f.created, draft)
	f.topics.edit(func(t *model.Topic) {
		t.Messages = append(t.Messages, draft)
	})
	return draft, nil
}

func (f *fakeMessages) Update(ctx context.Context, id int64, patch model.MessagePatch) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Message{}, f.err
	}
	f.updated = append(f.updated, patch)

	var out model.Message
	f.topics.edit(func(t *model.Topic) {
		for i := range t.Messages {
			if t.Messages[i].ID == id {
				t.Messages[i].Content = patch.Content
				out = t.Messages[i]
			}
		}
	})
	return out, nil
}

func (f *fakeMessages) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	f.topics.edit(func(t *model.Topic) {
		kept := make([]model.Message, 0, len(t.Messages))
		for _, m := range t.Messages {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		t.Messages = kept
	})
	return nil
}

func (f *fakeMessages) Updates() []model.MessagePatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.MessagePatch(nil), f.updated...)
}

func (f *fakeMessages) Deleted() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

func (f *fakeMessages) Created() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.created...)
}

type fakeUsers struct {
	mu      sync.Mutex
	users   []model.User
	err     error
	patches []model.UserPatch
	deleted []int64
}

func (f *fakeUsers) FetchAll(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.User(nil), f.users...), nil
}

func (f *fakeUsers) Update(ctx context.Context, id int64, patch model.UserPatch) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.User{}, f.err
	}
	f.patches = append(f.patches, patch)
	for i := range f.users {
		if f.users[i].ID != id {
			continue
		}
		if patch.Username != nil {
			f.users[i].Username = *patch.Username
		}
		if patch.Admin != nil {
			f.users[i].Admin = *patch.Admin
		}
		return f.users[i].Public(), nil
	}
	return model.User{}, errors.New("user not found")
}

func (f *fakeUsers) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsers) Patches() []model.UserPatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.UserPatch(nil), f.patches...)
}

func (f *fakeUsers) Deleted() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

type fakeDialog struct {
	mu     sync.Mutex
	answer bool
	asked  []Confirmation
}

func (d *fakeDialog) Confirm(ctx context.Context, c Confirmation) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.asked = append(d.asked, c)
	return d.answer, nil
}

func (d *fakeDialog) Asked() []Confirmation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Confirmation(nil), d.asked...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func (n *recordingNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func (n *recordingNotifier) Has(text string) bool {
	for _, t := range n.Texts() {
		if t == text {
			return true
		}
	}
	return false
}
