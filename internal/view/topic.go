package view

import (
	"context"
	"html/template"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"forum/internal/client"
	"forum/internal/markup"
	"forum/internal/model"
	"forum/internal/store"
)

const DefaultPollInterval = 3 * time.Second

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateEditing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEditing:
		return "editing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type refreshTrigger string

const (
	triggerManual   refreshTrigger = "manual"
	triggerFollowUp refreshTrigger = "follow_up"
	triggerTimer    refreshTrigger = "timer"
)

type TopicDeps struct {
	Topics       TopicSource
	Messages     MessageWriter
	MessageStore *store.Store[int64, model.Message]
	TopicStore   *store.Store[int64, model.Topic] // optional
	Connected    *store.Value[*model.User]
	Dialog       Dialog
	Notifier     Notifier
	Clock        Clock          // SystemClock when nil
	PollInterval time.Duration  // DefaultPollInterval when zero
	Logger       *logrus.Logger // standard logger when nil
	Metrics      *client.Metrics
}

// TopicView presents one topic and its messages, keeps them fresh with a
// polling refresh and lets the connected user edit or delete messages.
type TopicView struct {
	deps TopicDeps
	log  *logrus.Entry
	rule LengthRule

	mu          sync.Mutex
	state       State
	topicID     int64
	topic       model.Topic
	connected   *model.User
	editing     bool
	editedID    int64
	editContent string
	cancel      context.CancelFunc
	poller      *Poller
	subs        []*store.Subscription
}

func NewTopicView(deps TopicDeps) *TopicView {
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TopicView{
		deps: deps,
		log:  logger.WithField("view", "topic"),
		rule: MessageContentRule,
	}
}

// Activate loads the topic and starts the polling refresh. On failure the
// view returns to the uninitialized state and may be activated again.
func (v *TopicView) Activate(ctx context.Context, topicID int64) error {
	v.mu.Lock()
	switch v.state {
	case StateClosed:
		v.mu.Unlock()
		return ErrClosed
	case StateUninitialized:
	default:
		v.mu.Unlock()
		return ErrActive
	}
	v.state = StateLoading
	v.topicID = topicID
	v.mu.Unlock()

	topic, err := v.deps.Topics.Get(ctx, topicID)
	if err != nil {
		v.log.WithError(err).WithField("topic_id", topicID).Warn("Failed to load topic")
		v.notify(ToastGenericError)
		v.mu.Lock()
		if v.state == StateLoading {
			v.state = StateUninitialized
		}
		v.mu.Unlock()
		return err
	}
	topic = normalize(topic)

	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	poller := NewPoller(v.deps.Clock, v.deps.PollInterval, v.tick)

	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		cancel()
		return ErrClosed
	}
	v.topic = topic
	v.state = StateReady
	v.cancel = cancel
	v.poller = poller
	v.mu.Unlock()

	subs := []*store.Subscription{
		v.deps.Connected.Subscribe(v.onConnectedUser),
		v.deps.MessageStore.Subscribe(v.onMessages),
	}
	v.mu.Lock()
	closed := v.state == StateClosed
	if !closed {
		v.subs = subs
	}
	v.mu.Unlock()
	if closed {
		for _, s := range subs {
			s.Unsubscribe()
		}
		return ErrClosed
	}

	v.deps.Connected.Emit()
	v.publish(topic)
	poller.Start(lifetime)

	v.log.WithFields(logrus.Fields{
		"topic_id": topicID,
		"messages": len(topic.Messages),
	}).Info("Topic loaded")
	return nil
}

// Refresh re-fetches the topic on user request.
func (v *TopicView) Refresh(ctx context.Context) error {
	return v.refresh(ctx, triggerManual)
}

func (v *TopicView) tick(ctx context.Context) {
	_ = v.refresh(ctx, triggerTimer)
}

func (v *TopicView) refresh(ctx context.Context, trigger refreshTrigger) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	id := v.topicID
	v.mu.Unlock()

	topic, err := v.deps.Topics.Get(ctx, id)
	v.deps.Metrics.ObserveRefresh(string(trigger), err)
	if err != nil {
		entry := v.log.WithError(err).WithFields(logrus.Fields{"topic_id": id, "trigger": trigger})
		if trigger == triggerTimer {
			entry.Debug("Timer refresh failed")
		} else {
			entry.Warn("Refresh failed")
			v.notify(ToastRefreshFailed)
		}
		return err
	}
	topic = normalize(topic)

	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.topic = topic
	v.dropStaleEditLocked()
	v.mu.Unlock()

	v.publish(topic)
	if trigger == triggerManual {
		v.notify(ToastRefreshed)
	}
	return nil
}

// publish reconciles the shared caches with a freshly fetched topic. The
// message store only changes for this topic's messages.
func (v *TopicView) publish(topic model.Topic) {
	id := topic.ID
	v.deps.MessageStore.Reconcile(func(m model.Message) bool {
		return m.TopicID() == id
	}, topic.Messages)

	if v.deps.TopicStore != nil {
		summary := topic
		summary.Messages = nil
		v.deps.TopicStore.Upsert(summary)
	}
}

func (v *TopicView) onConnectedUser(u *model.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return
	}
	v.connected = u
}

func (v *TopicView) onMessages(all []model.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateReady && v.state != StateEditing {
		return
	}

	messages := make([]model.Message, 0, len(v.topic.Messages))
	for _, m := range all {
		if m.TopicID() == v.topicID {
			messages = append(messages, m)
		}
	}
	v.topic.Messages = messages
	v.dropStaleEditLocked()
}

// ToggleEdit selects a message for editing. Selecting the message being
// edited clears the selection; selecting another one replaces it.
func (v *TopicView) ToggleEdit(messageID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}

	if v.editing && v.editedID == messageID {
		v.clearEditLocked()
		return nil
	}

	msg, ok := v.findLocked(messageID)
	if !ok {
		return ErrUnknownEntity
	}
	if !CanEditMessage(v.connected, msg) {
		return ErrNotPermitted
	}
	v.editing = true
	v.editedID = messageID
	v.editContent = msg.Content
	v.state = StateEditing
	return nil
}

// Edited returns the id of the message being edited.
func (v *TopicView) Edited() (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editedID, v.editing
}

// EditContent is the initial value of the edit field.
func (v *TopicView) EditContent() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editContent
}

// SubmitEdit sends the new content of the message being edited. Invalid
// content never reaches the server.
func (v *TopicView) SubmitEdit(ctx context.Context, content string) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	if !v.editing {
		v.mu.Unlock()
		return ErrNotEditing
	}
	id := v.editedID
	msg, ok := v.findLocked(id)
	permitted := CanEditMessage(v.connected, msg)
	v.mu.Unlock()

	if !ok {
		return ErrUnknownEntity
	}
	if !permitted {
		return ErrNotPermitted
	}
	if err := v.rule.Validate(content); err != nil {
		return err
	}

	updated, err := v.deps.Messages.Update(ctx, id, model.MessagePatch{Content: content})
	if err != nil {
		v.fail("Failed to update message", id, err)
		return err
	}

	v.deps.MessageStore.Patch(id, func(m model.Message) model.Message {
		m.Content = updated.Content
		return m
	})
	v.notify(ToastMessageUpdated)

	v.mu.Lock()
	if v.editing && v.editedID == id {
		v.clearEditLocked()
	}
	v.mu.Unlock()

	_ = v.refresh(ctx, triggerFollowUp)
	return nil
}

// Delete removes a message after the user confirmed it. A declined
// confirmation changes nothing and returns nil.
func (v *TopicView) Delete(ctx context.Context, messageID int64) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	msg, ok := v.findLocked(messageID)
	permitted := CanDeleteMessage(v.connected, msg)
	v.mu.Unlock()

	if !ok {
		return ErrUnknownEntity
	}
	if !permitted {
		return ErrNotPermitted
	}

	confirmed, err := v.deps.Dialog.Confirm(ctx, confirmMessageDeletion)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	if err := v.deps.Messages.Delete(ctx, messageID); err != nil {
		v.fail("Failed to delete message", messageID, err)
		return err
	}

	v.deps.MessageStore.Remove(messageID)
	v.mu.Lock()
	if v.editing && v.editedID == messageID {
		v.clearEditLocked()
	}
	v.mu.Unlock()
	v.notify(ToastMessageDeleted)

	_ = v.refresh(ctx, triggerFollowUp)
	return nil
}

// Post adds a message to the topic on behalf of the connected user.
func (v *TopicView) Post(ctx context.Context, content string) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	author := v.connected
	topicRef := v.topic.Ref()
	v.mu.Unlock()

	if author == nil {
		return ErrNotPermitted
	}
	if err := v.rule.Validate(content); err != nil {
		return err
	}

	draft := model.Message{
		Content: content,
		Date:    model.Now(),
		Author:  author,
		Topic:   topicRef,
	}
	if _, err := v.deps.Messages.Create(ctx, draft); err != nil {
		v.fail("Failed to post message", 0, err)
		return err
	}

	_ = v.refresh(ctx, triggerFollowUp)
	v.notify(ToastMessagePosted)
	return nil
}

func (v *TopicView) IsAuthor(msg model.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return IsAuthor(v.connected, msg)
}

func (v *TopicView) IsAdmin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return IsAdmin(v.connected)
}

func (v *TopicView) CanEdit(msg model.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return CanEditMessage(v.connected, msg)
}

func (v *TopicView) CanDelete(msg model.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return CanDeleteMessage(v.connected, msg)
}

// Render returns the message content as safe HTML.
func (v *TopicView) Render(msg model.Message) template.HTML {
	return markup.Render(msg.Content)
}

// Topic returns a copy of the current view state.
func (v *TopicView) Topic() (model.Topic, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateReady && v.state != StateEditing {
		return model.Topic{}, false
	}
	t := v.topic
	t.Messages = append([]model.Message(nil), v.topic.Messages...)
	return t, true
}

func (v *TopicView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Close stops the polling refresh and releases every subscription. Results
// of requests still in flight are discarded. Close is idempotent.
func (v *TopicView) Close() {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	v.state = StateClosed
	v.editing = false
	subs, poller, cancel := v.subs, v.poller, v.cancel
	id := v.topicID
	v.subs = nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if poller != nil {
		poller.Stop()
	}
	for _, s := range subs {
		s.Unsubscribe()
	}
	v.log.WithField("topic_id", id).Debug("Topic view closed")
}

func (v *TopicView) readyLocked() error {
	switch v.state {
	case StateReady, StateEditing:
		return nil
	case StateClosed:
		return ErrClosed
	}
	return ErrNotReady
}

func (v *TopicView) findLocked(id int64) (model.Message, bool) {
	for _, m := range v.topic.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

func (v *TopicView) clearEditLocked() {
	v.editing = false
	v.editedID = 0
	v.editContent = ""
	if v.state == StateEditing {
		v.state = StateReady
	}
}

// dropStaleEditLocked leaves edit mode when the edited message is gone.
func (v *TopicView) dropStaleEditLocked() {
	if !v.editing {
		return
	}
	if _, ok := v.findLocked(v.editedID); !ok {
		v.clearEditLocked()
	}
}

func (v *TopicView) fail(msg string, id int64, err error) {
	v.log.WithError(err).WithFields(logrus.Fields{
		"topic_id":   v.topicID,
		"message_id": id,
	}).Warn(msg)
	v.notify(ToastGenericError)
}

func (v *TopicView) notify(text string) {
	if v.deps.Notifier != nil {
		v.deps.Notifier.Notify(text)
	}
}

// normalize points every message at its owning topic so that the shared
// message store can be partitioned by topic.
func normalize(topic model.Topic) model.Topic {
	ref := topic.Ref()
	messages := make([]model.Message, len(topic.Messages))
	for i, m := range topic.Messages {
		m.Topic = ref
		messages[i] = m
	}
	topic.Messages = messages
	return topic
}
