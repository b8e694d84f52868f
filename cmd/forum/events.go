package main

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"forum/internal/view"
)

var errQuit = errors.New("client is shutting down")

type toastMsg struct {
	text string
}

type toastExpiredMsg struct {
	id int
}

// changedMsg reports a store broadcast; the next render picks the new state
// up from the views.
type changedMsg struct{}

type confirmMsg struct {
	req *confirmRequest
}

type confirmRequest struct {
	view.Confirmation
	reply chan bool
}

// events carries what happens outside the update loop (toasts, dialogs,
// store broadcasts from the poller) into it as tea messages. It is the
// views' Dialog and Notifier.
type events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func newEvents() *events {
	return &events{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

func (e *events) post(ctx context.Context, msg tea.Msg) error {
	select {
	case e.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return errQuit
	}
}

// signal never blocks: a dropped change is covered by the one still queued.
func (e *events) signal(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
	}
}

func (e *events) Notify(text string) {
	_ = e.post(context.Background(), toastMsg{text: text})
}

func (e *events) Confirm(ctx context.Context, c view.Confirmation) (bool, error) {
	req := &confirmRequest{Confirmation: c, reply: make(chan bool, 1)}
	if err := e.post(ctx, confirmMsg{req: req}); err != nil {
		return false, err
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-e.done:
		return false, errQuit
	}
}

func (e *events) changed() {
	e.signal(changedMsg{})
}

func (e *events) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

func (e *events) close() {
	e.once.Do(func() { close(e.done) })
}
