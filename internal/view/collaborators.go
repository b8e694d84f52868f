// Package view orchestrates the forum screens: it fetches through the
// entity services, reconciles their stores and keeps the screen state in
// sync with what the server confirmed.
package view

import (
	"context"

	"forum/internal/model"
)

// Confirmation is what the confirmation dialog displays.
type Confirmation struct {
	Title   string
	Content string
	Action  string
}

// Dialog asks the user to confirm a destructive action.
type Dialog interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// Notifier shows short-lived messages (toasts).
type Notifier interface {
	Notify(text string)
}

type TopicSource interface {
	Get(ctx context.Context, id int64) (model.Topic, error)
}

type MessageWriter interface {
	Create(ctx context.Context, draft model.Message) (model.Message, error)
	Update(ctx context.Context, id int64, patch model.MessagePatch) (model.Message, error)
	Delete(ctx context.Context, id int64) error
}

type UserManager interface {
	FetchAll(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id int64, patch model.UserPatch) (model.User, error)
	Delete(ctx context.Context, id int64) error
}

const (
	ToastGenericError   = "An error occurred. Please check your input."
	ToastRefreshFailed  = "An error occurred while refreshing the messages"
	ToastRefreshed      = "Messages refreshed"
	ToastMessagePosted  = "Your message has been sent"
	ToastMessageUpdated = "The message has been updated"
	ToastMessageDeleted = "The message has been deleted"
	ToastUserUpdated    = "The user has been updated"
	ToastUserDeleted    = "The user has been deleted"
)

var (
	confirmMessageDeletion = Confirmation{
		Title:   "Are you sure you want to delete this message?",
		Content: "This action cannot be undone.",
		Action:  "Delete",
	}
	confirmUserDeletion = Confirmation{
		Title:   "Are you sure you want to delete this user?",
		Content: "This action cannot be undone.",
		Action:  "Delete",
	}
)
