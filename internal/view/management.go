package view

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"forum/internal/model"
	"forum/internal/store"
)

type ManagementDeps struct {
	Users     UserManager
	Store     *store.Store[int64, model.User]
	Connected *store.Value[*model.User]
	Dialog    Dialog
	Notifier  Notifier
	Logger    *logrus.Logger
}

// ManagementView lists user accounts for administrators. Unlike the topic
// view it does not poll.
type ManagementView struct {
	deps ManagementDeps
	log  *logrus.Entry
	rule LengthRule

	mu            sync.Mutex
	state         State
	users         []model.User
	filter        string
	connected     *model.User
	editing       bool
	editedID      int64
	draftUsername string
	draftAdmin    bool
	subs          []*store.Subscription
}

func NewManagementView(deps ManagementDeps) *ManagementView {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ManagementView{
		deps: deps,
		log:  logger.WithField("view", "management"),
		rule: UsernameRule,
	}
}

func (v *ManagementView) Activate(ctx context.Context) error {
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
	v.mu.Unlock()

	users, err := v.deps.Users.FetchAll(ctx)
	if err != nil {
		v.log.WithError(err).Warn("Failed to load users")
		v.notify(ToastGenericError)
		v.mu.Lock()
		if v.state == StateLoading {
			v.state = StateUninitialized
		}
		v.mu.Unlock()
		return err
	}

	subs := []*store.Subscription{
		v.deps.Connected.Subscribe(v.onConnectedUser),
		v.deps.Store.Subscribe(v.onUsers),
	}
	v.mu.Lock()
	closed := v.state == StateClosed
	if !closed {
		v.state = StateReady
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
	v.deps.Store.Replace(users)

	v.log.WithField("users", len(users)).Info("Users loaded")
	return nil
}

func (v *ManagementView) onConnectedUser(u *model.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return
	}
	v.connected = u
}

func (v *ManagementView) onUsers(users []model.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateReady && v.state != StateEditing {
		return
	}
	v.users = users
	if v.editing && !containsUser(users, v.editedID) {
		v.clearEditLocked()
	}
}

// SetFilter narrows Filtered to usernames containing s. The match is a
// case-sensitive substring test done on the client.
func (v *ManagementView) SetFilter(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = s
}

func (v *ManagementView) Filtered() []model.User {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]model.User, 0, len(v.users))
	for _, u := range v.users {
		if v.filter == "" || strings.Contains(u.Username, v.filter) {
			out = append(out, u)
		}
	}
	return out
}

func (v *ManagementView) ToggleEdit(userID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}

	if v.editing && v.editedID == userID {
		v.clearEditLocked()
		return nil
	}

	u, ok := findUser(v.users, userID)
	if !ok {
		return ErrUnknownEntity
	}
	if !IsAdmin(v.connected) {
		return ErrNotPermitted
	}
	v.editing = true
	v.editedID = userID
	v.draftUsername = u.Username
	v.draftAdmin = u.Admin
	v.state = StateEditing
	return nil
}

func (v *ManagementView) Edited() (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editedID, v.editing
}

// Draft returns the initial values of the edit fields.
func (v *ManagementView) Draft() (username string, admin bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draftUsername, v.draftAdmin
}

// SubmitEdit renames the edited user and sets its admin flag. Only those
// two fields are patched into the cache.
func (v *ManagementView) SubmitEdit(ctx context.Context, username string, admin bool) error {
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
	permitted := IsAdmin(v.connected)
	v.mu.Unlock()

	if !permitted {
		return ErrNotPermitted
	}
	if err := v.rule.Validate(username); err != nil {
		return err
	}

	updated, err := v.deps.Users.Update(ctx, id, model.UserPatch{Username: &username, Admin: &admin})
	if err != nil {
		v.fail("Failed to update user", id, err)
		return err
	}

	v.deps.Store.Patch(id, func(u model.User) model.User {
		u.Username = updated.Username
		u.Admin = updated.Admin
		return u
	})
	v.notify(ToastUserUpdated)

	v.mu.Lock()
	if v.editing && v.editedID == id {
		v.clearEditLocked()
	}
	v.mu.Unlock()
	return nil
}

// Delete removes a user after confirmation. A declined confirmation
// changes nothing and returns nil.
func (v *ManagementView) Delete(ctx context.Context, userID int64) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	_, ok := findUser(v.users, userID)
	permitted := IsAdmin(v.connected)
	v.mu.Unlock()

	if !ok {
		return ErrUnknownEntity
	}
	if !permitted {
		return ErrNotPermitted
	}

	confirmed, err := v.deps.Dialog.Confirm(ctx, confirmUserDeletion)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	if err := v.deps.Users.Delete(ctx, userID); err != nil {
		v.fail("Failed to delete user", userID, err)
		return err
	}

	v.deps.Store.Remove(userID)
	v.mu.Lock()
	if v.editing && v.editedID == userID {
		v.clearEditLocked()
	}
	v.mu.Unlock()
	v.notify(ToastUserDeleted)
	return nil
}

// AdminLabel is the text of the admin column.
func (v *ManagementView) AdminLabel(u model.User) string {
	if u.Admin {
		return "Yes"
	}
	return "No"
}

func (v *ManagementView) ConnectedIsAdmin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return IsAdmin(v.connected)
}

func (v *ManagementView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *ManagementView) Close() {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	v.state = StateClosed
	v.editing = false
	subs := v.subs
	v.subs = nil
	v.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (v *ManagementView) readyLocked() error {
	switch v.state {
	case StateReady, StateEditing:
		return nil
	case StateClosed:
		return ErrClosed
	}
	return ErrNotReady
}

func (v *ManagementView) clearEditLocked() {
	v.editing = false
	v.editedID = 0
	v.draftUsername = ""
	v.draftAdmin = false
	if v.state == StateEditing {
		v.state = StateReady
	}
}

func (v *ManagementView) fail(msg string, id int64, err error) {
	v.log.WithError(err).WithField("user_id", id).Warn(msg)
	v.notify(ToastGenericError)
}

func (v *ManagementView) notify(text string) {
	if v.deps.Notifier != nil {
		v.deps.Notifier.Notify(text)
	}
}

func findUser(users []model.User, id int64) (model.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func containsUser(users []model.User, id int64) bool {
	_, ok := findUser(users, id)
	return ok
}
