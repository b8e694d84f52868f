package client

import (
	"context"
	"net/http"

	"forum/internal/model"
	"forum/internal/store"
)

const usersPath = "/api/user/"

type UsersService struct {
	client *Client
	Store  *store.Store[int64, model.User]

	// Connected is the client's notion of the authenticated account. It
	// is nil when nobody is logged in.
	Connected *store.Value[*model.User]
}

func NewUsersService(c *Client) *UsersService {
	return &UsersService{
		client:    c,
		Store:     store.New(model.UserKey),
		Connected: &store.Value[*model.User]{},
	}
}

func (s *UsersService) FetchAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.client.do(ctx, "user", http.MethodGet, usersPath, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UsersService) Get(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	err := s.client.do(ctx, "user", http.MethodGet, itemPath(usersPath, id), nil, &user)
	return user, err
}

// Create registers a new account.
func (s *UsersService) Create(ctx context.Context, draft model.User) (model.User, error) {
	body := model.User{
		Username:        draft.Username,
		Password:        draft.Password,
		PasswordConfirm: draft.PasswordConfirm,
	}
	var created model.User
	err := s.client.do(ctx, "user", http.MethodPost, usersPath, body, &created)
	return created, err
}

func (s *UsersService) Update(ctx context.Context, id int64, patch model.UserPatch) (model.User, error) {
	var updated model.User
	err := s.client.do(ctx, "user", http.MethodPatch, itemPath(usersPath, id), patch, &updated)
	return updated, err
}

func (s *UsersService) Delete(ctx context.Context, id int64) error {
	return s.client.do(ctx, "user", http.MethodDelete, itemPath(usersPath, id), nil, nil)
}

// Login opens a session and publishes the connected user.
func (s *UsersService) Login(ctx context.Context, username, password string) (model.User, error) {
	var user model.User
	req := model.LoginRequest{Username: username, Password: password}
	if err := s.client.do(ctx, "user", http.MethodPost, usersPath+"login", req, &user); err != nil {
		return model.User{}, err
	}
	s.Connected.Set(&user)
	return user, nil
}

func (s *UsersService) Logout(ctx context.Context) error {
	if err := s.client.do(ctx, "user", http.MethodPost, usersPath+"logout", nil, nil); err != nil {
		return err
	}
	s.Connected.Clear()
	return nil
}
