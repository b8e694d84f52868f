package client

import (
	"context"
	"net/http"

	"forum/internal/model"
	"forum/internal/store"
)

const messagesPath = "/api/message/"

type MessagesService struct {
	client *Client
	Store  *store.Store[int64, model.Message]
}

func NewMessagesService(c *Client) *MessagesService {
	return &MessagesService{
		client: c,
		Store:  store.New(model.MessageKey),
	}
}

func (s *MessagesService) FetchAll(ctx context.Context) ([]model.Message, error) {
	var messages []model.Message
	if err := s.client.do(ctx, "message", http.MethodGet, messagesPath, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Create posts a draft. The author and topic are taken by reference; only
// their ids matter to the server.
func (s *MessagesService) Create(ctx context.Context, draft model.Message) (model.Message, error) {
	body := model.Message{Content: draft.Content, Date: draft.Date}
	if draft.Author != nil {
		author := draft.Author.Public()
		body.Author = &author
	}
	if draft.Topic != nil {
		body.Topic = draft.Topic.Ref()
	}

	var created model.Message
	err := s.client.do(ctx, "message", http.MethodPost, messagesPath, body, &created)
	return created, err
}

func (s *MessagesService) Update(ctx context.Context, id int64, patch model.MessagePatch) (model.Message, error) {
	var updated model.Message
	err := s.client.do(ctx, "message", http.MethodPatch, itemPath(messagesPath, id), patch, &updated)
	return updated, err
}

func (s *MessagesService) Delete(ctx context.Context, id int64) error {
	return s.client.do(ctx, "message", http.MethodDelete, itemPath(messagesPath, id), nil, nil)
}
