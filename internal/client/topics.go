package client

import (
	"context"
	"net/http"

	"forum/internal/model"
	"forum/internal/store"
)

const topicsPath = "/api/topic/"

type TopicsService struct {
	client *Client
	Store  *store.Store[int64, model.Topic]
}

func NewTopicsService(c *Client) *TopicsService {
	return &TopicsService{
		client: c,
		Store:  store.New(model.TopicKey),
	}
}

func (s *TopicsService) FetchAll(ctx context.Context) ([]model.Topic, error) {
	var topics []model.Topic
	if err := s.client.do(ctx, "topic", http.MethodGet, topicsPath, nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// Get returns the topic with its messages in server order.
func (s *TopicsService) Get(ctx context.Context, id int64) (model.Topic, error) {
	var topic model.Topic
	err := s.client.do(ctx, "topic", http.MethodGet, itemPath(topicsPath, id), nil, &topic)
	return topic, err
}

func (s *TopicsService) Create(ctx context.Context, draft model.Topic) (model.Topic, error) {
	body := model.Topic{Title: draft.Title, Date: draft.Date}
	var created model.Topic
	err := s.client.do(ctx, "topic", http.MethodPost, topicsPath, body, &created)
	return created, err
}

func (s *TopicsService) Update(ctx context.Context, id int64, patch model.TopicPatch) (model.Topic, error) {
	var updated model.Topic
	err := s.client.do(ctx, "topic", http.MethodPatch, itemPath(topicsPath, id), patch, &updated)
	return updated, err
}

func (s *TopicsService) Delete(ctx context.Context, id int64) error {
	return s.client.do(ctx, "topic", http.MethodDelete, itemPath(topicsPath, id), nil, nil)
}
