package server

import "forum/internal/model"

// Dates are stored as epoch milliseconds, the wire format of the API.

type User struct {
	UserID   int64  `gorm:"column:user_id;primaryKey"`
	Username string `gorm:"unique;not null"`
	PWHash   string `gorm:"not null"`
	Admin    bool   `gorm:"not null;default:false"`
}

type Topic struct {
	TopicID  int64     `gorm:"column:topic_id;primaryKey"`
	Title    string    `gorm:"not null"`
	PubDate  int64     `gorm:"not null"`
	AuthorID int64     `gorm:"not null;index"`
	Author   User      `gorm:"foreignKey:AuthorID;references:UserID"`
	Messages []Message `gorm:"foreignKey:TopicID;references:TopicID"`
}

type Message struct {
	MessageID int64  `gorm:"column:message_id;primaryKey"`
	TopicID   int64  `gorm:"not null;index"`
	AuthorID  int64  `gorm:"not null;index"`
	Author    User   `gorm:"foreignKey:AuthorID;references:UserID"`
	Text      string `gorm:"not null"`
	PubDate   int64  `gorm:"not null"`
}

func (u User) toModel() model.User {
	return model.User{ID: u.UserID, Username: u.Username, Admin: u.Admin}
}

func (t Topic) ref() *model.Topic {
	return &model.Topic{ID: t.TopicID, Title: t.Title, Date: model.FromMillis(t.PubDate)}
}

// toModel converts a topic. Messages are only listed when preloaded.
func (t Topic) toModel() model.Topic {
	author := t.Author.toModel()
	out := model.Topic{
		ID:       t.TopicID,
		Title:    t.Title,
		Date:     model.FromMillis(t.PubDate),
		Author:   &author,
		Messages: make([]model.Message, 0, len(t.Messages)),
	}
	ref := t.ref()
	for _, m := range t.Messages {
		out.Messages = append(out.Messages, m.toModel(ref))
	}
	return out
}

func (m Message) toModel(topic *model.Topic) model.Message {
	author := m.Author.toModel()
	if topic == nil {
		topic = &model.Topic{ID: m.TopicID}
	}
	return model.Message{
		ID:      m.MessageID,
		Content: m.Text,
		Date:    model.FromMillis(m.PubDate),
		Author:  &author,
		Topic:   topic,
	}
}

type errorResponse struct {
	Status   int    `json:"status"`
	ErrorMsg string `json:"error_msg"`
}
