package model

type User struct {
	ID              int64     `json:"id,omitempty"`
	Username        string    `json:"username"`
	Password        string    `json:"password,omitempty"`
	PasswordConfirm string    `json:"passwordConfirm,omitempty"`
	OldPassword     string    `json:"oldPassword,omitempty"`
	Admin           bool      `json:"admin"`
	Messages        []Message `json:"messages,omitempty"`
	Topics          []Topic   `json:"topics,omitempty"`
}

type Topic struct {
	ID       int64     `json:"id,omitempty"`
	Title    string    `json:"title"`
	Date     Time      `json:"date"`
	Author   *User     `json:"author,omitempty"`
	Messages []Message `json:"messages"`
}

type Message struct {
	ID      int64  `json:"id,omitempty"`
	Content string `json:"content"`
	Date    Time   `json:"date"`
	Author  *User  `json:"author,omitempty"`
	Topic   *Topic `json:"topic,omitempty"`
}

type MessagePatch struct {
	Content string `json:"content"`
}

type TopicPatch struct {
	Title string `json:"title"`
}

// UserPatch carries only the fields being changed.
type UserPatch struct {
	Username    *string `json:"username,omitempty"`
	Admin       *bool   `json:"admin,omitempty"`
	Password    *string `json:"password,omitempty"`
	OldPassword *string `json:"oldPassword,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Ref is the reference a message keeps to its owning topic, without
// the message list.
func (t Topic) Ref() *Topic {
	return &Topic{ID: t.ID, Title: t.Title, Date: t.Date}
}

// Public strips password fields and owned collections.
func (u User) Public() User {
	return User{ID: u.ID, Username: u.Username, Admin: u.Admin}
}

// TopicID returns the owning topic id, zero when unknown.
func (m Message) TopicID() int64 {
	if m.Topic == nil {
		return 0
	}
	return m.Topic.ID
}

// AuthorID returns the author id, zero when unknown.
func (m Message) AuthorID() int64 {
	if m.Author == nil {
		return 0
	}
	return m.Author.ID
}

func UserKey(u User) int64       { return u.ID }
func TopicKey(t Topic) int64     { return t.ID }
func MessageKey(m Message) int64 { return m.ID }
