package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"forum/internal/model"
)

// newTestServer serves the API over a private in-memory database.
func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := prometheus.NewRegistry()

	api := NewAPI(db, NewSessionStore("test-session-key"), logger, InitMetrics(reg))
	api.PasswordCost = bcrypt.MinCost

	srv := httptest.NewServer(api.Router(reg))
	t.Cleanup(func() {
		srv.Close()
		sqlDB.Close()
	})
	return srv, db
}

type session struct {
	t      *testing.T
	base   string
	client *http.Client
}

func createSession(t *testing.T, srv *httptest.Server) *session {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &session{t: t, base: srv.URL, client: &http.Client{Jar: jar}}
}

func (s *session) do(method, path string, body interface{}) *http.Response {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, s.base+path, reader)
	if err != nil {
		s.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *session) register(username, password string) *http.Response {
	return s.do(http.MethodPost, "/api/user/", model.User{
		Username:        username,
		Password:        password,
		PasswordConfirm: password,
	})
}

func (s *session) login(username, password string) *http.Response {
	return s.do(http.MethodPost, "/api/user/login", model.LoginRequest{Username: username, Password: password})
}

// signUp registers and logs in, returning the account.
func (s *session) signUp(username string) model.User {
	s.t.Helper()
	assertStatus(s.t, s.register(username, "default"), http.StatusCreated)
	resp := s.login(username, "default")
	assertStatus(s.t, resp, http.StatusOK)
	var user model.User
	decodeJSON(s.t, resp, &user)
	return user
}

func (s *session) createTopic(title string) model.Topic {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/api/topic/", model.Topic{Title: title})
	assertStatus(s.t, resp, http.StatusCreated)
	var topic model.Topic
	decodeJSON(s.t, resp, &topic)
	return topic
}

func (s *session) postMessage(topicID int64, content string) model.Message {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/api/message/", model.Message{Content: content, Topic: &model.Topic{ID: topicID}})
	assertStatus(s.t, resp, http.StatusCreated)
	var msg model.Message
	decodeJSON(s.t, resp, &msg)
	return msg
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d but got %d: %s", want, resp.StatusCode, body)
	}
}

func assertContains(t *testing.T, resp *http.Response, text string) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if !strings.Contains(string(body), text) {
		t.Errorf("Expected response to contain %q but got %q", text, string(body))
	}
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestRegister(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)

	resp := s.register("user1", "default")
	assertStatus(t, resp, http.StatusCreated)
	var first model.User
	decodeJSON(t, resp, &first)
	if !first.Admin {
		t.Error("Expected the first account to be admin")
	}
	if first.Password != "" {
		t.Error("Expected no password in the response")
	}

	resp = s.register("user2", "default")
	assertStatus(t, resp, http.StatusCreated)
	var second model.User
	decodeJSON(t, resp, &second)
	if second.Admin {
		t.Error("Expected later accounts not to be admin")
	}

	resp = s.register("user1", "default")
	assertStatus(t, resp, http.StatusConflict)
	assertContains(t, resp, "The username is already taken")

	resp = s.register("", "default")
	assertStatus(t, resp, http.StatusBadRequest)
	assertContains(t, resp, "You have to enter a username")

	resp = s.register("ab", "default")
	assertStatus(t, resp, http.StatusBadRequest)
	assertContains(t, resp, "You must enter at least 3 characters")

	resp = s.register("meh", "")
	assertStatus(t, resp, http.StatusBadRequest)
	assertContains(t, resp, "You have to enter a password")

	resp = s.do(http.MethodPost, "/api/user/", model.User{Username: "user3", Password: "a", PasswordConfirm: "b"})
	assertStatus(t, resp, http.StatusBadRequest)
	assertContains(t, resp, "The two passwords do not match")
}

func TestLoginLogout(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)
	assertStatus(t, s.register("user1", "default"), http.StatusCreated)

	resp := s.do(http.MethodGet, "/api/user/", nil)
	assertStatus(t, resp, http.StatusUnauthorized)
	assertContains(t, resp, `"error_msg":"You must be logged in"`)

	resp = s.login("user1", "wrong password")
	assertStatus(t, resp, http.StatusUnauthorized)
	assertContains(t, resp, "Invalid credentials")

	resp = s.login("user2", "default")
	assertStatus(t, resp, http.StatusUnauthorized)

	resp = s.login("user1", "default")
	assertStatus(t, resp, http.StatusOK)
	assertContains(t, resp, `"username":"user1"`)

	resp = s.do(http.MethodGet, "/api/user/", nil)
	assertStatus(t, resp, http.StatusOK)
	var users []model.User
	decodeJSON(t, resp, &users)
	if len(users) != 1 || users[0].Username != "user1" {
		t.Errorf("Expected [user1] but got %+v", users)
	}

	assertStatus(t, s.do(http.MethodPost, "/api/user/logout", nil), http.StatusNoContent)
	assertStatus(t, s.do(http.MethodGet, "/api/user/", nil), http.StatusUnauthorized)
}

func TestTopicWithMessages(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)
	alice := s.signUp("alice")

	topic := s.createTopic("Welcome")
	if topic.ID == 0 || topic.Author == nil || topic.Author.ID != alice.ID {
		t.Fatalf("Expected a topic authored by alice but got %+v", topic)
	}

	first := s.postMessage(topic.ID, "first message")
	second := s.postMessage(topic.ID, "second [b]message[/b]")
	if first.TopicID() != topic.ID || first.AuthorID() != alice.ID {
		t.Errorf("Expected message in topic %d by %d but got %+v", topic.ID, alice.ID, first)
	}

	resp := s.do(http.MethodGet, fmt.Sprintf("/api/topic/%d", topic.ID), nil)
	assertStatus(t, resp, http.StatusOK)
	var got model.Topic
	decodeJSON(t, resp, &got)
	if len(got.Messages) != 2 {
		t.Fatalf("Expected 2 messages but got %d", len(got.Messages))
	}
	if got.Messages[0].ID != first.ID || got.Messages[1].ID != second.ID {
		t.Errorf("Expected messages in posting order but got %d, %d", got.Messages[0].ID, got.Messages[1].ID)
	}
	if got.Messages[1].Author == nil || got.Messages[1].Author.Username != "alice" {
		t.Error("Expected message authors to be loaded")
	}
	if got.Messages[0].TopicID() != topic.ID {
		t.Error("Expected messages to reference their topic")
	}

	resp = s.do(http.MethodGet, "/api/topic/", nil)
	assertStatus(t, resp, http.StatusOK)
	var topics []model.Topic
	decodeJSON(t, resp, &topics)
	if len(topics) != 1 || len(topics[0].Messages) != 0 {
		t.Errorf("Expected one topic summary without messages but got %+v", topics)
	}

	resp = s.do(http.MethodGet, "/api/topic/999", nil)
	assertStatus(t, resp, http.StatusNotFound)
	assertContains(t, resp, TOPIC_NOT_FOUND)
}

func TestPostMessageValidatesContent(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)
	s.signUp("alice")
	topic := s.createTopic("Welcome")

	resp := s.do(http.MethodPost, "/api/message/", model.Message{Content: "four", Topic: &model.Topic{ID: topic.ID}})
	assertStatus(t, resp, http.StatusBadRequest)
	assertContains(t, resp, "You must enter at least 5 characters")

	resp = s.do(http.MethodPost, "/api/message/", model.Message{Content: strings.Repeat("a", 3001), Topic: &model.Topic{ID: topic.ID}})
	assertStatus(t, resp, http.StatusBadRequest)
	assertContains(t, resp, "You cannot enter more than 3000 characters")

	resp = s.do(http.MethodPost, "/api/message/", model.Message{Content: "no topic here"})
	assertStatus(t, resp, http.StatusBadRequest)

	resp = s.do(http.MethodPost, "/api/message/", model.Message{Content: "unknown topic", Topic: &model.Topic{ID: 42}})
	assertStatus(t, resp, http.StatusNotFound)

	anonymous := createSession(t, srv)
	resp = anonymous.do(http.MethodPost, "/api/message/", model.Message{Content: "who am I", Topic: &model.Topic{ID: topic.ID}})
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestOnlyAuthorEditsMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := createSession(t, srv)
	admin.signUp("alice")
	topic := admin.createTopic("Welcome")
	msg := admin.postMessage(topic.ID, "original content")

	other := createSession(t, srv)
	other.signUp("bob")

	path := fmt.Sprintf("/api/message/%d", msg.ID)
	resp := other.do(http.MethodPatch, path, model.MessagePatch{Content: "hijacked content"})
	assertStatus(t, resp, http.StatusForbidden)

	resp = admin.do(http.MethodPatch, path, model.MessagePatch{Content: "edit"})
	assertStatus(t, resp, http.StatusBadRequest)

	resp = admin.do(http.MethodPatch, path, model.MessagePatch{Content: "edited content"})
	assertStatus(t, resp, http.StatusOK)
	var updated model.Message
	decodeJSON(t, resp, &updated)
	if updated.Content != "edited content" || updated.ID != msg.ID {
		t.Errorf("Expected edited message %d but got %+v", msg.ID, updated)
	}

	resp = admin.do(http.MethodPatch, "/api/message/999", model.MessagePatch{Content: "edited content"})
	assertStatus(t, resp, http.StatusNotFound)
}

func TestDeleteMessageRights(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := createSession(t, srv)
	admin.signUp("alice")
	topic := admin.createTopic("Welcome")
	adminMsg := admin.postMessage(topic.ID, "message by alice")

	other := createSession(t, srv)
	other.signUp("bob")
	otherMsg := other.postMessage(topic.ID, "message by bob")

	assertStatus(t, other.do(http.MethodDelete, fmt.Sprintf("/api/message/%d", adminMsg.ID), nil), http.StatusForbidden)
	assertStatus(t, admin.do(http.MethodDelete, fmt.Sprintf("/api/message/%d", otherMsg.ID), nil), http.StatusNoContent)
	assertStatus(t, admin.do(http.MethodDelete, fmt.Sprintf("/api/message/%d", otherMsg.ID), nil), http.StatusNotFound)

	resp := admin.do(http.MethodGet, "/api/message/", nil)
	assertStatus(t, resp, http.StatusOK)
	var messages []model.Message
	decodeJSON(t, resp, &messages)
	if len(messages) != 1 || messages[0].ID != adminMsg.ID {
		t.Errorf("Expected only alice's message left but got %+v", messages)
	}
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	srv, db := newTestServer(t)
	admin := createSession(t, srv)
	alice := admin.signUp("alice")
	topic := admin.createTopic("Welcome")
	admin.postMessage(topic.ID, "message by alice")

	other := createSession(t, srv)
	bob := other.signUp("bob")
	bobTopic := other.createTopic("Bob's topic")
	other.postMessage(bobTopic.ID, "message in bob's topic")
	other.postMessage(topic.ID, "message by bob")
	admin.postMessage(bobTopic.ID, "alice in bob's topic")

	yes := true
	newName := "alice2"
	resp := other.do(http.MethodPatch, fmt.Sprintf("/api/user/%d", alice.ID), model.UserPatch{Username: &newName})
	assertStatus(t, resp, http.StatusForbidden)
	resp = other.do(http.MethodPatch, fmt.Sprintf("/api/user/%d", bob.ID), model.UserPatch{Admin: &yes})
	assertStatus(t, resp, http.StatusForbidden)
	assertStatus(t, other.do(http.MethodDelete, fmt.Sprintf("/api/user/%d", alice.ID), nil), http.StatusForbidden)

	bobName := "robert"
	resp = admin.do(http.MethodPatch, fmt.Sprintf("/api/user/%d", bob.ID), model.UserPatch{Username: &bobName, Admin: &yes})
	assertStatus(t, resp, http.StatusOK)
	var updated model.User
	decodeJSON(t, resp, &updated)
	if updated.Username != "robert" || !updated.Admin {
		t.Errorf("Expected robert to be admin but got %+v", updated)
	}

	taken := "alice"
	resp = admin.do(http.MethodPatch, fmt.Sprintf("/api/user/%d", bob.ID), model.UserPatch{Username: &taken})
	assertStatus(t, resp, http.StatusConflict)

	assertStatus(t, admin.do(http.MethodDelete, fmt.Sprintf("/api/user/%d", bob.ID), nil), http.StatusNoContent)

	var count int64
	db.Model(&Message{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected only alice's message in her own topic to remain but got %d messages", count)
	}
	db.Model(&Topic{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected bob's topic to be deleted but got %d topics", count)
	}

	assertStatus(t, other.do(http.MethodGet, "/api/user/", nil), http.StatusUnauthorized)
}

func TestChangeOwnPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)
	user := s.signUp("alice")
	path := fmt.Sprintf("/api/user/%d", user.ID)

	newPassword := "secret"
	wrong := "nope"
	resp := s.do(http.MethodPatch, path, model.UserPatch{Password: &newPassword, OldPassword: &wrong})
	assertStatus(t, resp, http.StatusForbidden)

	old := "default"
	resp = s.do(http.MethodPatch, path, model.UserPatch{Password: &newPassword, OldPassword: &old})
	assertStatus(t, resp, http.StatusOK)

	fresh := createSession(t, srv)
	assertStatus(t, fresh.login("alice", "default"), http.StatusUnauthorized)
	assertStatus(t, fresh.login("alice", "secret"), http.StatusOK)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	s := createSession(t, srv)

	resp := s.do(http.MethodGet, "/health", nil)
	assertStatus(t, resp, http.StatusOK)
	assertContains(t, resp, `"status":"ok"`)

	s.register("alice", "default")
	resp = s.do(http.MethodGet, "/metrics", nil)
	assertStatus(t, resp, http.StatusOK)
	assertContains(t, resp, `forum_successful_request{path="register"} 1`)
}
