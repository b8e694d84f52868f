package server

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"forum/internal/model"
)

const (
	minContent = 5
	maxContent = 3000
)

func (api *API) GETMessagesHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	var messages []Message
	if err := api.db.Preload("Author").Order("pub_date, message_id").Find(&messages).Error; err != nil {
		api.failDB(w, "get_messages", err, MESSAGE_NOT_FOUND)
		return
	}

	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.toModel(nil))
	}
	api.logger.WithField("message_count", len(out)).Info("Messages retrieved successfully")
	api.writeJSON(w, "get_messages", http.StatusOK, out)
}

// POSTMessagesHandler posts a message in a topic. The author is the
// session's account whatever the body says.
func (api *API) POSTMessagesHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "post_message")
	if !ok {
		return
	}

	var req model.Message
	if err := decodeBody(r, &req); err != nil {
		api.logger.WithError(err).Warn("Invalid or missing content in request")
		api.fail(w, "post_message", http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := checkLength("content", req.Content, minContent, maxContent); msg != "" {
		api.fail(w, "post_message", http.StatusBadRequest, msg)
		return
	}
	if req.TopicID() == 0 {
		api.fail(w, "post_message", http.StatusBadRequest, "A message needs a topic")
		return
	}

	var topic Topic
	if err := api.db.First(&topic, "topic_id = ?", req.TopicID()).Error; err != nil {
		api.failDB(w, "post_message", err, TOPIC_NOT_FOUND)
		return
	}

	date := req.Date
	if date.IsZero() {
		date = model.Now()
	}
	message := Message{
		TopicID:  topic.TopicID,
		AuthorID: current.UserID,
		Text:     req.Content,
		PubDate:  date.Millis(),
	}
	if err := api.db.Omit("Author").Create(&message).Error; err != nil {
		api.logger.WithError(err).Error("Failed to insert message into database")
		api.fail(w, "post_message", http.StatusInternalServerError, "Failed to post message")
		return
	}
	message.Author = current

	api.logger.WithFields(logrus.Fields{
		"username": current.Username,
		"topic_id": topic.TopicID,
	}).Info("Message posted successfully")
	api.metrics.MessagesSent.WithLabelValues("post_message").Inc()
	api.writeJSON(w, "post_message", http.StatusCreated, message.toModel(topic.ref()))
}

// PATCHMessageHandler edits the content of a message. Only its author may.
func (api *API) PATCHMessageHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "patch_message")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.fail(w, "patch_message", http.StatusBadRequest, err.Error())
		return
	}

	var patch model.MessagePatch
	if err := decodeBody(r, &patch); err != nil {
		api.fail(w, "patch_message", http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := checkLength("content", patch.Content, minContent, maxContent); msg != "" {
		api.fail(w, "patch_message", http.StatusBadRequest, msg)
		return
	}

	var message Message
	if err := api.db.Preload("Author").First(&message, "message_id = ?", id).Error; err != nil {
		api.failDB(w, "patch_message", err, MESSAGE_NOT_FOUND)
		return
	}
	if message.AuthorID != current.UserID {
		api.logger.WithFields(logrus.Fields{"message_id": id, "by": current.UserID}).Warn("Edit of another user's message refused")
		api.fail(w, "patch_message", http.StatusForbidden, FORBIDDEN)
		return
	}

	if err := api.db.Model(&message).Update("text", patch.Content).Error; err != nil {
		api.failDB(w, "patch_message", err, MESSAGE_NOT_FOUND)
		return
	}
	message.Text = patch.Content

	api.writeJSON(w, "patch_message", http.StatusOK, message.toModel(nil))
}

// DELETEMessageHandler removes a message. Its author and administrators
// may.
func (api *API) DELETEMessageHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "delete_message")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.fail(w, "delete_message", http.StatusBadRequest, err.Error())
		return
	}

	var message Message
	if err := api.db.First(&message, "message_id = ?", id).Error; err != nil {
		api.failDB(w, "delete_message", err, MESSAGE_NOT_FOUND)
		return
	}
	if message.AuthorID != current.UserID && !current.Admin {
		api.fail(w, "delete_message", http.StatusForbidden, FORBIDDEN)
		return
	}
	if err := api.db.Delete(&message).Error; err != nil {
		api.failDB(w, "delete_message", err, MESSAGE_NOT_FOUND)
		return
	}

	api.logger.WithFields(logrus.Fields{"message_id": id, "by": current.UserID}).Info("Message deleted successfully")
	api.writeJSON(w, "delete_message", http.StatusNoContent, nil)
}
