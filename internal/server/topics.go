package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"forum/internal/model"
)

func (api *API) loadTopic(db *gorm.DB, id int64) (Topic, error) {
	var topic Topic
	err := db.
		Preload("Author").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("pub_date, message_id")
		}).
		Preload("Messages.Author").
		First(&topic, "topic_id = ?", id).Error
	return topic, err
}

// GETTopicsHandler lists topics without their messages.
func (api *API) GETTopicsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	var topics []Topic
	if err := api.db.Preload("Author").Order("pub_date DESC, topic_id DESC").Find(&topics).Error; err != nil {
		api.failDB(w, "get_topics", err, TOPIC_NOT_FOUND)
		return
	}

	out := make([]model.Topic, 0, len(topics))
	for _, t := range topics {
		out = append(out, t.toModel())
	}
	api.logger.WithField("topic_count", len(out)).Info("Topics retrieved successfully")
	api.writeJSON(w, "get_topics", http.StatusOK, out)
}

// GETTopicHandler returns a topic with its messages, oldest first.
func (api *API) GETTopicHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	id, err := pathID(r)
	if err != nil {
		api.fail(w, "get_topic", http.StatusBadRequest, err.Error())
		return
	}

	topic, err := api.loadTopic(api.db, id)
	if err != nil {
		api.failDB(w, "get_topic", err, TOPIC_NOT_FOUND)
		return
	}
	api.writeJSON(w, "get_topic", http.StatusOK, topic.toModel())
}

func (api *API) POSTTopicHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "post_topic")
	if !ok {
		return
	}

	var req model.Topic
	if err := decodeBody(r, &req); err != nil {
		api.fail(w, "post_topic", http.StatusBadRequest, "Invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if msg := checkLength("title", title, 1, 200); msg != "" {
		api.fail(w, "post_topic", http.StatusBadRequest, msg)
		return
	}

	date := req.Date
	if date.IsZero() {
		date = model.Now()
	}
	topic := Topic{Title: title, PubDate: date.Millis(), AuthorID: current.UserID}
	if err := api.db.Omit("Author", "Messages").Create(&topic).Error; err != nil {
		api.logger.WithError(err).Error("Failed to insert topic into database")
		api.fail(w, "post_topic", http.StatusInternalServerError, "Failed to create topic")
		return
	}
	topic.Author = current

	api.logger.WithFields(logrus.Fields{"topic_id": topic.TopicID, "username": current.Username}).Info("Topic created successfully")
	api.writeJSON(w, "post_topic", http.StatusCreated, topic.toModel())
}

func (api *API) PATCHTopicHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "patch_topic")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.fail(w, "patch_topic", http.StatusBadRequest, err.Error())
		return
	}

	var patch model.TopicPatch
	if err := decodeBody(r, &patch); err != nil {
		api.fail(w, "patch_topic", http.StatusBadRequest, "Invalid request body")
		return
	}
	title := strings.TrimSpace(patch.Title)
	if msg := checkLength("title", title, 1, 200); msg != "" {
		api.fail(w, "patch_topic", http.StatusBadRequest, msg)
		return
	}

	var topic Topic
	if err := api.db.First(&topic, "topic_id = ?", id).Error; err != nil {
		api.failDB(w, "patch_topic", err, TOPIC_NOT_FOUND)
		return
	}
	if topic.AuthorID != current.UserID && !current.Admin {
		api.fail(w, "patch_topic", http.StatusForbidden, FORBIDDEN)
		return
	}
	if err := api.db.Model(&topic).Update("title", title).Error; err != nil {
		api.failDB(w, "patch_topic", err, TOPIC_NOT_FOUND)
		return
	}

	topic, err = api.loadTopic(api.db, id)
	if err != nil {
		api.failDB(w, "patch_topic", err, TOPIC_NOT_FOUND)
		return
	}
	api.writeJSON(w, "patch_topic", http.StatusOK, topic.toModel())
}

// DELETETopicHandler removes a topic and its messages.
func (api *API) DELETETopicHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "delete_topic")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.fail(w, "delete_topic", http.StatusBadRequest, err.Error())
		return
	}

	var topic Topic
	if err := api.db.First(&topic, "topic_id = ?", id).Error; err != nil {
		api.failDB(w, "delete_topic", err, TOPIC_NOT_FOUND)
		return
	}
	if topic.AuthorID != current.UserID && !current.Admin {
		api.fail(w, "delete_topic", http.StatusForbidden, FORBIDDEN)
		return
	}

	err = api.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&topic).Error
	})
	if err != nil {
		api.failDB(w, "delete_topic", err, TOPIC_NOT_FOUND)
		return
	}

	api.logger.WithFields(logrus.Fields{"topic_id": id, "by": current.UserID}).Info("Topic deleted successfully")
	api.writeJSON(w, "delete_topic", http.StatusNoContent, nil)
}
