// Package server is the reference forum backend. It serves the REST
// surface the client consumes and enforces authorship and admin rights
// from the session.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	sessionName   = "forum-session"
	sessionUserID = "user_id"
	slowRequest   = 2 * time.Second
)

const (
	USER_NOT_FOUND    = "User not found"
	TOPIC_NOT_FOUND   = "Topic not found"
	MESSAGE_NOT_FOUND = "Message not found"
	NOT_LOGGED_IN     = "You must be logged in"
	FORBIDDEN         = "You are not allowed to do this"
)

type API struct {
	db       *gorm.DB
	sessions sessions.Store
	logger   *logrus.Logger
	metrics  *Metrics

	// PasswordCost is the bcrypt cost of new password hashes.
	PasswordCost int
}

func NewAPI(db *gorm.DB, store sessions.Store, logger *logrus.Logger, metrics *Metrics) *API {
	return &API{
		db:           db,
		sessions:     store,
		logger:       logger,
		metrics:      metrics,
		PasswordCost: DefaultPasswordCost,
	}
}

func NewSessionStore(key string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(key))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 16, // 16 hours
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	return store
}

func (api *API) afterRequestLogging(start time.Time, r *http.Request) {
	duration := time.Since(start)

	entry := api.logger.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"duration":   duration,
		"remote_ip":  r.RemoteAddr,
		"request_id": r.Header.Get("X-Request-ID"),
	})
	if duration > slowRequest {
		entry.Warn("Slow request detected")
	} else {
		entry.Info("Request completed quickly")
	}
}

// currentUser loads the session's account from the database so that rights
// changed since login apply at once.
func (api *API) currentUser(r *http.Request) (User, bool) {
	session, err := api.sessions.Get(r, sessionName)
	if err != nil {
		return User{}, false
	}
	id, ok := session.Values[sessionUserID].(int64)
	if !ok {
		return User{}, false
	}

	var user User
	if err := api.db.First(&user, "user_id = ?", id).Error; err != nil {
		return User{}, false
	}
	return user, true
}

// requireUser writes a 401 and returns false when nobody is logged in.
func (api *API) requireUser(w http.ResponseWriter, r *http.Request, path string) (User, bool) {
	user, ok := api.currentUser(r)
	if !ok {
		api.fail(w, path, http.StatusUnauthorized, NOT_LOGGED_IN)
	}
	return user, ok
}

func (api *API) writeJSON(w http.ResponseWriter, path string, status int, v interface{}) {
	api.metrics.SuccessfulRequests.WithLabelValues(path).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.WithError(err).Error("Failed to encode response")
	}
}

func (api *API) fail(w http.ResponseWriter, path string, status int, msg string) {
	if status < http.StatusInternalServerError {
		api.metrics.BadRequests.WithLabelValues(path).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Status: status, ErrorMsg: msg}); err != nil {
		api.logger.WithError(err).Error("Failed to encode error response")
	}
}

// failDB maps a database error to 404 when the record is missing and 500
// otherwise.
func (api *API) failDB(w http.ResponseWriter, path string, err error, notFound string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.fail(w, path, http.StatusNotFound, notFound)
		return
	}
	api.logger.WithError(err).WithField("path", path).Error("Database error")
	api.fail(w, path, http.StatusInternalServerError, "Database error")
}

func (api *API) GETHealthHandler(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := api.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		api.logger.WithError(err).Error("Health check failed")
		api.fail(w, "health", http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	api.writeJSON(w, "health", http.StatusOK, map[string]string{"status": "ok"})
}
