package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"forum/internal/model"
)

func (api *API) GETUsersHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	if _, ok := api.requireUser(w, r, "get_users"); !ok {
		return
	}

	var users []User
	if err := api.db.Order("user_id").Find(&users).Error; err != nil {
		api.failDB(w, "get_users", err, USER_NOT_FOUND)
		return
	}

	out := make([]model.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.toModel())
	}
	api.logger.WithField("user_count", len(out)).Info("Users retrieved successfully")
	api.writeJSON(w, "get_users", http.StatusOK, out)
}

func (api *API) GETUserHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	id, err := pathID(r)
	if err != nil {
		api.fail(w, "get_user", http.StatusBadRequest, err.Error())
		return
	}

	var user User
	if err := api.db.First(&user, "user_id = ?", id).Error; err != nil {
		api.failDB(w, "get_user", err, USER_NOT_FOUND)
		return
	}
	api.writeJSON(w, "get_user", http.StatusOK, user.toModel())
}

// POSTUserHandler registers an account. The first account becomes the
// administrator.
func (api *API) POSTUserHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	var req model.User
	if err := decodeBody(r, &req); err != nil {
		api.logger.WithError(err).Warn("Invalid request body received")
		api.fail(w, "register", http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	var msg string
	switch {
	case req.Username == "":
		msg = "You have to enter a username"
	case checkLength("username", req.Username, 3, 50) != "":
		msg = checkLength("username", req.Username, 3, 50)
	case req.Password == "":
		msg = "You have to enter a password"
	case req.Password != req.PasswordConfirm:
		msg = "The two passwords do not match"
	}
	if msg != "" {
		api.logger.WithField("username", req.Username).Warn(msg)
		api.fail(w, "register", http.StatusBadRequest, msg)
		return
	}

	hash, err := hashPassword(req.Password, api.PasswordCost)
	if err != nil {
		api.logger.WithError(err).Error("Failed to hash password")
		api.fail(w, "register", http.StatusInternalServerError, "Failed to register user")
		return
	}

	user := User{Username: req.Username, PWHash: hash}
	err = api.db.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&User{}).Where("username = ?", user.Username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			msg = "The username is already taken"
			return nil
		}
		var total int64
		if err := tx.Model(&User{}).Count(&total).Error; err != nil {
			return err
		}
		user.Admin = total == 0
		return tx.Create(&user).Error
	})
	if err != nil {
		api.logger.WithError(err).Error("Error inserting user")
		api.fail(w, "register", http.StatusInternalServerError, "Failed to register user")
		return
	}
	if msg != "" {
		api.logger.WithField("username", user.Username).Warn(msg)
		api.fail(w, "register", http.StatusConflict, msg)
		return
	}

	api.logger.WithFields(logrus.Fields{"username": user.Username, "admin": user.Admin}).Info("User registered successfully")
	api.writeJSON(w, "register", http.StatusCreated, user.toModel())
}

// PATCHUserHandler changes an account. Users may rename themselves or
// change their password; only administrators change other accounts or
// the admin flag.
func (api *API) PATCHUserHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "patch_user")
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.fail(w, "patch_user", http.StatusBadRequest, err.Error())
		return
	}

	var patch model.UserPatch
	if err := decodeBody(r, &patch); err != nil {
		api.fail(w, "patch_user", http.StatusBadRequest, "Invalid request body")
		return
	}

	self := current.UserID == id
	if !self && !current.Admin {
		api.fail(w, "patch_user", http.StatusForbidden, FORBIDDEN)
		return
	}
	if patch.Admin != nil && !current.Admin {
		api.fail(w, "patch_user", http.StatusForbidden, FORBIDDEN)
		return
	}

	var user User
	if err := api.db.First(&user, "user_id = ?", id).Error; err != nil {
		api.failDB(w, "patch_user", err, USER_NOT_FOUND)
		return
	}

	updates := map[string]interface{}{}
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if msg := checkLength("username", name, 3, 50); msg != "" {
			api.fail(w, "patch_user", http.StatusBadRequest, msg)
			return
		}
		var taken int64
		if err := api.db.Model(&User{}).Where("username = ? AND user_id <> ?", name, id).Count(&taken).Error; err != nil {
			api.failDB(w, "patch_user", err, USER_NOT_FOUND)
			return
		}
		if taken > 0 {
			api.fail(w, "patch_user", http.StatusConflict, "The username is already taken")
			return
		}
		updates["username"] = name
	}
	if patch.Admin != nil {
		updates["admin"] = *patch.Admin
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			api.fail(w, "patch_user", http.StatusBadRequest, "You have to enter a password")
			return
		}
		if self && (patch.OldPassword == nil || !checkPasswordHash(*patch.OldPassword, user.PWHash)) {
			api.fail(w, "patch_user", http.StatusForbidden, "The old password is not correct")
			return
		}
		hash, err := hashPassword(*patch.Password, api.PasswordCost)
		if err != nil {
			api.logger.WithError(err).Error("Failed to hash password")
			api.fail(w, "patch_user", http.StatusInternalServerError, "Failed to update user")
			return
		}
		updates["pw_hash"] = hash
	}

	if len(updates) > 0 {
		if err := api.db.Model(&user).Updates(updates).Error; err != nil {
			api.failDB(w, "patch_user", err, USER_NOT_FOUND)
			return
		}
	}
	if err := api.db.First(&user, "user_id = ?", id).Error; err != nil {
		api.failDB(w, "patch_user", err, USER_NOT_FOUND)
		return
	}

	api.logger.WithFields(logrus.Fields{"user_id": id, "by": current.UserID}).Info("User updated successfully")
	api.writeJSON(w, "patch_user", http.StatusOK, user.toModel())
}

// DELETEUserHandler removes an account with its topics and messages.
func (api *API) DELETEUserHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	current, ok := api.requireUser(w, r, "delete_user")
	if !ok {
		return
	}
	if !current.Admin {
		api.fail(w, "delete_user", http.StatusForbidden, FORBIDDEN)
		return
	}
	id, err := pathID(r)
	if err != nil {
		api.fail(w, "delete_user", http.StatusBadRequest, err.Error())
		return
	}

	err = api.db.Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.First(&user, "user_id = ?", id).Error; err != nil {
			return err
		}
		owned := tx.Model(&Topic{}).Select("topic_id").Where("author_id = ?", id)
		if err := tx.Where("topic_id IN (?)", owned).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&Topic{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		api.failDB(w, "delete_user", err, USER_NOT_FOUND)
		return
	}

	api.logger.WithFields(logrus.Fields{"user_id": id, "by": current.UserID}).Info("User deleted successfully")
	api.writeJSON(w, "delete_user", http.StatusNoContent, nil)
}

func (api *API) POSTLoginHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	var req model.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		api.logger.WithError(err).Warn("Invalid request body received")
		api.fail(w, "post_login", http.StatusBadRequest, "Invalid request body")
		return
	}

	var user User
	err := api.db.Where("username = ?", req.Username).First(&user).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		api.logger.WithError(err).Error("Database error during login")
		api.fail(w, "post_login", http.StatusInternalServerError, "Database error")
		return
	}
	if err == gorm.ErrRecordNotFound || !checkPasswordHash(req.Password, user.PWHash) {
		api.logger.WithField("username", req.Username).Warn("Invalid login credentials")
		api.metrics.Logins.WithLabelValues("rejected").Inc()
		api.fail(w, "post_login", http.StatusUnauthorized, "Invalid credentials")
		return
	}

	session, _ := api.sessions.Get(r, sessionName)
	session.Values[sessionUserID] = user.UserID
	if err := session.Save(r, w); err != nil {
		api.logger.WithError(err).Error("Failed to save session")
		api.fail(w, "post_login", http.StatusInternalServerError, "Failed to open session")
		return
	}

	api.logger.WithField("username", user.Username).Info("User logged in successfully")
	api.metrics.Logins.WithLabelValues("accepted").Inc()
	api.writeJSON(w, "post_login", http.StatusOK, user.toModel())
}

func (api *API) POSTLogoutHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer api.afterRequestLogging(start, r)

	session, _ := api.sessions.Get(r, sessionName)
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		api.logger.WithError(err).Error("Failed to clear session")
		api.fail(w, "post_logout", http.StatusInternalServerError, "Failed to close session")
		return
	}
	api.writeJSON(w, "post_logout", http.StatusNoContent, nil)
}
