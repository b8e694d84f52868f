package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const DefaultPasswordCost = 14

const maxBodySize = 1 << 20

var errInvalidID = errors.New("invalid id")

func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// checkLength returns the message shown to the user, empty when s fits.
func checkLength(field, s string, min, max int) string {
	n := utf8.RuneCountInString(s)
	switch {
	case n < min:
		return fmt.Sprintf("%s: You must enter at least %d characters", field, min)
	case n > max:
		return fmt.Sprintf("%s: You cannot enter more than %d characters", field, max)
	}
	return ""
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
