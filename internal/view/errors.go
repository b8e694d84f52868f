package view

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrClosed        = errors.New("view is closed")
	ErrNotReady      = errors.New("view is not loaded")
	ErrActive        = errors.New("view is already active")
	ErrNotEditing    = errors.New("nothing is being edited")
	ErrNotPermitted  = errors.New("not permitted for the connected user")
	ErrUnknownEntity = errors.New("no such entity in view")
)

// LengthRule bounds the length of a text field, counted in characters.
type LengthRule struct {
	Field string
	Min   int
	Max   int
}

var (
	MessageContentRule = LengthRule{Field: "content", Min: 5, Max: 3000}
	UsernameRule       = LengthRule{Field: "username", Min: 3, Max: 50}
)

type ValidationError struct {
	Field  string
	Min    int
	Max    int
	Length int
}

func (e *ValidationError) Error() string {
	if e.Length < e.Min {
		return fmt.Sprintf("%s: You must enter at least %d characters", e.Field, e.Min)
	}
	return fmt.Sprintf("%s: You cannot enter more than %d characters", e.Field, e.Max)
}

// Validate rejects empty values too.
func (r LengthRule) Validate(s string) error {
	n := utf8.RuneCountInString(s)
	if n < r.Min || n > r.Max {
		return &ValidationError{Field: r.Field, Min: r.Min, Max: r.Max, Length: n}
	}
	return nil
}
