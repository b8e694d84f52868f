package view

import "forum/internal/model"

// These predicates decide which controls are offered. They are not a
// security boundary: the server checks again.

func IsAuthor(connected *model.User, msg model.Message) bool {
	return connected != nil && msg.Author != nil && connected.ID == msg.Author.ID
}

func IsAdmin(connected *model.User) bool {
	return connected != nil && connected.Admin
}

func CanEditMessage(connected *model.User, msg model.Message) bool {
	return IsAuthor(connected, msg)
}

func CanDeleteMessage(connected *model.User, msg model.Message) bool {
	return IsAuthor(connected, msg) || IsAdmin(connected)
}
