package models

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEventNotFound = errors.New("event not found")
)

var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrCodeTaken         = errors.New("attendance code already in use")
	ErrEventHasAttendees = errors.New("event has recorded attendance")
	ErrAlreadyAttended   = errors.New("attendance already recorded for user and event")
)
