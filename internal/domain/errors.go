package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("connection has no session")
	ErrAlreadyBound    = errors.New("connection already bound to another user")
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLong  = errors.New("message too long")
	ErrPersistence     = errors.New("message persistence failed")
)
