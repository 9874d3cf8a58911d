// Package service implements the confession board and the one-time secret
// message flows on top of the document store and the cache.
package service

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id format")
	ErrEmptyMessage      = errors.New("message is required")
	ErrMessageTooLong    = errors.New("message is too long")
	ErrPasswordTooLong   = errors.New("password is too long")
	ErrPasswordRequired  = errors.New("password required")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrNotFound          = errors.New("not found")
	ErrMisconfigured     = errors.New("server configuration error")
	// ErrUnavailable wraps document store and cache failures.
	ErrUnavailable = errors.New("backend unavailable")
)
