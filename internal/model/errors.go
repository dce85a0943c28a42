package model

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNotConnected    = errors.New("google account not connected")
	ErrMissingUserID   = errors.New("user id is required")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrMissingCode     = errors.New("authorization code is required")
	ErrUnauthenticated = errors.New("unauthenticated")
)
