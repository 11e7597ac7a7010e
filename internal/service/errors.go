package service

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRemoteUnavailable = errors.New("remote source unavailable")
	ErrLiveUnavailable   = errors.New("live updates unavailable")
)
