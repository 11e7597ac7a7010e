package realtime

import "errors"

var (
	ErrNotConnected     = errors.New("realtime transport not connected")
	ErrSubscribeFailed  = errors.New("realtime channel subscribe failed")
	ErrSubscribeTimeout = errors.New("realtime channel subscribe timed out")
	ErrDecode           = errors.New("realtime record decode failed")
	ErrEmptyRecord      = errors.New("realtime event has no record")
	ErrEventPanic       = errors.New("realtime event processing panicked")
)
