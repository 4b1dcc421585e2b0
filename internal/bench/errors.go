package bench

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	ErrInvalidConfig  = errors.ErrInvalidConfig
	ErrSessionStopped = errors.ErrorCode("bench_session_stopped")
	ErrAlreadyStarted = errors.ErrorCode("bench_session_already_started")
	ErrTimeout        = errors.ErrTimeout
)
