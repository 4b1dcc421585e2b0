package control

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	ErrAlreadyRunning = errors.ErrAlreadyRunning
	ErrNotConnected   = errors.ErrNotConnected
	ErrInvalidSetting = errors.ErrorCode("control_invalid_setting")
)
