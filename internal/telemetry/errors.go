package telemetry

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig     = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidWindowSize = errors.ErrorCode("telemetry_invalid_window_size")
)
