package console

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	ErrUnknownCommand = errors.ErrorCode("console_unknown_command")
	ErrUsage          = errors.ErrInvalidArgument
)
