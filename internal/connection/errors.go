package connection

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	ErrTransport     = errors.ErrTransport
	ErrParse         = errors.ErrParse
	ErrNotConnected  = errors.ErrNotConnected
	ErrAlreadyOpened = errors.ErrorCode("connection_already_opened")
	ErrEncodeCommand = errors.ErrorCode("connection_encode_command_failed")
	ErrCloseFailed   = errors.ErrShutdownFailed
)
