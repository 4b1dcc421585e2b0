package dashboard

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	ErrListenFailed   = errors.ErrorCode("dashboard_listen_failed")
	ErrShutdownFailed = errors.ErrShutdownFailed
)
