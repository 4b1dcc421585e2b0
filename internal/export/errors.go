package export

import "codeberg.org/mutker/benchctl/internal/errors"

const (
	ErrEmptyLog        = errors.ErrEmptyLog
	ErrSaveFailed      = errors.ErrSaveFailed
	ErrInvalidFileName = errors.ErrorCode("export_invalid_file_name")
)
