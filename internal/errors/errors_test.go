package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/benchctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrNotConnected)
	assert.Equal(t, "Not connected to controller", err.Error())

	err = errFactory.Wrap(errors.ErrTransport, stderrors.New("connection refused"))
	assert.Equal(t, "Connection to controller failed: connection refused", err.Error())

	err = errFactory.WithData(errors.ErrParse, "garbage")
	assert.Equal(t, "Unrecognized message from controller: garbage", err.Error())

	err = errFactory.WithMessage(errors.ErrEmptyLog, "nothing to export")
	assert.Equal(t, "nothing to export", err.Error())
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrNotConnected)
	outer := errFactory.Wrap(errors.ErrTransport, fmt.Errorf("send: %w", inner))

	assert.True(t, errors.HasCode(outer, errors.ErrTransport))
	assert.True(t, errors.HasCode(outer, errors.ErrNotConnected))
	assert.False(t, errors.HasCode(outer, errors.ErrParse))
	assert.False(t, errors.HasCode(nil, errors.ErrParse))
	assert.False(t, errors.HasCode(stderrors.New("plain"), errors.ErrParse))
}

func TestCodeOf(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, errors.ErrEmptyLog, errors.CodeOf(fmt.Errorf("export: %w", errFactory.New(errors.ErrEmptyLog))))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}

func TestUnknownCodeMessage(t *testing.T) {
	assert.Equal(t, "custom_code", errors.GetErrorMessage(errors.ErrorCode("custom_code")))
}
