package bench

import (
	"time"

	"codeberg.org/mutker/benchctl/internal/errors"
)

// Report is a recoverable failure surfaced to the operator.
type Report struct {
	Time    time.Time
	Code    errors.ErrorCode
	Message string
	Err     error
}

func (r Report) String() string {
	if r.Err == nil {
		return r.Message
	}
	return r.Message + ": " + r.Err.Error()
}

// report logs err and offers it to the report channel without blocking.
func (s *Session) report(err error, msg string) {
	code := errors.CodeOf(err)

	var coded errors.Error
	if errors.As(err, &coded) {
		s.log.ErrorWithCode(coded).Msg(msg)
	} else {
		s.log.Error().Err(err).Msg(msg)
	}

	r := Report{
		Time:    s.clock(),
		Code:    code,
		Message: msg,
		Err:     err,
	}

	select {
	case s.reports <- r:
	default:
		s.log.Debug().Str("error_code", string(code)).Msg("Report dropped, channel full")
	}
}
