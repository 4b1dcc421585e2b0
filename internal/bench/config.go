package bench

import (
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/telemetry"
)

const (
	defaultEventBuffer  = 64
	defaultReportBuffer = 32
)

type Config struct {
	WindowSize int
	LabelMode  string
	// EventBuffer bounds the inbound queue between the read pump and the
	// dispatcher. A full queue blocks the read pump.
	EventBuffer int
	// ReportBuffer bounds the operator report channel. Reports that do
	// not fit are dropped.
	ReportBuffer int
}

func DefaultConfig() Config {
	return Config{
		WindowSize:   telemetry.DefaultConfig().WindowSize,
		LabelMode:    "time",
		EventBuffer:  defaultEventBuffer,
		ReportBuffer: defaultReportBuffer,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.WindowSize <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "window size must be positive")
	}
	if c.EventBuffer <= 0 || c.ReportBuffer <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "buffers must be positive")
	}

	return nil
}
