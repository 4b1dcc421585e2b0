package telemetry

import "codeberg.org/mutker/benchctl/internal/errors"

const defaultWindowSize = 10

type Config struct {
	// WindowSize is the number of samples kept for the chart.
	WindowSize int
}

func DefaultConfig() Config {
	return Config{
		WindowSize: defaultWindowSize,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.WindowSize <= 0 {
		return errFactory.WithData(ErrInvalidWindowSize, c.WindowSize)
	}
	return nil
}
