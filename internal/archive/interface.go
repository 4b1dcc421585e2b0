package archive

import (
	"context"
	"time"

	"codeberg.org/mutker/benchctl/internal/model"
)

// Recorder keeps the history of finished benchmark sessions.
type Recorder interface {
	// Record stores a finished session and returns its id.
	Record(ctx context.Context, session *Session) (string, error)
	Sessions(ctx context.Context) ([]Summary, error)
	Measurements(ctx context.Context, id string) ([]model.Measurement, error)
	Close() error
	Enabled() bool
}

// Session is a finished run together with everything it recorded.
type Session struct {
	// ID is assigned by Record when empty.
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Command      model.StartCommand
	FileName     string
	Measurements []model.Measurement
}

// Summary describes an archived session without its measurements.
type Summary struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Command      model.StartCommand
	FileName     string
	Measurements int
}
