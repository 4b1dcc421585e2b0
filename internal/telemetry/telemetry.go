// Package telemetry folds inbound frames into the two views of a run:
// a bounded sliding window for the chart and an unbounded session log
// for export.
package telemetry

import (
	"codeberg.org/mutker/benchctl/internal/errors"
	"codeberg.org/mutker/benchctl/internal/model"
)

// Buffer is owned by a single goroutine; it is not safe for concurrent use.
type Buffer struct {
	size       int
	window     []Sample
	log        []model.Measurement
	nextIndex  int
	electrical Electrical
	observers  []WindowObserver
}

// NewBuffer returns an empty buffer.
func NewBuffer(cfg Config, observers ...WindowObserver) (*Buffer, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &Buffer{
		size:      cfg.WindowSize,
		window:    make([]Sample, 0, cfg.WindowSize),
		observers: observers,
	}, nil
}

// Observe registers an additional window observer.
func (b *Buffer) Observe(o WindowObserver) {
	b.observers = append(b.observers, o)
}

// Ingest appends the frame's measurements to the session log and the
// window, evicting the oldest samples so the window never exceeds its size.
// A frame without measurements only updates the electrical readings.
func (b *Buffer) Ingest(frame model.Frame) {
	if frame.Voltage != nil {
		b.electrical.Voltage = frame.Voltage
	}
	if frame.Current != nil {
		b.electrical.Current = frame.Current
	}

	if frame.Empty() {
		return
	}

	b.log = append(b.log, frame.Measurements...)

	for _, m := range frame.Measurements {
		b.window = append(b.window, Sample{
			Measurement: m,
			Index:       b.nextIndex,
			Sequence:    frame.Sequence,
			FrameSize:   len(frame.Measurements),
		})
		b.nextIndex++
	}

	if excess := len(b.window) - b.size; excess > 0 {
		// Shift in place so the backing array does not grow without bound.
		n := copy(b.window, b.window[excess:])
		clear(b.window[n:])
		b.window = b.window[:n]
	}

	b.notify()
}

// IngestCompletion finalizes the run: it returns the session log and
// leaves the buffer with an empty one. The window is kept so the chart
// still shows the tail of the finished run.
func (b *Buffer) IngestCompletion() []model.Measurement {
	log := b.log
	b.log = nil
	return log
}

// Reset clears both views for a new run.
func (b *Buffer) Reset() {
	b.log = nil
	b.window = b.window[:0]
	b.nextIndex = 0
	b.notify()
}

// Window returns a copy of the sliding window, oldest first.
func (b *Buffer) Window() []Sample {
	out := make([]Sample, len(b.window))
	copy(out, b.window)
	return out
}

// SessionLog returns a copy of the session log.
func (b *Buffer) SessionLog() []model.Measurement {
	out := make([]model.Measurement, len(b.log))
	copy(out, b.log)
	return out
}

// LogLen returns the number of measurements in the session log.
func (b *Buffer) LogLen() int {
	return len(b.log)
}

// WindowLen returns the number of samples in the sliding window.
func (b *Buffer) WindowLen() int {
	return len(b.window)
}

// Size returns the window capacity.
func (b *Buffer) Size() int {
	return b.size
}

// Electrical returns the latest electrical readings.
func (b *Buffer) Electrical() Electrical {
	return b.electrical
}

func (b *Buffer) notify() {
	if len(b.observers) == 0 {
		return
	}
	window := b.Window()
	for _, o := range b.observers {
		o.WindowChanged(window)
	}
}
