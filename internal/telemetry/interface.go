package telemetry

import "codeberg.org/mutker/benchctl/internal/model"

// WindowObserver is notified after every mutation of the sliding window.
type WindowObserver interface {
	WindowChanged(window []Sample)
}

// WindowObserverFunc adapts a function to WindowObserver.
type WindowObserverFunc func(window []Sample)

func (f WindowObserverFunc) WindowChanged(window []Sample) {
	f(window)
}

// Sample is a measurement in the sliding window together with the frame
// context chart labels can be derived from.
type Sample struct {
	model.Measurement
	// Index is the running sample number since the run started.
	Index int
	// Sequence is the originating frame's sequence number, if it had one.
	Sequence *int64
	// FrameSize is the number of measurements in the originating frame.
	FrameSize int
}

// Electrical holds the latest voltage and current reported by the
// controller. Nil means never reported.
type Electrical struct {
	Voltage *float64
	Current *float64
}

// Power returns voltage times current when both are known.
func (e Electrical) Power() (float64, bool) {
	if e.Voltage == nil || e.Current == nil {
		return 0, false
	}
	return *e.Voltage * *e.Current, true
}
