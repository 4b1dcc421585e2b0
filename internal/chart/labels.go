package chart

import (
	"strconv"

	"codeberg.org/mutker/benchctl/internal/telemetry"
)

// Labeler derives the category label of one window sample.
type Labeler interface {
	Label(s telemetry.Sample) string
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc func(s telemetry.Sample) string

func (f LabelerFunc) Label(s telemetry.Sample) string {
	return f(s)
}

var (
	// ByTime labels samples with their measurement timestamp.
	ByTime Labeler = LabelerFunc(func(s telemetry.Sample) string {
		return strconv.FormatFloat(s.Time, 'f', -1, 64)
	})

	// ByIndex labels samples with their running index in the run.
	ByIndex Labeler = LabelerFunc(func(s telemetry.Sample) string {
		return strconv.Itoa(s.Index)
	})

	// ByFrameSize labels samples with the measurement count of their frame.
	ByFrameSize Labeler = LabelerFunc(func(s telemetry.Sample) string {
		return strconv.Itoa(s.FrameSize)
	})

	// BySequence labels samples with their frame's sequence number,
	// falling back to the running index for frames without one.
	BySequence Labeler = LabelerFunc(func(s telemetry.Sample) string {
		if s.Sequence == nil {
			return strconv.Itoa(s.Index)
		}
		return strconv.FormatInt(*s.Sequence, 10)
	})
)

// LabelerFor returns the labeler registered under mode, or ByTime.
func LabelerFor(mode string) Labeler {
	switch mode {
	case "index":
		return ByIndex
	case "frame_size":
		return ByFrameSize
	case "sequence":
		return BySequence
	default:
		return ByTime
	}
}
