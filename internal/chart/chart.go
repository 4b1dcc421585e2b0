// Package chart projects the telemetry window into the label/value series
// consumed by a rendering surface.
package chart

import (
	"codeberg.org/mutker/benchctl/internal/state"
	"codeberg.org/mutker/benchctl/internal/telemetry"
)

const (
	ValueMin  = 0
	ValueMax  = 100
	ValueUnit = "N"
)

// Series holds parallel label and value slices of equal length.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Values)
}

func (s Series) clone() Series {
	return Series{
		Labels: append([]string{}, s.Labels...),
		Values: append([]float64{}, s.Values...),
	}
}

// Axis is a fixed axis domain.
type Axis struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit,omitempty"`
}

// Adapter turns window snapshots into series and publishes them. Every
// publication is a redraw signal to subscribers.
type Adapter struct {
	labeler Labeler
	size    int
	series  *state.Cell[Series]
}

// NewAdapter returns an adapter for a window of the given size.
func NewAdapter(size int, labeler Labeler) *Adapter {
	if labeler == nil {
		labeler = ByTime
	}

	return &Adapter{
		labeler: labeler,
		size:    size,
		series:  state.NewCell(Series{Labels: []string{}, Values: []float64{}}),
	}
}

// WindowChanged implements telemetry.WindowObserver.
func (a *Adapter) WindowChanged(window []telemetry.Sample) {
	a.Redraw(window)
}

// Redraw projects window and publishes the result.
func (a *Adapter) Redraw(window []telemetry.Sample) {
	a.series.Set(Project(window, a.labeler))
}

// Project builds a series from window using labeler.
func Project(window []telemetry.Sample, labeler Labeler) Series {
	s := Series{
		Labels: make([]string, len(window)),
		Values: make([]float64, len(window)),
	}
	for i, sample := range window {
		s.Labels[i] = labeler.Label(sample)
		s.Values[i] = sample.Force
	}
	return s
}

// Series returns a copy of the latest series.
func (a *Adapter) Series() Series {
	return a.series.Get().clone()
}

// Subscribe registers fn to be called on every redraw.
func (a *Adapter) Subscribe(fn func(Series)) (unsubscribe func()) {
	return a.series.Subscribe(func(s Series) {
		fn(s.clone())
	})
}

// ValueAxis returns the fixed force axis.
func (a *Adapter) ValueAxis() Axis {
	return Axis{Min: ValueMin, Max: ValueMax, Unit: ValueUnit}
}

// LabelAxis returns the fixed category axis, one slot per window sample.
func (a *Adapter) LabelAxis() Axis {
	return Axis{Min: 0, Max: float64(a.size - 1)}
}
