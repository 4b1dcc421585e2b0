package chart_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/benchctl/internal/chart"
	"codeberg.org/mutker/benchctl/internal/model"
	"codeberg.org/mutker/benchctl/internal/telemetry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingest(t *testing.T, size int, adapter *chart.Adapter, frames ...model.Frame) {
	t.Helper()
	b, err := telemetry.NewBuffer(telemetry.Config{WindowSize: size}, adapter)
	require.NoError(t, err)
	for _, f := range frames {
		b.Ingest(f)
	}
}

func measurements(points ...float64) model.Frame {
	f := model.Frame{}
	for i := 0; i+1 < len(points); i += 2 {
		f.Measurements = append(f.Measurements, model.Measurement{Time: points[i], Force: points[i+1]})
	}
	return f
}

func TestSlidingWindowSeries(t *testing.T) {
	adapter := chart.NewAdapter(2, chart.ByTime)
	ingest(t, 2, adapter, measurements(1, 10, 2, 20), measurements(3, 30))

	want := chart.Series{Labels: []string{"2", "3"}, Values: []float64{20, 30}}
	if diff := cmp.Diff(want, adapter.Series()); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestLabelers(t *testing.T) {
	seq := int64(9)
	withSeq := measurements(0.5, 1, 1.5, 2)
	withSeq.Sequence = &seq

	tests := []struct {
		name    string
		labeler chart.Labeler
		want    []string
	}{
		{name: "time", labeler: chart.ByTime, want: []string{"0.25", "0.5", "1.5"}},
		{name: "index", labeler: chart.ByIndex, want: []string{"0", "1", "2"}},
		{name: "frame size", labeler: chart.ByFrameSize, want: []string{"1", "2", "2"}},
		{name: "sequence", labeler: chart.BySequence, want: []string{"0", "9", "9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := chart.NewAdapter(10, tt.labeler)
			ingest(t, 10, adapter, measurements(0.25, 5), withSeq)

			if diff := cmp.Diff(tt.want, adapter.Series().Labels); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabelerFor(t *testing.T) {
	s := telemetry.Sample{Measurement: model.Measurement{Time: 4}, Index: 2, FrameSize: 3}

	assert.Equal(t, "4", chart.LabelerFor("time").Label(s))
	assert.Equal(t, "2", chart.LabelerFor("index").Label(s))
	assert.Equal(t, "3", chart.LabelerFor("frame_size").Label(s))
	assert.Equal(t, "2", chart.LabelerFor("sequence").Label(s))
	assert.Equal(t, "4", chart.LabelerFor("").Label(s))
}

func TestLabelsAndValuesStayParallel(t *testing.T) {
	adapter := chart.NewAdapter(3, chart.ByIndex)

	redraws := 0
	adapter.Subscribe(func(s chart.Series) {
		redraws++
		assert.Equal(t, len(s.Labels), len(s.Values))
		assert.LessOrEqual(t, s.Len(), 3)
	})

	ingest(t, 3, adapter,
		measurements(1, 1, 2, 2, 3, 3, 4, 4),
		model.Frame{},
		measurements(5, 5),
	)

	assert.Equal(t, 2, redraws, "one redraw per non-empty frame")
	assert.Equal(t, []float64{3, 4, 5}, adapter.Series().Values)
}

func TestSeriesIsACopy(t *testing.T) {
	adapter := chart.NewAdapter(3, nil)
	ingest(t, 3, adapter, measurements(1, 10))

	s := adapter.Series()
	s.Values[0] = 99

	assert.Equal(t, []float64{10}, adapter.Series().Values)
}

func TestFixedAxes(t *testing.T) {
	adapter := chart.NewAdapter(10, chart.ByTime)

	assert.Equal(t, chart.Axis{Min: 0, Max: 100, Unit: "N"}, adapter.ValueAxis())
	assert.Equal(t, chart.Axis{Min: 0, Max: 9}, adapter.LabelAxis())
}

func TestRender(t *testing.T) {
	adapter := chart.NewAdapter(2, chart.ByTime)
	ingest(t, 2, adapter, measurements(1, 10, 2, 20))

	var buf bytes.Buffer
	err := chart.Render(&buf, adapter.Series(), adapter.ValueAxis(), adapter.LabelAxis(), chart.RenderOptions{Title: "Rig force"})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Rig force")
	assert.Contains(t, html, "Force (N)")
	assert.Contains(t, html, "force")
}
