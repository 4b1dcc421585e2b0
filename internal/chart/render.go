package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderOptions configures the HTML page produced by Render.
type RenderOptions struct {
	Title      string
	Subtitle   string
	AssetsHost string
}

// Render writes s as a go-echarts line chart page. Axes are fixed; the
// chart never autoscales.
func Render(w io.Writer, s Series, valueAxis, labelAxis Axis, ro RenderOptions) error {
	title := ro.Title
	if title == "" {
		title = "Force"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  title,
			Width:      "900px",
			Height:     "500px",
			AssetsHost: ro.AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: ro.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Sample",
			Min:  labelAxis.Min,
			Max:  labelAxis.Max,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: fmt.Sprintf("Force (%s)", valueAxis.Unit),
			Min:  valueAxis.Min,
			Max:  valueAxis.Max,
		}),
	)

	data := make([]opts.LineData, len(s.Values))
	for i, v := range s.Values {
		data[i] = opts.LineData{Value: v}
	}

	line.SetXAxis(s.Labels).AddSeries("force", data)

	return line.Render(w)
}
