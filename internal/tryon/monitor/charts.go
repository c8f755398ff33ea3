package monitor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tryon/internal/db"
)

// echartsAssetsPrefix is where rendered pages load the echarts runtime from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// gap is the echarts placeholder for a missing sample; lines break there.
const gap = "-"

// RenderTraceChart writes an HTML page with one line chart per anchor and
// one for face width. Frames without a face show up as breaks in the lines.
func RenderTraceChart(w io.Writer, sessionID string, records []db.FrameRecord) error {
	x := make([]string, len(records))
	for i, r := range records {
		x[i] = strconv.FormatUint(r.Index, 10)
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.PageTitle = "Try-on trace " + sessionID

	for _, s := range series {
		line := newTraceLine(fmt.Sprintf("Anchor %s", s.name), sessionID)
		line.SetXAxis(x).
			AddSeries("raw x", lineData(records, s.raw, axisX)).
			AddSeries("mesh x", lineData(records, s.mesh, axisX)).
			AddSeries("smoothed x", lineData(records, s.smoothed, axisX)).
			AddSeries("raw y", lineData(records, s.raw, axisY)).
			AddSeries("mesh y", lineData(records, s.mesh, axisY)).
			AddSeries("smoothed y", lineData(records, s.smoothed, axisY)).
			SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		page.AddCharts(line)
	}

	widths := make([]opts.LineData, len(records))
	for i, r := range records {
		if r.FaceDetected && r.FaceWidth > 0 {
			widths[i] = opts.LineData{Value: r.FaceWidth}
		} else {
			widths[i] = opts.LineData{Value: gap}
		}
	}
	fw := newTraceLine("Face width", sessionID)
	fw.SetXAxis(x).
		AddSeries("face width", widths).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	page.AddCharts(fw)

	return page.Render(w)
}

func newTraceLine(title, sessionID string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: sessionID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	return line
}

type axis int

const (
	axisX axis = iota
	axisY
)

func lineData(records []db.FrameRecord, get func(*db.FrameRecord) db.XY, a axis) []opts.LineData {
	out := make([]opts.LineData, len(records))
	for i := range records {
		v := get(&records[i])
		switch {
		case !v.Valid:
			out[i] = opts.LineData{Value: gap}
		case a == axisX:
			out[i] = opts.LineData{Value: v.X}
		default:
			out[i] = opts.LineData{Value: v.Y}
		}
	}
	return out
}
