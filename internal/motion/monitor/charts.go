package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/motionwatch/internal/httputil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/samber/lo"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// minuteBuckets counts log entries per minute over the window ending at end.
// Buckets are oldest first.
func minuteBuckets(entries []time.Time, end time.Time, minutes int) ([]time.Time, []int) {
	end = end.Truncate(time.Minute)
	start := end.Add(-time.Duration(minutes-1) * time.Minute)
	counts := lo.CountValuesBy(entries, func(ts time.Time) time.Time {
		return ts.Truncate(time.Minute)
	})
	keys := make([]time.Time, minutes)
	values := make([]int, minutes)
	for i := range keys {
		keys[i] = start.Add(time.Duration(i) * time.Minute)
		values[i] = counts[keys[i]]
	}
	return keys, values
}

// handleEventsChart renders a bar chart of logged motion per minute.
// Query params:
//   - minutes (optional; default 60, max 1440)
func (ws *WebServer) handleEventsChart(w http.ResponseWriter, r *http.Request) {
	minutes := 60
	if v, err := strconv.Atoi(r.URL.Query().Get("minutes")); err == nil && v > 0 && v <= 1440 {
		minutes = v
	}

	keys, counts := minuteBuckets(ws.detector.MotionLog().Entries(), time.Now(), minutes)
	x := lo.Map(keys, func(ts time.Time, _ int) string {
		return ts.In(ws.location).Format("15:04")
	})
	y := lo.Map(counts, func(n int, _ int) opts.BarData {
		return opts.BarData{Value: n}
	})

	status := ws.detector.Status()
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Motion Events", Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Motion Detected per Minute", Subtitle: fmt.Sprintf("session=%s total=%d", status.SessionID, status.Events)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Entries"}),
	)
	bar.SetXAxis(x).
		AddSeries("motion", y,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
