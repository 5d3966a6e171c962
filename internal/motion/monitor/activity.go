package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"sync"

	"github.com/banshee-data/motionwatch/internal/httputil"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ActivitySample is one processed cycle as seen by the plotter.
type ActivitySample struct {
	FrameSeq           uint64
	ForegroundFraction float64
	Regions            int
	Motion             bool
}

// ActivityPlotter keeps the most recent processed cycles in a ring and
// renders them as a PNG line plot. It implements pipeline.CycleObserver.
type ActivityPlotter struct {
	mu      sync.Mutex
	samples []ActivitySample
	next    int
	full    bool
}

// NewActivityPlotter keeps up to capacity samples (default 600).
func NewActivityPlotter(capacity int) *ActivityPlotter {
	if capacity <= 0 {
		capacity = 600
	}
	return &ActivityPlotter{samples: make([]ActivitySample, capacity)}
}

var _ pipeline.CycleObserver = (*ActivityPlotter)(nil)

// ObserveCycle records processed cycles; idle and unavailable ones are ignored.
func (p *ActivityPlotter) ObserveCycle(res pipeline.CycleResult) {
	if res.Outcome != pipeline.Processed {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples[p.next] = ActivitySample{
		FrameSeq:           res.FrameSeq,
		ForegroundFraction: res.ForegroundFraction,
		Regions:            len(res.Regions),
		Motion:             res.Motion,
	}
	p.next = (p.next + 1) % len(p.samples)
	if p.next == 0 {
		p.full = true
	}
}

// Samples returns the recorded samples, oldest first.
func (p *ActivityPlotter) Samples() []ActivitySample {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.full {
		return append([]ActivitySample(nil), p.samples[:p.next]...)
	}
	out := make([]ActivitySample, 0, len(p.samples))
	out = append(out, p.samples[p.next:]...)
	return append(out, p.samples[:p.next]...)
}

// WritePNG renders foreground fraction and motion flags against frame
// sequence.
func (p *ActivityPlotter) WritePNG(w io.Writer) error {
	samples := p.Samples()
	if len(samples) == 0 {
		return fmt.Errorf("no samples recorded")
	}

	pl := plot.New()
	pl.Title.Text = "Foreground Activity"
	pl.X.Label.Text = "Frame"
	pl.Y.Label.Text = "Foreground fraction"
	pl.Y.Min = 0
	pl.Y.Max = 1

	fg := make(plotter.XYs, 0, len(samples))
	var motion plotter.XYs
	for _, s := range samples {
		fg = append(fg, plotter.XY{X: float64(s.FrameSeq), Y: s.ForegroundFraction})
		if s.Motion {
			motion = append(motion, plotter.XY{X: float64(s.FrameSeq), Y: s.ForegroundFraction})
		}
	}

	line, err := plotter.NewLine(fg)
	if err != nil {
		return fmt.Errorf("foreground line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add("foreground", line)

	if len(motion) > 0 {
		pts, err := plotter.NewScatter(motion)
		if err != nil {
			return fmt.Errorf("motion points: %w", err)
		}
		pts.GlyphStyle.Color = color.RGBA{R: 255, G: 82, B: 82, A: 255}
		pts.GlyphStyle.Radius = vg.Points(2)
		pl.Add(pts)
		pl.Legend.Add("motion", pts)
	}

	wt, err := pl.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func (ws *WebServer) handleActivityPlot(w http.ResponseWriter, r *http.Request) {
	if ws.activity == nil {
		httputil.NotFound(w, "activity plotting disabled")
		return
	}
	if len(ws.activity.Samples()) == 0 {
		httputil.NotFound(w, "no processed cycles yet")
		return
	}
	var buf bytes.Buffer
	if err := ws.activity.WritePNG(&buf); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
