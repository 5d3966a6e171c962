package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/db"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/motion/l4perception"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"github.com/banshee-data/motionwatch/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 21, 15, 0, 0, time.UTC)

type fakeDetector struct {
	mu        sync.Mutex
	recording bool
	alerts    bool
	log       pipeline.MotionLog
}

func (d *fakeDetector) Status() pipeline.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return pipeline.Status{
		SessionID:     "test-session",
		Recording:     d.recording,
		AlertsEnabled: d.alerts,
		Events:        d.log.Len(),
	}
}

func (d *fakeDetector) SetRecording(on bool) {
	d.mu.Lock()
	d.recording = on
	d.mu.Unlock()
}

func (d *fakeDetector) SetAlertsEnabled(on bool) {
	d.mu.Lock()
	d.alerts = on
	d.mu.Unlock()
}

func (d *fakeDetector) MotionLog() *pipeline.MotionLog { return &d.log }

type fakeEvents struct {
	events []db.MotionEvent
	err    error
}

func (f *fakeEvents) ListEvents(limit int) ([]db.MotionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeEvents) WriteCSV(w io.Writer, loc *time.Location) error {
	if f.err != nil {
		return f.err
	}
	_, err := fmt.Fprintf(w, "Timestamp,Image_Path\n%s,snapshots/x.jpg\n", t0.In(loc).Format(db.CSVTimeLayout))
	return err
}

type fakeFrames struct {
	data []byte
}

func (f *fakeFrames) Latest() ([]byte, uint64, time.Time, bool) {
	if f.data == nil {
		return nil, 0, time.Time{}, false
	}
	return f.data, 7, t0, true
}

type fakePersister struct {
	reasons []string
	err     error
}

func (f *fakePersister) Flush(reason string) (int64, error) {
	f.reasons = append(f.reasons, reason)
	if f.err != nil {
		return 0, f.err
	}
	return 42, nil
}

func newTestServer(t *testing.T, tweak func(*WebServerConfig)) (*WebServer, *fakeDetector) {
	t.Helper()
	det := &fakeDetector{alerts: true}
	cfg := WebServerConfig{
		Address:  "127.0.0.1:0",
		Detector: det,
		Location: time.UTC,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	ws, err := NewWebServer(cfg)
	testutil.AssertNoError(t, err)
	return ws, det
}

func do(ws *WebServer, method, target string, body string) *httptest.ResponseRecorder {
	req := testutil.NewTestRequest(method, target)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewWebServer_RequiresDetector(t *testing.T) {
	_, err := NewWebServer(WebServerConfig{Address: ":0"})
	testutil.AssertError(t, err)
}

func TestNewWebServer_AdminHookError(t *testing.T) {
	_, err := NewWebServer(WebServerConfig{
		Detector: &fakeDetector{},
		Admin:    func(*http.ServeMux) error { return errors.New("boom") },
	})
	assert.ErrorContains(t, err, "boom")
}

func TestHealth(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := do(ws, http.MethodGet, "/health", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestStatusPage_ShowsMotionLog(t *testing.T) {
	ws, det := newTestServer(t, nil)
	det.log.Append(t0)
	det.log.Append(t0.Add(time.Second))

	rec := do(ws, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "[2024-06-01 21:15:00] Motion Detected")
	assert.Contains(t, body, "[2024-06-01 21:15:01] Motion Detected")
	assert.Contains(t, body, "test-session")

	assert.Equal(t, http.StatusNotFound, do(ws, http.MethodGet, "/nope", "").Code)
}

func TestStatusPage_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ws, det := newTestServer(t, func(c *WebServerConfig) { c.Location = loc })
	det.log.Append(t0)

	assert.Contains(t, do(ws, http.MethodGet, "/", "").Body.String(), "[2024-06-01 23:15:00] Motion Detected")
}

func TestStatusJSON(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := do(ws, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "test-session", out["session_id"])
	assert.Equal(t, true, out["alerts_enabled"])

	assert.Equal(t, http.StatusMethodNotAllowed, do(ws, http.MethodPost, "/api/status", "").Code)
}

func TestRecordingToggle(t *testing.T) {
	ws, det := newTestServer(t, nil)

	rec := do(ws, http.MethodGet, "/api/recording/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	assert.False(t, det.Status().Recording)

	testutil.AssertStatusCode(t, do(ws, http.MethodPost, "/api/recording/start", "").Code, http.StatusOK)
	assert.True(t, det.Status().Recording)

	assert.Equal(t, http.StatusOK, do(ws, http.MethodPost, "/api/recording/stop", "").Code)
	assert.False(t, det.Status().Recording)
}

func TestAlertsToggle(t *testing.T) {
	ws, det := newTestServer(t, nil)

	rec := do(ws, http.MethodPost, "/api/alerts", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["enabled"])
	assert.False(t, det.Status().AlertsEnabled)

	rec = do(ws, http.MethodGet, "/api/alerts", "")
	assert.Equal(t, false, decode(t, rec)["enabled"])

	assert.Equal(t, http.StatusBadRequest, do(ws, http.MethodPost, "/api/alerts", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(ws, http.MethodPost, "/api/alerts", `{"enabled":true,"x":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(ws, http.MethodPost, "/api/alerts", `not json`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(ws, http.MethodDelete, "/api/alerts", "").Code)
	assert.False(t, det.Status().AlertsEnabled)
}

func TestEvents(t *testing.T) {
	t.Run("memory only", func(t *testing.T) {
		ws, det := newTestServer(t, nil)
		for i := 0; i < 5; i++ {
			det.log.Append(t0.Add(time.Duration(i) * time.Second))
		}
		rec := do(ws, http.MethodGet, "/api/events?limit=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, []interface{}{
			"[2024-06-01 21:15:03] Motion Detected",
			"[2024-06-01 21:15:04] Motion Detected",
		}, out["entries"])
		assert.NotContains(t, out, "events")
	})

	t.Run("with store", func(t *testing.T) {
		store := &fakeEvents{events: []db.MotionEvent{
			{EventID: 2, SessionID: "s", Timestamp: t0.Add(time.Second), RegionCount: 1, LargestArea: 2000},
			{EventID: 1, SessionID: "s", Timestamp: t0, RegionCount: 1, LargestArea: 1500},
		}}
		ws, _ := newTestServer(t, func(c *WebServerConfig) { c.Events = store })
		rec := do(ws, http.MethodGet, "/api/events", "")
		require.Equal(t, http.StatusOK, rec.Code)
		events, ok := decode(t, rec)["events"].([]interface{})
		require.True(t, ok)
		assert.Len(t, events, 2)
	})

	t.Run("store error", func(t *testing.T) {
		ws, _ := newTestServer(t, func(c *WebServerConfig) { c.Events = &fakeEvents{err: errors.New("locked")} })
		assert.Equal(t, http.StatusInternalServerError, do(ws, http.MethodGet, "/api/events", "").Code)
	})
}

func TestEventsCSV(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(ws, http.MethodGet, "/api/events.csv", "").Code)

	ws, _ = newTestServer(t, func(c *WebServerConfig) { c.Events = &fakeEvents{} })
	rec := do(ws, http.MethodGet, "/api/events.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "20240601_211500,snapshots/x.jpg")
}

func TestFrame(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(ws, http.MethodGet, "/api/frame.jpg", "").Code)

	frames := &fakeFrames{}
	ws, _ = newTestServer(t, func(c *WebServerConfig) { c.Frames = frames })
	assert.Equal(t, http.StatusNotFound, do(ws, http.MethodGet, "/api/frame.jpg", "").Code)

	frames.data = []byte{0xff, 0xd8, 0xff}
	rec := do(ws, http.MethodGet, "/api/frame.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("X-Frame-Seq"))
	assert.Equal(t, frames.data, rec.Body.Bytes())
}

func TestTuning(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(ws, http.MethodGet, "/api/tuning", "").Code)

	ws, _ = newTestServer(t, func(c *WebServerConfig) { c.Tuning = config.DefaultTuningConfig() })
	rec := do(ws, http.MethodGet, "/api/tuning", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec))
}

func TestPersistBackground(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(ws, http.MethodPost, "/api/background/persist", "").Code)

	p := &fakePersister{}
	ws, _ = newTestServer(t, func(c *WebServerConfig) { c.Background = p })
	assert.Equal(t, http.StatusMethodNotAllowed, do(ws, http.MethodGet, "/api/background/persist", "").Code)

	rec := do(ws, http.MethodPost, "/api/background/persist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), decode(t, rec)["snapshot_id"])
	assert.Equal(t, []string{pipeline.ReasonManual}, p.reasons)

	p.err = errors.New("disk full")
	assert.Equal(t, http.StatusInternalServerError, do(ws, http.MethodPost, "/api/background/persist", "").Code)
}

func TestBackgroundStats(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(ws, http.MethodGet, "/api/background", "").Code)

	model, err := l3grid.NewModel(l3grid.DefaultBackgroundConfig().WithSize(l2frames.Size{Width: 32, Height: 24}))
	require.NoError(t, err)
	ws, _ = newTestServer(t, func(c *WebServerConfig) { c.Model = model })
	rec := do(ws, http.MethodGet, "/api/background", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(0), out["frames_seen"])
	assert.Equal(t, false, out["warm"])
}

func TestMetricsRoute(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(ws, http.MethodGet, "/metrics", "").Code)

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "motionwatch_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	ws, _ = newTestServer(t, func(cfg *WebServerConfig) { cfg.Gatherer = reg })
	rec := do(ws, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "motionwatch_test_total 1")
}

func TestMinuteBuckets(t *testing.T) {
	end := t0.Add(2*time.Minute + 30*time.Second)
	entries := []time.Time{
		t0.Add(-10 * time.Minute), // outside the window
		t0.Add(5 * time.Second),
		t0.Add(6 * time.Second),
		t0.Add(2*time.Minute + 10*time.Second),
	}
	keys, counts := minuteBuckets(entries, end, 3)
	assert.Equal(t, []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Minute)}, keys)
	assert.Equal(t, []int{2, 0, 1}, counts)
}

func TestEventsChart(t *testing.T) {
	ws, det := newTestServer(t, nil)
	det.log.Append(time.Now())
	rec := do(ws, http.MethodGet, "/charts/events?minutes=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Motion Detected per Minute")
}

func TestActivityPlotter_Ring(t *testing.T) {
	p := NewActivityPlotter(3)
	p.ObserveCycle(pipeline.CycleResult{Outcome: pipeline.Idle})
	p.ObserveCycle(pipeline.CycleResult{Outcome: pipeline.Unavailable})
	assert.Empty(t, p.Samples())

	for i := 1; i <= 5; i++ {
		p.ObserveCycle(pipeline.CycleResult{
			Outcome:            pipeline.Processed,
			FrameSeq:           uint64(i),
			ForegroundFraction: 0.1 * float64(i),
			Regions:            make([]l4perception.Region, i%2),
			Motion:             i%2 == 1,
		})
	}
	samples := p.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, uint64(3), samples[0].FrameSeq)
	assert.Equal(t, uint64(5), samples[2].FrameSeq)
	assert.Equal(t, 1, samples[0].Regions)
	assert.False(t, samples[1].Motion)
}

func TestActivityPlot(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(ws, http.MethodGet, "/charts/activity.png", "").Code)

	p := NewActivityPlotter(10)
	ws, _ = newTestServer(t, func(c *WebServerConfig) { c.Activity = p })
	assert.Equal(t, http.StatusNotFound, do(ws, http.MethodGet, "/charts/activity.png", "").Code)

	for i := 1; i <= 4; i++ {
		p.ObserveCycle(pipeline.CycleResult{Outcome: pipeline.Processed, FrameSeq: uint64(i), ForegroundFraction: 0.2, Motion: i == 3})
	}
	rec := do(ws, http.MethodGet, "/charts/activity.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}
