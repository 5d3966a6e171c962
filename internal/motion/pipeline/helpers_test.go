package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/motionwatch/internal/monitoring"
	"github.com/banshee-data/motionwatch/internal/motion/l1capture"
	"github.com/banshee-data/motionwatch/internal/motion/l2frames"
	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/motion/l4perception"
	"github.com/banshee-data/motionwatch/internal/motion/l5events"
	"github.com/banshee-data/motionwatch/internal/testutil"
	"github.com/banshee-data/motionwatch/internal/timeutil"
)

var (
	testSize = l2frames.Size{Width: 160, Height: 120}
	t0       = time.Date(2024, 6, 1, 21, 15, 0, 0, time.UTC)
	// 40x50 = 2000 px², well above the 1000 px² minimum.
	parked = testutil.Rect(60, 35, 40, 50)
)

const frameStep = 40 * time.Millisecond

func quietLogs(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = prev })
}

// squareSource renders a static scene with the parked square from frame 31.
func squareSource(clock timeutil.Clock, from, until uint64) *l1capture.SyntheticSource {
	sq := l1capture.Square{Rect: parked, Color: testutil.Bright, From: from, Until: until}
	return &l1capture.SyntheticSource{
		Scene: l1capture.StaticScene(testSize, testutil.Background, sq),
		Clock: clock,
	}
}

func newTestSession(t *testing.T, src l1capture.Source, clock timeutil.Clock, tweak func(*SessionConfig)) *Session {
	t.Helper()
	model, err := l3grid.NewModel(l3grid.DefaultBackgroundConfig().WithSize(testSize))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	ex, err := l4perception.NewExtractor(l4perception.ExtractParams{Cutoff: 244, MinArea: 1000, Connectivity: 8})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	deb, err := l5events.NewDebouncer(l5events.Params{Cooldown: 5 * time.Second, Policy: l5events.DedupSecond})
	if err != nil {
		t.Fatalf("NewDebouncer: %v", err)
	}
	cfg := SessionConfig{
		ID:            "test-session-0001",
		Source:        src,
		Model:         model,
		Extractor:     ex,
		Debouncer:     deb,
		Clock:         clock,
		Recording:     true,
		AlertsEnabled: true,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

// warm runs n cycles, advancing the clock by frameStep after each.
func warm(t *testing.T, s *Session, clock *timeutil.MockClock, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		res, err := s.RunCycle(context.Background())
		if err != nil {
			t.Fatalf("warmup cycle %d: %v", i+1, err)
		}
		if res.Motion {
			t.Fatalf("warmup cycle %d reported motion", i+1)
		}
		clock.Advance(frameStep)
	}
}

type countingQueue struct {
	mu sync.Mutex
	n  int
}

func (q *countingQueue) Dispatch() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.n++
	return true
}

func (q *countingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

type recordingLog struct {
	mu      sync.Mutex
	events  []MotionEvent
	snaps   []*l2frames.Frame
	ends    []time.Time
	logErr  error
	snapErr error
}

func (r *recordingLog) LogEvent(_ context.Context, ev MotionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logErr != nil {
		return r.logErr
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingLog) SaveSnapshot(_ context.Context, _ MotionEvent, f *l2frames.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapErr != nil {
		return r.snapErr
	}
	r.snaps = append(r.snaps, f)
	return nil
}

func (r *recordingLog) EndEvent(_ context.Context, _ string, ended time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, ended)
	return nil
}

// gatedSource wraps a source and can be told to report a fixed error or to
// block inside NextFrame until released.
type gatedSource struct {
	inner l1capture.Source

	mu      sync.Mutex
	fail    error
	calls   int
	closed  bool
	entered chan struct{}
	release chan struct{}
	reading bool
	// closedWhileReading records a Close that overlapped a NextFrame call.
	closedWhileReading bool
}

func (g *gatedSource) setFail(err error) {
	g.mu.Lock()
	g.fail = err
	g.mu.Unlock()
}

func (g *gatedSource) NextFrame(ctx context.Context) (*l2frames.Frame, error) {
	g.mu.Lock()
	g.calls++
	g.reading = true
	fail, entered, release := g.fail, g.entered, g.release
	g.entered = nil
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.reading = false
		g.mu.Unlock()
	}()

	if entered != nil {
		close(entered)
		<-release
	}
	if fail != nil {
		return nil, fail
	}
	return g.inner.NextFrame(ctx)
}

func (g *gatedSource) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reading {
		g.closedWhileReading = true
	}
	g.closed = true
	return g.inner.Close()
}

func (g *gatedSource) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
