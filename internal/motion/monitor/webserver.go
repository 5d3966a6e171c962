package monitor

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/motionwatch/internal/config"
	"github.com/banshee-data/motionwatch/internal/db"
	"github.com/banshee-data/motionwatch/internal/motion/l3grid"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed status.html
var statusHTML embed.FS

// Detector is the session surface the operator controls.
type Detector interface {
	Status() pipeline.Status
	SetRecording(on bool)
	SetAlertsEnabled(on bool)
	MotionLog() *pipeline.MotionLog
}

// EventStore reads the persisted motion log.
type EventStore interface {
	ListEvents(limit int) ([]db.MotionEvent, error)
	WriteCSV(w io.Writer, loc *time.Location) error
}

// LiveFrames supplies the latest annotated frame as JPEG.
type LiveFrames interface {
	Latest() (jpeg []byte, seq uint64, at time.Time, ok bool)
}

// BackgroundStats summarises the learned background model.
type BackgroundStats interface {
	Stats() l3grid.ModelStats
}

// BackgroundPersister writes the background model on demand.
type BackgroundPersister interface {
	Flush(reason string) (int64, error)
}

// WebServer handles the HTTP interface for the detector.
type WebServer struct {
	address    string
	server     *http.Server
	detector   Detector
	events     EventStore
	frames     LiveFrames
	background BackgroundPersister
	model      BackgroundStats
	tuning     *config.TuningConfig
	gatherer   prometheus.Gatherer
	activity   *ActivityPlotter
	location   *time.Location
	started    time.Time
}

// WebServerConfig contains configuration options for the web server.
// Only Address and Detector are required.
type WebServerConfig struct {
	Address    string
	Detector   Detector
	Events     EventStore
	Frames     LiveFrames
	Background BackgroundPersister
	Model      BackgroundStats
	Tuning     *config.TuningConfig
	Gatherer   prometheus.Gatherer
	Activity   *ActivityPlotter
	// Location renders operator-facing timestamps (default: local).
	Location *time.Location
	// Admin mounts extra routes such as db.DB.AttachAdminRoutes.
	Admin func(mux *http.ServeMux) error
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	if cfg.Detector == nil {
		return nil, fmt.Errorf("web server requires a detector")
	}
	ws := &WebServer{
		address:    cfg.Address,
		detector:   cfg.Detector,
		events:     cfg.Events,
		frames:     cfg.Frames,
		background: cfg.Background,
		model:      cfg.Model,
		tuning:     cfg.Tuning,
		gatherer:   cfg.Gatherer,
		activity:   cfg.Activity,
		location:   cfg.Location,
		started:    time.Now(),
	}
	if ws.location == nil {
		ws.location = time.Local
	}
	mux := ws.setupRoutes()
	if cfg.Admin != nil {
		if err := cfg.Admin(mux); err != nil {
			return nil, fmt.Errorf("mount admin routes: %w", err)
		}
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[monitor] HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("[monitor] shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("[monitor] HTTP server force close error: %v", err)
		}
	}
	return nil
}

// Close shuts down the web server immediately.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatusPage)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/recording/start", ws.handleRecording(true))
	mux.HandleFunc("/api/recording/stop", ws.handleRecording(false))
	mux.HandleFunc("/api/alerts", ws.handleAlerts)
	mux.HandleFunc("/api/events", ws.handleEvents)
	mux.HandleFunc("/api/events.csv", ws.handleEventsCSV)
	mux.HandleFunc("/api/frame.jpg", ws.handleFrame)
	mux.HandleFunc("/api/tuning", ws.handleTuning)
	mux.HandleFunc("/api/background", ws.handleBackgroundStats)
	mux.HandleFunc("/api/background/persist", ws.handlePersistBackground)
	mux.HandleFunc("/charts/events", ws.handleEventsChart)
	mux.HandleFunc("/charts/activity.png", ws.handleActivityPlot)
	if ws.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
