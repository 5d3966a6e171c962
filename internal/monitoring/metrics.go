package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes recorded by DetectorMetrics.CycleDone.
const (
	OutcomeProcessed   = "processed"
	OutcomeIdle        = "idle"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// DetectorMetrics holds the prometheus collectors for one detector process.
// All methods are safe on a nil receiver so components can run unmetered.
type DetectorMetrics struct {
	cycles         *prometheus.CounterVec
	events         prometheus.Counter
	snapshots      prometheus.Counter
	alertsFired    prometheus.Counter
	alertsDropped  prometheus.Counter
	alertFailures  prometheus.Counter
	sinkErrors     *prometheus.CounterVec
	foreground     prometheus.Gauge
	regions        prometheus.Gauge
	cycleDurations prometheus.Histogram
}

// NewDetectorMetrics registers the detector collectors on reg.
func NewDetectorMetrics(reg prometheus.Registerer) *DetectorMetrics {
	f := promauto.With(reg)
	return &DetectorMetrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "motionwatch_cycles_total",
			Help: "Detection cycles by outcome",
		}, []string{"outcome"}),
		events: f.NewCounter(prometheus.CounterOpts{
			Name: "motionwatch_motion_events_total",
			Help: "Distinct motion events logged",
		}),
		snapshots: f.NewCounter(prometheus.CounterOpts{
			Name: "motionwatch_snapshots_total",
			Help: "Evidence snapshots saved",
		}),
		alertsFired: f.NewCounter(prometheus.CounterOpts{
			Name: "motionwatch_alerts_fired_total",
			Help: "Alerts handed to the alert dispatcher",
		}),
		alertsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "motionwatch_alerts_dropped_total",
			Help: "Alerts discarded because the dispatcher queue was full",
		}),
		alertFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "motionwatch_alert_failures_total",
			Help: "Alert sink failures absorbed by the dispatcher",
		}),
		sinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "motionwatch_log_sink_errors_total",
			Help: "Evidence sink failures surfaced to the operator",
		}, []string{"op"}),
		foreground: f.NewGauge(prometheus.GaugeOpts{
			Name: "motionwatch_foreground_fraction",
			Help: "Fraction of pixels classified foreground in the last frame",
		}),
		regions: f.NewGauge(prometheus.GaugeOpts{
			Name: "motionwatch_qualifying_regions",
			Help: "Qualifying regions in the last frame",
		}),
		cycleDurations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "motionwatch_cycle_duration_seconds",
			Help:    "Wall time of processed detection cycles",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

func (m *DetectorMetrics) CycleDone(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	if outcome == OutcomeProcessed || outcome == OutcomeError {
		m.cycleDurations.Observe(seconds)
	}
}

func (m *DetectorMetrics) Frame(foregroundFraction float64, regions int) {
	if m == nil {
		return
	}
	m.foreground.Set(foregroundFraction)
	m.regions.Set(float64(regions))
}

func (m *DetectorMetrics) EventLogged() {
	if m != nil {
		m.events.Inc()
	}
}

func (m *DetectorMetrics) SnapshotSaved() {
	if m != nil {
		m.snapshots.Inc()
	}
}

func (m *DetectorMetrics) AlertFired() {
	if m != nil {
		m.alertsFired.Inc()
	}
}

func (m *DetectorMetrics) AlertDropped() {
	if m != nil {
		m.alertsDropped.Inc()
	}
}

func (m *DetectorMetrics) AlertFailed() {
	if m != nil {
		m.alertFailures.Inc()
	}
}

// SinkError counts a surfaced evidence failure; op is "log_event" or "save_snapshot".
func (m *DetectorMetrics) SinkError(op string) {
	if m != nil {
		m.sinkErrors.WithLabelValues(op).Inc()
	}
}
