package l5events

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/motionwatch/internal/config"
)

// Action is one side effect requested by the debouncer.
type Action uint8

const (
	LogEvent Action = 1 << iota
	SaveSnapshot
	FireAlert
	// EndEvent marks the falling edge of an event. Only emitted by DedupEdge.
	EndEvent
)

// Actions is a set of Action values.
type Actions uint8

// Has reports whether a is in the set.
func (s Actions) Has(a Action) bool { return s&Actions(a) != 0 }

// Empty reports whether no action was requested.
func (s Actions) Empty() bool { return s == 0 }

func (s Actions) String() string {
	var parts []string
	for _, a := range []struct {
		a    Action
		name string
	}{{LogEvent, "log_event"}, {SaveSnapshot, "save_snapshot"}, {FireAlert, "fire_alert"}, {EndEvent, "end_event"}} {
		if s.Has(a.a) {
			parts = append(parts, a.name)
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// DedupPolicy selects how the logging axis recognises a new event.
type DedupPolicy string

const (
	// DedupSecond logs at most one event per wall-clock second.
	DedupSecond DedupPolicy = config.DedupSecond
	// DedupEdge logs on the rising edge of motion and ends on the falling edge.
	DedupEdge DedupPolicy = config.DedupEdge
)

// AlertState is the alert axis state.
type AlertState int

const (
	Armed AlertState = iota
	CoolingDown
)

func (s AlertState) String() string {
	if s == CoolingDown {
		return "cooling_down"
	}
	return "armed"
}

// Params configures a Debouncer.
type Params struct {
	Cooldown time.Duration
	Policy   DedupPolicy
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{Cooldown: cfg.GetAlertCooldown(), Policy: DedupPolicy(cfg.GetDedupPolicy())}
}

// State is a point-in-time view of the debouncer.
type State struct {
	Alert      AlertState `json:"-"`
	AlertName  string     `json:"alert_state"`
	Deadline   *time.Time `json:"cooldown_deadline,omitempty"`
	LastLogged *time.Time `json:"last_logged,omitempty"`
	InEvent    bool       `json:"in_event"`
}

// Debouncer owns the logging and alert axes for one session.
type Debouncer struct {
	params Params

	mu         sync.Mutex
	lastLogged time.Time // truncated to the second
	hasLogged  bool
	inEvent    bool
	alert      AlertState
	deadline   time.Time
}

// NewDebouncer returns an armed debouncer.
func NewDebouncer(p Params) (*Debouncer, error) {
	if p.Cooldown < 0 {
		return nil, fmt.Errorf("cooldown must be non-negative, got %s", p.Cooldown)
	}
	switch p.Policy {
	case "":
		p.Policy = DedupSecond
	case DedupSecond, DedupEdge:
	default:
		return nil, fmt.Errorf("unknown dedup policy %q", p.Policy)
	}
	return &Debouncer{params: p}, nil
}

// Params returns the debouncer configuration.
func (d *Debouncer) Params() Params { return d.params }

// Observe folds one cycle's motion signal into the state machine. The alert
// cooldown is released first, so motion at exactly the deadline re-fires.
// alertsEnabled is sampled per call.
func (d *Debouncer) Observe(motion bool, now time.Time, alertsEnabled bool) Actions {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out Actions

	switch d.params.Policy {
	case DedupEdge:
		if motion && !d.inEvent {
			out |= Actions(LogEvent) | Actions(SaveSnapshot)
			d.lastLogged, d.hasLogged = now.Truncate(time.Second), true
		} else if !motion && d.inEvent {
			out |= Actions(EndEvent)
		}
		d.inEvent = motion
	default:
		if motion {
			sec := now.Truncate(time.Second)
			if !d.hasLogged || !sec.Equal(d.lastLogged) {
				out |= Actions(LogEvent) | Actions(SaveSnapshot)
				d.lastLogged, d.hasLogged = sec, true
			}
		}
	}

	if d.alert == CoolingDown && !now.Before(d.deadline) {
		d.alert = Armed
		d.deadline = time.Time{}
	}
	if d.alert == Armed && motion && alertsEnabled {
		out |= Actions(FireAlert)
		d.alert = CoolingDown
		d.deadline = now.Add(d.params.Cooldown)
	}
	return out
}

// State reports the debouncer state as of now, applying any pending
// cooldown expiry without mutating the machine.
func (d *Debouncer) State(now time.Time) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := State{Alert: d.alert, InEvent: d.inEvent}
	if d.hasLogged {
		last := d.lastLogged
		s.LastLogged = &last
	}
	if s.Alert == CoolingDown {
		if now.Before(d.deadline) {
			deadline := d.deadline
			s.Deadline = &deadline
		} else {
			s.Alert = Armed
		}
	}
	s.AlertName = s.Alert.String()
	return s
}
