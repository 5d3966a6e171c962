package l5events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2024, 3, 9, 14, 30, 5, 100_000_000, time.UTC)

func newDebouncer(t *testing.T, policy DedupPolicy) *Debouncer {
	t.Helper()
	d, err := NewDebouncer(Params{Cooldown: 5 * time.Second, Policy: policy})
	if err != nil {
		t.Fatalf("NewDebouncer: %v", err)
	}
	return d
}

func TestObserve_SameSecondDedup(t *testing.T) {
	d := newDebouncer(t, DedupSecond)

	first := d.Observe(true, t0, false)
	second := d.Observe(true, t0.Add(800*time.Millisecond), false) // still 14:30:05

	if !first.Has(LogEvent) || !first.Has(SaveSnapshot) {
		t.Errorf("first cycle = %v, want log_event+save_snapshot", first)
	}
	if second.Has(LogEvent) || second.Has(SaveSnapshot) {
		t.Errorf("same-second cycle = %v, want no logging", second)
	}

	third := d.Observe(true, t0.Add(900*time.Millisecond), false) // 14:30:06
	if !third.Has(LogEvent) {
		t.Errorf("next-second cycle = %v, want log_event", third)
	}
}

func TestObserve_AbsenceDoesNotResetLogging(t *testing.T) {
	d := newDebouncer(t, DedupSecond)
	d.Observe(true, t0, false)
	if got := d.Observe(false, t0.Add(100*time.Millisecond), false); !got.Empty() {
		t.Errorf("no-motion cycle = %v, want nothing", got)
	}
	// A second episode within the same second is merged.
	if got := d.Observe(true, t0.Add(200*time.Millisecond), false); got.Has(LogEvent) {
		t.Errorf("same-second second episode = %v, want merged", got)
	}
	if st := d.State(t0); st.LastLogged == nil || !st.LastLogged.Equal(t0.Truncate(time.Second)) {
		t.Errorf("LastLogged = %v", st.LastLogged)
	}
}

func TestObserve_Cooldown(t *testing.T) {
	d := newDebouncer(t, DedupSecond)

	if got := d.Observe(true, t0, true); !got.Has(FireAlert) {
		t.Fatalf("first motion = %v, want fire_alert", got)
	}
	fired := 0
	for ms := 100; ms < 5000; ms += 100 {
		if d.Observe(true, t0.Add(time.Duration(ms)*time.Millisecond), true).Has(FireAlert) {
			fired++
		}
	}
	if fired != 0 {
		t.Errorf("alerts during cooldown = %d, want 0", fired)
	}

	st := d.State(t0.Add(4 * time.Second))
	if st.Alert != CoolingDown || st.Deadline == nil || !st.Deadline.Equal(t0.Add(5*time.Second)) {
		t.Errorf("state during cooldown = %+v", st)
	}

	// Exactly at the deadline the alert is re-armed and fires once.
	if got := d.Observe(true, t0.Add(5*time.Second), true); !got.Has(FireAlert) {
		t.Errorf("motion at deadline = %v, want fire_alert", got)
	}
	if got := d.Observe(true, t0.Add(5100*time.Millisecond), true); got.Has(FireAlert) {
		t.Errorf("motion just after re-fire = %v, want no alert", got)
	}
}

func TestState_JSONOmitsUnsetTimes(t *testing.T) {
	d := newDebouncer(t, DedupSecond)

	armed, err := json.Marshal(d.State(t0))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"cooldown_deadline", "last_logged", "0001-01-01"} {
		if strings.Contains(string(armed), key) {
			t.Errorf("armed state %s should not contain %q", armed, key)
		}
	}

	d.Observe(true, t0, true)
	cooling, err := json.Marshal(d.State(t0.Add(time.Second)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `"cooldown_deadline":"` + t0.Add(5*time.Second).Format(time.RFC3339Nano) + `"`
	if !strings.Contains(string(cooling), want) || !strings.Contains(string(cooling), `"last_logged"`) {
		t.Errorf("cooling state = %s, want %s and last_logged", cooling, want)
	}

	if st := d.State(t0.Add(5 * time.Second)); st.Deadline != nil || st.Alert != Armed {
		t.Errorf("state at deadline = %+v, want armed without deadline", st)
	}
}

func TestObserve_CooldownExpiresWithoutMotion(t *testing.T) {
	d := newDebouncer(t, DedupSecond)
	d.Observe(true, t0, true)
	d.Observe(false, t0.Add(6*time.Second), true)

	if st := d.State(t0.Add(6 * time.Second)); st.Alert != Armed || st.AlertName != "armed" {
		t.Errorf("state after quiet cooldown = %+v, want armed", st)
	}
	if got := d.Observe(true, t0.Add(7*time.Second), true); !got.Has(FireAlert) {
		t.Errorf("motion after re-arm = %v, want fire_alert", got)
	}
}

func TestObserve_AlertsDisabled(t *testing.T) {
	d := newDebouncer(t, DedupSecond)
	for i := 0; i < 20; i++ {
		got := d.Observe(true, t0.Add(time.Duration(i)*time.Second), false)
		if got.Has(FireAlert) {
			t.Fatalf("cycle %d fired with alerts disabled", i)
		}
		if !got.Has(LogEvent) || !got.Has(SaveSnapshot) {
			t.Fatalf("cycle %d = %v, want logging to continue", i, got)
		}
	}
	if st := d.State(t0); st.Alert != Armed {
		t.Errorf("disabled alerts should leave the axis armed, got %v", st.Alert)
	}

	// Toggling on is honoured on the next call.
	if got := d.Observe(true, t0.Add(30*time.Second), true); !got.Has(FireAlert) {
		t.Errorf("after enabling = %v, want fire_alert", got)
	}
}

func TestObserve_EdgePolicy(t *testing.T) {
	d := newDebouncer(t, DedupEdge)

	seq := []struct {
		motion bool
		offset time.Duration
		want   Actions
	}{
		{true, 0, Actions(LogEvent) | Actions(SaveSnapshot)},
		{true, 2 * time.Second, 0},
		{false, 3 * time.Second, Actions(EndEvent)},
		{false, 3100 * time.Millisecond, 0},
		// A new episode is logged even within the same second as the last.
		{true, 3200 * time.Millisecond, Actions(LogEvent) | Actions(SaveSnapshot)},
	}
	for i, s := range seq {
		got := d.Observe(s.motion, t0.Add(s.offset), false)
		if got != s.want {
			t.Errorf("step %d: got %v, want %v", i, got, s.want)
		}
	}
	if !d.State(t0).InEvent {
		t.Error("expected to be inside an event")
	}
}

func TestNewDebouncer_Validation(t *testing.T) {
	if _, err := NewDebouncer(Params{Cooldown: -time.Second}); err == nil {
		t.Error("expected error for negative cooldown")
	}
	if _, err := NewDebouncer(Params{Policy: "minute"}); err == nil {
		t.Error("expected error for unknown policy")
	}
	d, err := NewDebouncer(Params{})
	if err != nil || d.Params().Policy != DedupSecond {
		t.Errorf("empty policy should default to second: %v %v", d, err)
	}
}

func TestActions_String(t *testing.T) {
	a := Actions(LogEvent) | Actions(FireAlert)
	if got := a.String(); got != "{log_event,fire_alert}" {
		t.Errorf("String() = %q", got)
	}
	if got := Actions(0).String(); got != "{}" {
		t.Errorf("empty String() = %q", got)
	}
}
