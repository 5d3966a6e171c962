// Package l5events owns Layer 5 (Events) of the motion data model.
//
// Responsibilities: turning the per-frame motion signal into discrete
// actions. Two independent axes are tracked: a logging axis that decides
// whether a cycle starts a new motion event, and an alert axis that
// enforces a cooldown between alerts.
// Key types: Debouncer, Actions, AlertState.
//
// Dependency rule: L5 may depend on L1-L4 but holds no I/O of its own.
package l5events
