// Package pipeline provides orchestration for the motion detection pipeline.
//
// It wires the layer packages (capture, frames, grid, perception, events)
// and the sink interfaces into a Session whose RunCycle performs exactly
// one capture/classify/extract/debounce step. Scheduling lives outside the
// session: Runner drives RunCycle from a clock, and AlertDispatcher runs
// alert side effects on their own goroutine so they never stall a cycle.
// The pipeline does not own domain logic; it delegates to layer packages
// and adapters.
package pipeline
