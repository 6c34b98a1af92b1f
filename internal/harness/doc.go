// Package harness runs conformance scenarios against a real pocket App.
//
// A scenario is a YAML file listing steps (add, list, toggle, sync,
// mark_synced, count, fail, heal) with optional per-step expectations, plus
// scenario-level assertions over the trace and the final state. Each run uses
// a fresh in-memory store, a deterministic clock, sequential pass ids and a
// zero-latency simulated device, so the same scenario always produces the
// same trace.
//
// Traces can be compared against golden files under testdata/golden:
//
//	go test ./internal/harness -update
//
// regenerates them.
package harness
