// Package scheduler runs reconciliation passes in the background.
//
// A Scheduler owns exactly one goroutine, started by Start and stopped by
// Stop. Every tick it attempts one pass through TryRun. TryRun holds a
// single slot: if a pass is still running when the next tick fires, the
// tick is dropped and counted in Stats().Skipped. Ticks never queue.
//
// Pass errors and panics are recovered, logged and published; the loop keeps
// running. Each attempted pass is published to the Observer as a Status
// snapshot. Broadcaster is an Observer that fans snapshots out to any number
// of subscribers, each of which only ever sees the most recent one.
package scheduler
