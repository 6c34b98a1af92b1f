package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/app"
	"github.com/TheEleventhAvatar/pocket/internal/config"
	"github.com/TheEleventhAvatar/pocket/internal/store"
	"github.com/TheEleventhAvatar/pocket/internal/testutil"
	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// Harness executes scenario steps against one App.
type Harness struct {
	app *app.App
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory App. Deterministic helpers
// ensure reproducible traces.
//
// Execution flow:
// 1. Create a fresh App (in-memory store, zero latency, no random faults)
// 2. Execute steps in order, tracing each one and checking its expectation
// 3. Evaluate scenario assertions against the trace and final state
//
// Expectation failures are reported in Result.Errors. The returned error is
// only for failures to set the App up.
func Run(scenario *Scenario) (*Result, error) {
	cfg := config.Default()
	cfg.Database = store.MemoryPath
	cfg.Sync.TransferLatency = 0
	cfg.Sync.FaultRate = 0

	clock := testutil.NewDeterministicClock(testutil.Epoch, time.Second)
	a, err := app.New(cfg,
		app.WithClock(clock.Now),
		app.WithPassIDGenerator(testutil.NewSequenceIDGenerator("pass")),
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	defer a.Close()

	h := &Harness{app: a}
	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		event, stepErr := h.execute(ctx, step)
		event.Step = i + 1
		event.Op = step.Op
		if stepErr != nil {
			event.Error = string(app.CodeOf(stepErr))
		}
		result.Trace = append(result.Trace, event)

		for _, msg := range checkExpect(step.Expect, event, stepErr) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, step.Op, msg))
		}
	}

	if len(scenario.Assertions) > 0 {
		state, err := h.finalState(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read final state: %w", err)
		}
		for _, msg := range EvaluateAssertions(result, scenario.Assertions, state) {
			result.AddError(msg)
		}
	}

	return result, nil
}

// execute runs one step and returns its trace event (without Step/Op).
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	var ev TraceEvent

	switch step.Op {
	case OpAdd:
		t, err := h.app.AddTranscript(ctx, step.Content)
		if err != nil {
			return ev, err
		}
		ev.ID, ev.Content = t.ID, t.Content

	case OpList:
		ts, err := h.app.GetTranscripts(ctx)
		if err != nil {
			return ev, err
		}
		ev.Contents = make([]string, len(ts))
		for i, t := range ts {
			ev.Contents[i] = t.Content
		}

	case OpToggle:
		connected := h.app.ToggleDeviceConnection()
		ev.Connected = &connected

	case OpSync:
		r, err := h.app.SimulateSync(ctx)
		if err != nil {
			return ev, err
		}
		ev.Pass = passTrace(r)

	case OpMarkSynced:
		ev.ID = step.ID
		if err := h.app.MarkSynced(ctx, step.ID); err != nil {
			return ev, err
		}

	case OpCount:
		n, err := h.app.GetUnsyncedCount(ctx)
		if err != nil {
			return ev, err
		}
		ev.Unsynced = &n

	case OpFail:
		ev.ID = step.ID
		if step.Times == 0 {
			h.app.Device().FailAlways(step.ID)
		} else {
			h.app.Device().FailNext(step.ID, step.Times)
		}

	case OpHeal:
		ev.ID = step.ID
		h.app.Device().Heal(step.ID)

	default:
		return ev, fmt.Errorf("unknown op %q", step.Op)
	}

	return ev, nil
}

func passTrace(r transcript.SyncResult) *PassTrace {
	return &PassTrace{
		ID:     r.PassID,
		Status: string(r.Status),
		Reason: string(r.Reason),
		Synced: r.SyncedCount,
		Failed: r.FailedCount,
	}
}

// FinalState is the App state after the last step.
type FinalState struct {
	Unsynced  int
	Synced    int
	Connected bool
	Passes    int
}

func (h *Harness) finalState(ctx context.Context) (FinalState, error) {
	all, err := h.app.GetTranscripts(ctx)
	if err != nil {
		return FinalState{}, err
	}
	var st FinalState
	for _, t := range all {
		if t.IsSynced() {
			st.Synced++
		} else {
			st.Unsynced++
		}
	}
	st.Connected = h.app.GetDeviceStatus().Connected

	passes, err := h.app.State().Store.RecentPasses(ctx, 0)
	if err != nil {
		return FinalState{}, err
	}
	st.Passes = len(passes)
	return st, nil
}
