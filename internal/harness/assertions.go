package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Step, event.Op)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, state FinalState) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(state, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, e := range trace {
		if e.Op == a.Op {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s exactly %d times", a.Op, *a.Count),
			Actual:   fmt.Sprintf("%d times", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks ops appear in the given relative order.
// Other ops may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, e := range trace {
		if next < len(a.Ops) && e.Op == a.Ops[next] {
			next++
		}
	}
	if next < len(a.Ops) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("ops in order %v", a.Ops),
			Actual:   fmt.Sprintf("matched only %v", a.Ops[:next]),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalState(st FinalState, a Assertion) error {
	var diffs []string
	if a.Unsynced != nil && *a.Unsynced != st.Unsynced {
		diffs = append(diffs, fmt.Sprintf("unsynced=%d (want %d)", st.Unsynced, *a.Unsynced))
	}
	if a.Synced != nil && *a.Synced != st.Synced {
		diffs = append(diffs, fmt.Sprintf("synced=%d (want %d)", st.Synced, *a.Synced))
	}
	if a.Connected != nil && *a.Connected != st.Connected {
		diffs = append(diffs, fmt.Sprintf("connected=%t (want %t)", st.Connected, *a.Connected))
	}
	if a.Passes != nil && *a.Passes != st.Passes {
		diffs = append(diffs, fmt.Sprintf("passes=%d (want %d)", st.Passes, *a.Passes))
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "final state to match",
			Actual:   strings.Join(diffs, ", "),
		}
	}
	return nil
}

// checkExpect compares a step outcome with its expectation.
func checkExpect(exp *Expect, ev TraceEvent, err error) []string {
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	if exp.Error != "" {
		switch {
		case err == nil:
			return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
		case ev.Error != exp.Error:
			return []string{fmt.Sprintf("expected error %s, got %s (%v)", exp.Error, ev.Error, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	mismatch := func(field string, got, want any) {
		msgs = append(msgs, fmt.Sprintf("%s: got %v, want %v", field, got, want))
	}

	if exp.ID != nil && ev.ID != *exp.ID {
		mismatch("id", ev.ID, *exp.ID)
	}
	if exp.Unsynced != nil {
		if ev.Unsynced == nil {
			msgs = append(msgs, "unsynced: not reported by this op")
		} else if *ev.Unsynced != *exp.Unsynced {
			mismatch("unsynced", *ev.Unsynced, *exp.Unsynced)
		}
	}
	if exp.Connected != nil {
		if ev.Connected == nil {
			msgs = append(msgs, "connected: not reported by this op")
		} else if *ev.Connected != *exp.Connected {
			mismatch("connected", *ev.Connected, *exp.Connected)
		}
	}
	if exp.Contents != nil && !slices.Equal(ev.Contents, exp.Contents) {
		mismatch("contents", ev.Contents, exp.Contents)
	}

	if exp.Status != "" || exp.Reason != "" || exp.Synced != nil || exp.Failed != nil {
		if ev.Pass == nil {
			return append(msgs, "pass: not reported by this op")
		}
		p := ev.Pass
		if exp.Status != "" && p.Status != exp.Status {
			mismatch("status", p.Status, exp.Status)
		}
		if exp.Reason != "" && p.Reason != exp.Reason {
			mismatch("reason", p.Reason, exp.Reason)
		}
		if exp.Synced != nil && p.Synced != *exp.Synced {
			mismatch("synced", p.Synced, *exp.Synced)
		}
		if exp.Failed != nil && p.Failed != *exp.Failed {
			mismatch("failed", p.Failed, *exp.Failed)
		}
	}
	return msgs
}
