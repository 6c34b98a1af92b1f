package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func trace(ops ...Op) []TraceEvent {
	out := make([]TraceEvent, len(ops))
	for i, op := range ops {
		out[i] = TraceEvent{Step: i + 1, Op: op}
	}
	return out
}

func TestAssertTraceCount(t *testing.T) {
	tr := trace(OpAdd, OpSync, OpAdd)

	assert.NoError(t, assertTraceCount(tr, Assertion{Op: OpAdd, Count: intPtr(2)}))

	err := assertTraceCount(tr, Assertion{Op: OpSync, Count: intPtr(3)})
	var ae *AssertionError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 times", ae.Actual)
	assert.Contains(t, err.Error(), "Full trace")
}

func TestAssertTraceOrder(t *testing.T) {
	tr := trace(OpAdd, OpCount, OpToggle, OpSync)

	assert.NoError(t, assertTraceOrder(tr, Assertion{Ops: []Op{OpAdd, OpToggle, OpSync}}))
	assert.Error(t, assertTraceOrder(tr, Assertion{Ops: []Op{OpSync, OpAdd}}))
}

func TestAssertFinalState(t *testing.T) {
	st := FinalState{Unsynced: 1, Synced: 2, Connected: true, Passes: 3}

	assert.NoError(t, assertFinalState(st, Assertion{Unsynced: intPtr(1), Connected: boolPtr(true)}))

	err := assertFinalState(st, Assertion{Synced: intPtr(0), Passes: intPtr(3)})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "synced=2 (want 0)")
	assert.NotContains(t, err.Error(), "passes")
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	result := &Result{Trace: trace(OpAdd)}
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpAdd, Count: intPtr(1)},
		{Type: AssertTraceCount, Op: OpSync, Count: intPtr(1)},
		{Type: AssertFinalState, Unsynced: intPtr(9)},
	}, FinalState{})
	assert.Len(t, errs, 2)
}

func TestCheckExpect(t *testing.T) {
	n := 2
	ev := TraceEvent{Unsynced: &n}

	assert.Empty(t, checkExpect(nil, ev, nil))
	assert.Len(t, checkExpect(nil, ev, errors.New("x")), 1)
	assert.Empty(t, checkExpect(&Expect{Unsynced: intPtr(2)}, ev, nil))
	assert.Len(t, checkExpect(&Expect{Unsynced: intPtr(3)}, ev, nil), 1)
	assert.Len(t, checkExpect(&Expect{Contents: []string{"a"}}, ev, nil), 1)
}
