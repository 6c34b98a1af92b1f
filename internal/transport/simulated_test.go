package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

func newTranscript(id int64, content string) transcript.Transcript {
	return transcript.Transcript{
		ID:        id,
		Content:   content,
		Digest:    transcript.Digest(content),
		SyncState: transcript.Unsynced,
	}
}

func TestSimulated_DeliversAndRecords(t *testing.T) {
	sim := NewSimulated()
	tr := newTranscript(1, "hello")

	require.NoError(t, sim.Transfer(context.Background(), tr))

	assert.Equal(t, 1, sim.Deliveries(1))
	assert.Equal(t, 1, sim.DeliveredCount())
	digest, ok := sim.Received(1)
	assert.True(t, ok)
	assert.Equal(t, tr.Digest, digest)

	_, ok = sim.Received(2)
	assert.False(t, ok)
}

func TestSimulated_FailNext(t *testing.T) {
	sim := NewSimulated()
	tr := newTranscript(1, "hello")
	sim.FailNext(1, 2)

	for i := 0; i < 2; i++ {
		err := sim.Transfer(context.Background(), tr)
		require.Error(t, err)
		assert.True(t, transcript.IsTransferFault(err))
	}

	require.NoError(t, sim.Transfer(context.Background(), tr))
	assert.Equal(t, 1, sim.Deliveries(1))
}

func TestSimulated_FailAlwaysAndHeal(t *testing.T) {
	sim := NewSimulated()
	tr := newTranscript(3, "stuck")
	sim.FailAlways(3)

	for i := 0; i < 3; i++ {
		assert.True(t, transcript.IsTransferFault(sim.Transfer(context.Background(), tr)))
	}
	assert.Equal(t, 0, sim.Deliveries(3))

	sim.Heal(3)
	require.NoError(t, sim.Transfer(context.Background(), tr))
}

func TestSimulated_FaultRate(t *testing.T) {
	always := NewSimulated(WithFaultRate(1), WithRandom(func() float64 { return 0.5 }))
	assert.True(t, transcript.IsTransferFault(always.Transfer(context.Background(), newTranscript(1, "a"))))

	never := NewSimulated(WithFaultRate(0.25), WithRandom(func() float64 { return 0.9 }))
	assert.NoError(t, never.Transfer(context.Background(), newTranscript(1, "a")))

	clamped := NewSimulated(WithFaultRate(7))
	assert.Equal(t, 1.0, clamped.faultRate)
}

func TestSimulated_DigestMismatch(t *testing.T) {
	sim := NewSimulated()
	tr := newTranscript(1, "hello")
	tr.Digest = "bogus"

	err := sim.Transfer(context.Background(), tr)
	var fault *transcript.TransferFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "digest mismatch", fault.Reason)
}

func TestSimulated_LatencyHonoursContext(t *testing.T) {
	sim := NewSimulated(WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sim.Transfer(ctx, newTranscript(1, "slow"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sim.Deliveries(1))
}

func TestSimulated_LatencyDelays(t *testing.T) {
	sim := NewSimulated(WithLatency(20 * time.Millisecond))

	start := time.Now()
	require.NoError(t, sim.Transfer(context.Background(), newTranscript(1, "a")))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFunc_Adapter(t *testing.T) {
	var got int64
	var tr Transport = Func(func(_ context.Context, t transcript.Transcript) error {
		got = t.ID
		return nil
	})

	require.NoError(t, tr.Transfer(context.Background(), newTranscript(9, "x")))
	assert.Equal(t, int64(9), got)
}
