package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtStart(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}, time.Second)
	assert.True(t, Epoch.Equal(clock.Current()))
}

func TestDeterministicClock_NowAdvancesBySteps(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := NewDeterministicClock(start, time.Second)

	assert.True(t, start.Add(1*time.Second).Equal(clock.Now()))
	assert.True(t, start.Add(2*time.Second).Equal(clock.Now()))
	assert.True(t, start.Add(3*time.Second).Equal(clock.Now()))
	assert.True(t, start.Add(3*time.Second).Equal(clock.Current()))
}

func TestDeterministicClock_ZeroStepIsFrozen(t *testing.T) {
	clock := NewDeterministicClock(Epoch, 0)

	assert.True(t, Epoch.Equal(clock.Now()))
	assert.True(t, Epoch.Equal(clock.Now()))
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(Epoch, time.Minute)

	clock.Now()
	clock.Now()
	clock.Reset()

	assert.True(t, Epoch.Equal(clock.Current()))
	assert.True(t, Epoch.Add(time.Minute).Equal(clock.Now()))
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(Epoch, time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				now := clock.Now()
				mu.Lock()
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every call produced a distinct instant.
	require.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.True(t, Epoch.Add(numGoroutines*callsPerGoroutine*time.Millisecond).Equal(clock.Current()))
}
