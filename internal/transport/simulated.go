package transport

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// Simulated is an in-process stand-in for the remote device.
//
// It waits Latency per transfer, fails transfers at FaultRate, and supports
// explicit per-transcript fault injection. Successful deliveries are recorded
// so tests can assert that no transcript was delivered twice.
//
// Thread-safety: safe for concurrent use. The latency wait happens outside
// the internal lock.
type Simulated struct {
	mu         sync.Mutex
	latency    time.Duration
	faultRate  float64
	random     func() float64
	failNext   map[int64]int
	failAlways map[int64]bool
	deliveries map[int64]int
	received   map[int64]string // id -> digest
}

// SimOption configures a Simulated transport.
type SimOption func(*Simulated)

// WithLatency sets the simulated per-transcript transmission delay.
func WithLatency(d time.Duration) SimOption {
	return func(s *Simulated) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithFaultRate sets the probability (0..1) that a transfer fails at random.
func WithFaultRate(rate float64) SimOption {
	return func(s *Simulated) {
		switch {
		case rate < 0:
			rate = 0
		case rate > 1:
			rate = 1
		}
		s.faultRate = rate
	}
}

// WithRandom overrides the source of randomness used for FaultRate.
// It must return values in [0, 1).
func WithRandom(fn func() float64) SimOption {
	return func(s *Simulated) {
		if fn != nil {
			s.random = fn
		}
	}
}

// NewSimulated creates a device with no latency and no faults by default.
func NewSimulated(opts ...SimOption) *Simulated {
	s := &Simulated{
		random:     rand.Float64,
		failNext:   make(map[int64]int),
		failAlways: make(map[int64]bool),
		deliveries: make(map[int64]int),
		received:   make(map[int64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer implements Transport.
func (s *Simulated) Transfer(ctx context.Context, t transcript.Transcript) error {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.failNext[t.ID]; n > 0 {
		if n == 1 {
			delete(s.failNext, t.ID)
		} else {
			s.failNext[t.ID] = n - 1
		}
		return &transcript.TransferFault{ID: t.ID, Reason: "injected fault"}
	}
	if s.failAlways[t.ID] {
		return &transcript.TransferFault{ID: t.ID, Reason: "device rejected transcript"}
	}
	if s.faultRate > 0 && s.random() < s.faultRate {
		return &transcript.TransferFault{ID: t.ID, Reason: "link dropped"}
	}
	if t.Digest != transcript.Digest(t.Content) {
		return &transcript.TransferFault{ID: t.ID, Reason: "digest mismatch"}
	}

	s.deliveries[t.ID]++
	s.received[t.ID] = t.Digest
	return nil
}

// FailNext makes the next n transfers of id fail.
func (s *Simulated) FailNext(id int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		delete(s.failNext, id)
		return
	}
	s.failNext[id] = n
}

// FailAlways makes every transfer of id fail until Heal is called.
func (s *Simulated) FailAlways(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAlways[id] = true
}

// Heal clears all injected faults for id.
func (s *Simulated) Heal(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failNext, id)
	delete(s.failAlways, id)
}

// Deliveries returns how many times id was successfully delivered.
func (s *Simulated) Deliveries(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries[id]
}

// Received returns the digest the device recorded for id.
func (s *Simulated) Received(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.received[id]
	return d, ok
}

// DeliveredCount returns the number of distinct transcripts delivered.
func (s *Simulated) DeliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}
