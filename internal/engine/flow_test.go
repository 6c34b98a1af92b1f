package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	gen := UUIDv7Generator{}
	token := gen.Generate()

	assert.Equal(t, 36, len(token), "UUID should be 36 characters")

	parsed, err := uuid.Parse(token)
	require.NoError(t, err, "token should be valid UUID")
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, token)
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	tokens := make(chan string, goroutines)
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens <- gen.Generate()
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool, goroutines)
	for token := range tokens {
		require.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("pass-1", "pass-2", "pass-3")

	assert.Equal(t, "pass-1", gen.Generate())
	assert.Equal(t, "pass-2", gen.Generate())
	assert.Equal(t, "pass-3", gen.Generate())
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedGenerator("pass-1")
	gen.Generate()

	assert.PanicsWithValue(t, "FixedGenerator: all tokens exhausted", func() {
		gen.Generate()
	})
}

func TestEngine_UsesPassIDGenerator(t *testing.T) {
	h := newHarness(t, WithPassIDGenerator(NewFixedGenerator("first", "second")))
	h.link.Toggle()

	r1, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	r2, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "first", r1.PassID)
	assert.Equal(t, "second", r2.PassID)
}

func TestEngine_SkippedPassConsumesNoPassID(t *testing.T) {
	h := newHarness(t, WithPassIDGenerator(NewFixedGenerator("only")))

	// Disconnected: must not call Generate (FixedGenerator would panic on the
	// second real pass otherwise).
	_, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	h.link.Toggle()
	r, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "only", r.PassID)
}
