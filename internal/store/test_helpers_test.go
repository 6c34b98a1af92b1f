package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/testutil"
)

// createTestStore creates a new file-backed store with a deterministic clock.
func createTestStore(t *testing.T) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(testutil.Epoch, time.Second)
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
