package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEleventhAvatar/pocket/internal/testutil"
	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

func completedPass(id string, finished time.Time) transcript.SyncResult {
	return transcript.SyncResult{
		PassID:      id,
		Status:      transcript.PassCompleted,
		SyncedCount: 2,
		FailedCount: 1,
		StartedAt:   finished.Add(-time.Second),
		FinishedAt:  finished,
	}
}

func TestRecordPass_RoundTrip(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	p := completedPass("pass-1", testutil.Epoch)
	p.Cancelled = true
	require.NoError(t, s.RecordPass(ctx, p))

	got, err := s.RecentPasses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pass-1", got[0].PassID)
	assert.Equal(t, transcript.PassCompleted, got[0].Status)
	assert.Equal(t, 2, got[0].SyncedCount)
	assert.Equal(t, 1, got[0].FailedCount)
	assert.True(t, got[0].Cancelled)
	assert.True(t, p.StartedAt.Equal(got[0].StartedAt))
	assert.True(t, p.FinishedAt.Equal(got[0].FinishedAt))
}

func TestRecordPass_Idempotent(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	p := completedPass("pass-1", testutil.Epoch)
	require.NoError(t, s.RecordPass(ctx, p))
	require.NoError(t, s.RecordPass(ctx, p))

	got, err := s.RecentPasses(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecordPass_Rejects(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	err := s.RecordPass(ctx, completedPass("", testutil.Epoch))
	assert.True(t, transcript.IsStorageError(err))

	skipped := transcript.Skipped(transcript.NotConnected, testutil.Epoch)
	skipped.PassID = "pass-x"
	err = s.RecordPass(ctx, skipped)
	assert.True(t, transcript.IsStorageError(err))
}

func TestRecentPasses_OrderAndLimit(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		p := completedPass(fmt.Sprintf("pass-%d", i), testutil.Epoch.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.RecordPass(ctx, p))
	}

	got, err := s.RecentPasses(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "pass-5", got[0].PassID)
	assert.Equal(t, "pass-4", got[1].PassID)
	assert.Equal(t, "pass-3", got[2].PassID)

	all, err := s.RecentPasses(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
