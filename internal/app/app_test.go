package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheEleventhAvatar/pocket/internal/config"
	"github.com/TheEleventhAvatar/pocket/internal/engine"
	"github.com/TheEleventhAvatar/pocket/internal/store"
	"github.com/TheEleventhAvatar/pocket/internal/testutil"
	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Database = store.MemoryPath
	cfg.Sync.TransferLatency = 0
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	clock := testutil.NewDeterministicClock(testutil.Epoch, time.Second)
	all := append([]Option{WithClock(clock.Now), WithLogger(discardLogger())}, opts...)
	a, err := New(cfg, all...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.FaultRate = 3

	_, err := New(cfg, WithLogger(discardLogger()))
	var verr *config.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestNew_BadDatabasePath(t *testing.T) {
	cfg := testConfig()
	cfg.Database = filepath.Join(t.TempDir(), "missing", "dir", "pocket.db")

	_, err := New(cfg, WithLogger(discardLogger()))
	assert.Error(t, err)
}

func TestScenario_AddThreeThenSync(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		_, err := a.AddTranscript(ctx, c)
		require.NoError(t, err)
	}

	n, err := a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := a.GetTranscripts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].Content, all[1].Content, all[2].Content})

	r, err := a.SimulateSync(ctx)
	require.NoError(t, err)
	assert.True(t, r.IsSkipped())
	assert.Equal(t, transcript.NotConnected, r.Reason)

	n, err = a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "skipped pass changes nothing")

	assert.True(t, a.ToggleDeviceConnection())

	r, err = a.SimulateSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, transcript.PassCompleted, r.Status)
	assert.Equal(t, 3, r.SyncedCount)
	assert.Equal(t, 0, r.FailedCount)

	n, err = a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	st := a.GetDeviceStatus()
	assert.True(t, st.Connected)
	require.NotNil(t, st.LastSyncAt)
}

func TestScenario_FaultThenHeal(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := context.Background()

	a.ToggleDeviceConnection()
	tr, err := a.AddTranscript(ctx, "only")
	require.NoError(t, err)
	a.Device().FailAlways(tr.ID)

	r, err := a.SimulateSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, r.SyncedCount)
	assert.Equal(t, 1, r.FailedCount)

	n, err := a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a.Device().Heal(tr.ID)

	r, err = a.SimulateSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.SyncedCount)
	assert.Equal(t, 0, r.FailedCount)

	n, err = a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAddTranscript_RejectsBlank(t *testing.T) {
	a := newTestApp(t, testConfig())

	for _, c := range []string{"", "   ", "\n\t"} {
		_, err := a.AddTranscript(context.Background(), c)
		require.Error(t, err)
		assert.Equal(t, CodeInvalidArgument, CodeOf(err))
	}

	n, err := a.GetUnsyncedCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkSynced(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := context.Background()

	tr, err := a.AddTranscript(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, a.MarkSynced(ctx, tr.ID))
	require.NoError(t, a.MarkSynced(ctx, tr.ID), "idempotent")

	all, err := a.GetTranscripts(ctx)
	require.NoError(t, err)
	assert.True(t, all[0].IsSynced())

	err = a.MarkSynced(ctx, 4242)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "NOT_FOUND")

	err = a.MarkSynced(ctx, 0)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestManualMarkThenSync_NotCounted(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := context.Background()

	x, _ := a.AddTranscript(ctx, "x")
	_, _ = a.AddTranscript(ctx, "y")
	require.NoError(t, a.MarkSynced(ctx, x.ID))

	a.ToggleDeviceConnection()
	r, err := a.SimulateSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.SyncedCount)
	assert.Equal(t, 0, a.Device().Deliveries(x.ID))
}

func TestSimulateSync_ConcurrentNeverDoubleCounts(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.TransferLatency = time.Millisecond
	a := newTestApp(t, cfg)
	ctx := context.Background()

	const total = 15
	for i := 0; i < total; i++ {
		_, err := a.AddTranscript(ctx, string(rune('a'+i)))
		require.NoError(t, err)
	}
	a.ToggleDeviceConnection()

	const callers = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	synced := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := a.SimulateSync(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			synced += r.SyncedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, total, synced)
	n, err := a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnsyncedCount_MonotoneUnderFaults(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.FaultRate = 0.5
	draws := 0
	random := func() float64 {
		draws++
		if draws%2 == 0 {
			return 0
		}
		return 0.9
	}
	a := newTestApp(t, cfg, WithRandom(random))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := a.AddTranscript(ctx, string(rune('a'+i)))
		require.NoError(t, err)
	}
	a.ToggleDeviceConnection()

	prev, err := a.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	for i := 0; i < 20 && prev > 0; i++ {
		_, err := a.SimulateSync(ctx)
		require.NoError(t, err)

		n, err := a.GetUnsyncedCount(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, prev)
		prev = n
	}
	assert.Zero(t, prev)
}

func TestRecentPasses(t *testing.T) {
	a := newTestApp(t, testConfig(), WithPassIDGenerator(engine.NewFixedGenerator("p1", "p2")))
	ctx := context.Background()

	a.ToggleDeviceConnection()
	_, _ = a.AddTranscript(ctx, "a")
	_, err := a.SimulateSync(ctx)
	require.NoError(t, err)
	_, err = a.SimulateSync(ctx)
	require.NoError(t, err)

	ps, err := a.RecentPasses(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "p2", ps[0].PassID)
	assert.Equal(t, "p1", ps[1].PassID)
	assert.Equal(t, 1, ps[1].SyncedCount)

	ps, err = a.RecentPasses(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, ps, 1)

	_, err = a.RecentPasses(ctx, -1)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestCommands_AfterCloseReportStorage(t *testing.T) {
	a := newTestApp(t, testConfig())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "Close is idempotent")

	_, err := a.AddTranscript(context.Background(), "late")
	require.Error(t, err)
	assert.Equal(t, CodeStorage, CodeOf(err))

	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.True(t, transcript.IsStorageError(ce))
}

func TestCommands_PanicBecomesInternal(t *testing.T) {
	// An App with no store panics on first use.
	a := &App{logger: discardLogger()}

	_, err := a.GetTranscripts(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))

	_, err = a.GetUnsyncedCount(context.Background())
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestStart_SchedulerSyncsInBackground(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.Interval = 5 * time.Millisecond
	a := newTestApp(t, cfg)
	ctx := context.Background()

	sub := a.Status().Subscribe()
	defer a.Status().Unsubscribe(sub)

	_, err := a.AddTranscript(ctx, "background")
	require.NoError(t, err)
	a.ToggleDeviceConnection()

	require.NoError(t, a.Start(ctx))

	require.Eventually(t, func() bool {
		n, err := a.GetUnsyncedCount(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 5*time.Millisecond)

	st := <-sub.C
	assert.True(t, st.Device.Connected)

	latest, ok := a.Status().Latest()
	require.True(t, ok)
	assert.NoError(t, latest.Err)

	require.NoError(t, a.Close())
	assert.False(t, a.Scheduler().Running())
}

func TestScheduledPass_CancelledContextIsNotAnError(t *testing.T) {
	a := newTestApp(t, testConfig())
	_, err := a.AddTranscript(context.Background(), "pending")
	require.NoError(t, err)
	a.ToggleDeviceConnection()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, ran := a.Scheduler().TryRun(ctx)
	require.True(t, ran)
	assert.NoError(t, st.Err)
	assert.True(t, st.Result.Cancelled)
	assert.Equal(t, 1, st.Unsynced)
	assert.Zero(t, a.Scheduler().Stats().Errors)

	r, err := a.SimulateSync(ctx)
	require.NoError(t, err)
	assert.True(t, r.Cancelled)
	assert.Nil(t, a.GetDeviceStatus().LastSyncAt)
}

func TestPersistence_SurvivesRestart(t *testing.T) {
	cfg := testConfig()
	cfg.Database = filepath.Join(t.TempDir(), "pocket.db")
	ctx := context.Background()

	a, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	x, err := a.AddTranscript(ctx, "kept")
	require.NoError(t, err)
	_, err = a.AddTranscript(ctx, "also kept")
	require.NoError(t, err)
	require.NoError(t, a.MarkSynced(ctx, x.ID))
	require.NoError(t, a.Close())

	b, err := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer b.Close()

	all, err := b.GetTranscripts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	n, err := b.GetUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, b.GetDeviceStatus().Connected, "link starts disconnected every process")
}
