package watchdog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/state"
)

type fakeWorker struct {
	prepareErr error
	prepares   atomic.Int32
	runs       atomic.Int32
	// stubborn runs ignore cancellation until release is closed
	stubborn atomic.Int32
	release  chan struct{}
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{release: make(chan struct{})}
}

func (w *fakeWorker) Prepare() error {
	w.prepares.Add(1)
	return w.prepareErr
}

func (w *fakeWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if w.stubborn.Add(-1) >= 0 {
		<-w.release
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeMouse struct{ releases atomic.Int32 }

func (m *fakeMouse) ForceRelease() { m.releases.Add(1) }

type recordingNotifier struct {
	mu      sync.Mutex
	records []Record
}

func (n *recordingNotifier) SendRecovery(rec Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

func (n *recordingNotifier) Records() []Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Record(nil), n.records...)
}

type recordingStatus struct {
	mu       sync.Mutex
	statuses []string
}

func (s *recordingStatus) UpdateStatus(name, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, name)
}

func (s *recordingStatus) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

type fixture struct {
	sup      *Supervisor
	worker   *fakeWorker
	mouse    *fakeMouse
	notifier *recordingNotifier
	status   *recordingStatus
	machine  *state.Machine
	clock    *fakeClock
	store    *config.Store
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	f := &fixture{
		worker:   newFakeWorker(),
		mouse:    &fakeMouse{},
		notifier: &recordingNotifier{},
		status:   &recordingStatus{},
		clock:    newClock(),
		store:    testStore(t, mutate),
	}
	f.machine = state.NewMachine(zap.NewNop(), f.clock.Now)
	f.sup = NewSupervisor(Options{
		Worker:   f.worker,
		Mouse:    f.mouse,
		Machine:  f.machine,
		Watchdog: New(f.store, f.machine, zap.NewNop(), f.clock.Now),
		Notifier: f.notifier,
		Status:   f.status,
		Store:    f.store,
		Now:      f.clock.Now,
		Log:      zap.NewNop(),
	})
	return f
}

func (f *fixture) waitRuns(t *testing.T, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return f.worker.runs.Load() == n }, time.Second, time.Millisecond)
}

func TestLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.sup.Toggle(ctx))
	assert.Equal(t, Running, f.sup.Phase())
	assert.NotEmpty(t, f.sup.Session())
	f.waitRuns(t, 1)

	require.NoError(t, f.sup.Toggle(ctx))
	assert.Equal(t, Paused, f.sup.Phase())
	assert.Equal(t, int32(1), f.mouse.releases.Load())
	assert.Equal(t, state.Idle, f.machine.Snapshot().Kind)

	session := f.sup.Session()
	require.NoError(t, f.sup.Toggle(ctx))
	assert.Equal(t, Running, f.sup.Phase())
	assert.Equal(t, session, f.sup.Session(), "resume keeps the session")
	f.waitRuns(t, 2)

	f.sup.Stop()
	f.sup.Stop()
	assert.Equal(t, Stopped, f.sup.Phase())
	assert.Equal(t, int32(1), f.worker.prepares.Load())
	assert.Equal(t, []string{StatusActive, StatusPaused, StatusActive, StatusStopped}, f.status.Statuses())
}

func TestStartRefused(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, nil)
	f.worker.prepareErr = errors.New("points missing")

	err := f.sup.Start(context.Background())
	assert.EqualError(t, err, "points missing")
	assert.Equal(t, Stopped, f.sup.Phase())
	assert.Zero(t, f.worker.runs.Load())
	assert.ErrorIs(t, f.sup.Pause(), ErrNotRunning)
}

func TestRuntimeExcludesPausedTime(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.sup.Pause())
	f.clock.Advance(100 * time.Second)
	assert.Equal(t, 10*time.Second, f.sup.Runtime())

	require.NoError(t, f.sup.Resume(ctx))
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 15*time.Second, f.sup.Runtime())

	f.sup.Stop()
	assert.Zero(t, f.sup.Runtime())
}

func TestRecoverRestartsWorker(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	f.waitRuns(t, 1)
	require.NoError(t, f.machine.Enter(state.CastingDetails{Action: "initial_cast"}))
	f.clock.Advance(20 * time.Second)

	rec, ok := f.sup.Recover(ctx, Finding{Reason: ReasonStuckState})
	require.True(t, ok)
	f.waitRuns(t, 2)

	assert.Equal(t, 1, rec.Number)
	assert.Equal(t, f.sup.Session(), rec.Session)
	assert.Equal(t, state.Casting, rec.StuckState)
	assert.Equal(t, 20*time.Second, rec.StuckDuration)
	assert.Equal(t, state.CastingDetails{Action: "initial_cast"}, rec.StateDetails)
	assert.False(t, rec.JoinTimedOut)
	assert.Equal(t, int32(1), f.mouse.releases.Load())
	assert.Equal(t, state.IdleDetails{Action: state.ActionRecoveryReset}, f.machine.Snapshot().Details)
	assert.Equal(t, []Record{rec}, f.notifier.Records())
	assert.Equal(t, []string{StatusActive, StatusRecovering, StatusActive}, f.status.Statuses())
	assert.Equal(t, Running, f.sup.Phase())

	f.sup.Stop()
}

func TestRecoverCooldown(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.sup.Start(ctx))

	_, ok := f.sup.Recover(ctx, Finding{})
	require.True(t, ok)
	_, ok = f.sup.Recover(ctx, Finding{})
	assert.False(t, ok)

	f.clock.Advance(11 * time.Second)
	rec, ok := f.sup.Recover(ctx, Finding{})
	require.True(t, ok)
	assert.Equal(t, 2, rec.Number)
	assert.Len(t, f.sup.Records(), 2)

	f.sup.Stop()
}

func TestRecoverReportsJoinTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, func(c *config.Config) {
		c.Recovery.JoinTimeout = 20 * time.Millisecond
	})
	defer close(f.worker.release)
	f.worker.stubborn.Store(1)
	ctx := context.Background()

	require.NoError(t, f.sup.Start(ctx))
	f.waitRuns(t, 1)

	rec, ok := f.sup.Recover(ctx, Finding{Reason: ReasonInactivity})
	require.True(t, ok)
	assert.True(t, rec.JoinTimedOut)
	assert.Equal(t, ReasonInactivity, rec.Reason)
	f.waitRuns(t, 2)

	f.sup.Stop()
}

func TestRecoverIgnoredWhenNotRunning(t *testing.T) {
	f := newFixture(t, nil)
	_, ok := f.sup.Recover(context.Background(), Finding{})
	assert.False(t, ok)
	assert.Empty(t, f.notifier.Records())
}

func TestWatchRecoversStuckLoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, func(c *config.Config) {
		c.Recovery.CheckInterval = 0
		c.Recovery.PollInterval = time.Millisecond
		c.Recovery.Cooldown = time.Hour
	})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.sup.Start(ctx))
	require.NoError(t, f.machine.Enter(state.CastingDetails{}))
	f.clock.Advance(16 * time.Second)

	done := make(chan error, 1)
	go func() { done <- f.sup.Watch(ctx) }()

	require.Eventually(t, func() bool { return len(f.notifier.Records()) == 1 }, time.Second, time.Millisecond)
	f.waitRuns(t, 2)

	cancel()
	require.NoError(t, <-done)
	f.sup.Stop()
	assert.Len(t, f.notifier.Records(), 1, "cooldown holds further recoveries back")
}

func TestRecoverDoesNotBlockCallers(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, func(c *config.Config) {
		c.Recovery.SettleDelay = 300 * time.Millisecond
	})
	ctx := context.Background()
	require.NoError(t, f.sup.Start(ctx))
	f.waitRuns(t, 1)

	result := make(chan bool, 1)
	go func() {
		_, ok := f.sup.Recover(ctx, Finding{Reason: ReasonStuckState})
		result <- ok
	}()
	require.Eventually(t, func() bool { return f.sup.Phase() == Recovering }, time.Second, time.Millisecond)

	start := time.Now()
	assert.Equal(t, Recovering, f.sup.Phase())
	assert.ErrorIs(t, f.sup.Toggle(ctx), ErrRecovering)
	assert.ErrorIs(t, f.sup.Pause(), ErrRecovering)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.True(t, <-result)
	f.waitRuns(t, 2)
	assert.Equal(t, Running, f.sup.Phase())

	f.sup.Stop()
}

func TestStopDuringRecoveryPreventsRespawn(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, func(c *config.Config) {
		c.Recovery.SettleDelay = 200 * time.Millisecond
	})
	ctx := context.Background()
	require.NoError(t, f.sup.Start(ctx))
	f.waitRuns(t, 1)

	result := make(chan bool, 1)
	go func() {
		_, ok := f.sup.Recover(ctx, Finding{Reason: ReasonInactivity})
		result <- ok
	}()
	require.Eventually(t, func() bool { return f.sup.Phase() == Recovering }, time.Second, time.Millisecond)

	f.sup.Stop()
	assert.False(t, <-result)
	assert.Equal(t, Stopped, f.sup.Phase())
	assert.Equal(t, int32(1), f.worker.runs.Load())
	assert.Len(t, f.notifier.Records(), 1)
}
