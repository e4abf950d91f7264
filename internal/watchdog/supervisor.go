package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/observability"
	"gpo-autofish/internal/pkg/sleeper"
	"gpo-autofish/internal/pkg/utils"
	"gpo-autofish/internal/state"
)

var (
	ErrJoinTimeout = errors.New("worker did not stop in time")
	ErrNotRunning  = errors.New("fishing loop is not running")
	ErrRecovering  = errors.New("fishing loop is being recovered")
)

// Worker is the fishing loop. Prepare runs before a fresh start and may
// refuse it; Run is restarted from scratch after every recovery.
type Worker interface {
	Prepare() error
	Run(ctx context.Context) error
}

// Releaser lets go of any button the worker may hold.
type Releaser interface {
	ForceRelease()
}

type Notifier interface {
	SendRecovery(rec Record)
}

type StatusSink interface {
	UpdateStatus(name, style string)
}

type Phase int

const (
	Stopped Phase = iota
	Running
	Paused
	// Recovering is held while Recover waits for the old worker to stop.
	Recovering
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Recovering:
		return "recovering"
	}
	return "stopped"
}

// Loop status names and styles shown by status sinks.
const (
	StatusActive     = "ACTIVE"
	StatusPaused     = "PAUSED"
	StatusRecovering = "RECOVERING"
	StatusStopped    = "STOPPED"

	StyleActive  = "active"
	StylePaused  = "paused"
	StyleError   = "error"
	StyleDefault = "default"
)

// Record is kept for every forced restart.
type Record struct {
	Session            string        `json:"session"`
	Number             int           `json:"recovery_number"`
	Reason             Reason        `json:"reason"`
	StuckState         state.Kind    `json:"stuck_state"`
	StuckDuration      time.Duration `json:"stuck_duration"`
	StateDetails       state.Details `json:"state_details"`
	RecentStuckActions []Finding     `json:"recent_stuck_actions"`
	Timestamp          time.Time     `json:"timestamp"`
	JoinTimedOut       bool          `json:"join_timed_out"`
}

// Supervisor owns the worker goroutine. At most one worker runs at a time:
// a replacement is only spawned after the previous one was cancelled and
// joined, or after the join timed out and the anomaly was recorded.
type Supervisor struct {
	worker   Worker
	mouse    Releaser
	machine  *state.Machine
	watchdog *Watchdog
	notifier Notifier
	status   StatusSink
	store    *config.Store
	now      func() time.Time
	log      *zap.Logger

	mu          sync.Mutex
	phase       Phase
	parent      context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	session     string
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	recoveries  int
	records     []Record
	cooldown    *rate.Limiter
}

type Options struct {
	Worker   Worker
	Mouse    Releaser
	Machine  *state.Machine
	Watchdog *Watchdog
	Notifier Notifier
	Status   StatusSink
	Store    *config.Store
	Now      func() time.Time
	Log      *zap.Logger
}

func NewSupervisor(opts Options) *Supervisor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Supervisor{
		worker:   opts.Worker,
		mouse:    opts.Mouse,
		machine:  opts.Machine,
		watchdog: opts.Watchdog,
		notifier: opts.Notifier,
		status:   opts.Status,
		store:    opts.Store,
		now:      now,
		log:      opts.Log,
		cooldown: rate.NewLimiter(rate.Every(opts.Store.Get().Recovery.Cooldown), 1),
	}
}

func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Supervisor) Session() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Records returns the Recovery Records of the current session.
func (s *Supervisor) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Runtime is the time spent running since the last fresh start, paused
// time excluded.
func (s *Supervisor) Runtime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime()
}

func (s *Supervisor) runtime() time.Duration {
	switch s.phase {
	case Running, Recovering:
		return s.now().Sub(s.startedAt) - s.pausedTotal
	case Paused:
		return s.pausedAt.Sub(s.startedAt) - s.pausedTotal
	}
	return 0
}

// Toggle starts, pauses or resumes the loop depending on its phase.
func (s *Supervisor) Toggle(ctx context.Context) error {
	switch s.Phase() {
	case Running:
		return s.Pause()
	case Paused:
		return s.Resume(ctx)
	case Recovering:
		return ErrRecovering
	}
	return s.Start(ctx)
}

// Start begins a fresh session.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Stopped {
		return nil
	}
	if err := s.worker.Prepare(); err != nil {
		s.log.Warn("Refusing to start.", zap.Error(err))
		return err
	}

	s.session = uuid.NewString()
	s.startedAt = s.now()
	s.pausedTotal = 0
	s.recoveries = 0
	s.records = nil
	s.watchdog.ClearStuck()
	s.spawn(ctx)
	s.phase = Running
	s.setStatus(StatusActive, StyleActive)
	s.log.Info("Started fishing.", observability.Important, zap.String("session", s.session))
	return nil
}

// Pause stops the worker but keeps the session and its counters.
func (s *Supervisor) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case Recovering:
		return ErrRecovering
	case Running:
	default:
		return ErrNotRunning
	}
	s.pausedAt = s.now()
	s.halt()
	s.phase = Paused
	s.setStatus(StatusPaused, StylePaused)
	s.log.Info("Fishing paused.", observability.Important)
	return nil
}

func (s *Supervisor) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Paused {
		return nil
	}
	s.pausedTotal += s.now().Sub(s.pausedAt)
	s.spawn(ctx)
	s.phase = Running
	s.setStatus(StatusActive, StyleActive)
	s.log.Info("Fishing resumed.", observability.Important)
	return nil
}

// Stop ends the session. It is safe to call in any phase.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == Stopped {
		return
	}
	runtime := s.runtime()
	s.halt()
	s.phase = Stopped
	s.setStatus(StatusStopped, StyleDefault)
	s.log.Info("Fishing stopped.", observability.Important, zap.String("session", s.session), zap.Duration("runtime", runtime))
}

// halt cancels and joins the worker, then releases the mouse.
func (s *Supervisor) halt() {
	if !s.stopWorker() {
		s.log.Error("Worker did not stop in time.", zap.Error(ErrJoinTimeout))
	}
	s.mouse.ForceRelease()
	s.machine.Reset(state.IdleDetails{Action: state.ActionStopped})
}

// spawn starts a worker goroutine under parent. Callers hold s.mu.
func (s *Supervisor) spawn(parent context.Context) {
	s.parent = parent
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("Fishing loop exited.", zap.Error(err))
		}
	}()
}

// stopWorker cancels the worker and waits up to the join timeout. It
// reports false when the goroutine is still running.
func (s *Supervisor) stopWorker() bool {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.done = nil
	return s.join(done)
}

// join waits for done up to the join timeout. A nil done counts as joined.
func (s *Supervisor) join(done <-chan struct{}) bool {
	if done == nil {
		return true
	}
	timer := time.NewTimer(s.store.Get().Recovery.JoinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Supervisor) setStatus(name, style string) {
	if s.status != nil {
		s.status.UpdateStatus(name, style)
	}
}

// Recover restarts the worker after f. It does nothing while the loop is
// not running or within the cooldown of the previous recovery. The lock is
// not held during the settle delay and the join: meanwhile the phase reads
// Recovering, Toggle and Pause return ErrRecovering and Stop takes over, in
// which case no replacement is spawned.
func (s *Supervisor) Recover(ctx context.Context, f Finding) (Record, bool) {
	s.mu.Lock()
	if s.phase != Running {
		s.mu.Unlock()
		return Record{}, false
	}
	now := s.now()
	if !s.cooldown.AllowN(now, 1) {
		s.mu.Unlock()
		return Record{}, false
	}

	cfg := s.store.Get().Recovery
	snap := s.machine.Snapshot()
	s.recoveries++
	rec := Record{
		Session:            s.session,
		Number:             s.recoveries,
		Reason:             f.Reason,
		StuckState:         snap.Kind,
		StuckDuration:      snap.Dwell(now),
		StateDetails:       snap.Details,
		RecentStuckActions: s.watchdog.RecentStuck(),
		Timestamp:          now,
	}
	s.log.Error("Recovery started, restarting the fishing loop.", zap.Int("recovery", rec.Number), zap.Stringer("state", rec.StuckState), zap.Duration("stuck_for", rec.StuckDuration))

	s.mouse.ForceRelease()
	s.machine.Reset(state.IdleDetails{Action: state.ActionRecoveryReset})
	s.watchdog.ClearStuck()
	s.setStatus(StatusRecovering, StyleError)

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.phase = Recovering
	s.mu.Unlock()

	slept := sleeper.Sleep(ctx, cfg.SettleDelay) == nil
	joined := s.join(done)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Recovering || !slept {
		s.log.Warn("Recovery interrupted.", zap.Int("recovery", rec.Number), zap.Stringer("phase", s.phase))
		s.finishRecovery(rec)
		return rec, false
	}
	if !joined {
		rec.JoinTimedOut = true
		s.log.Error("Old fishing loop is still running, continuing anyway.", zap.Error(ErrJoinTimeout), zap.Int("recovery", rec.Number))
	}

	s.spawn(s.parent)
	s.phase = Running
	s.setStatus(StatusActive, StyleActive)
	s.log.Info("Recovery complete.", observability.Important, zap.Int("recovery", rec.Number))
	s.finishRecovery(rec)
	return rec, true
}

func (s *Supervisor) finishRecovery(rec Record) {
	s.records = append(s.records, rec)
	if s.notifier != nil {
		s.notifier.SendRecovery(rec)
	}
}

// Watch polls the watchdog until ctx ends and recovers the loop when it
// reports a finding.
func (s *Supervisor) Watch(ctx context.Context) error {
	interval := s.store.Get().Recovery.PollInterval
	_, err := utils.NewTicker(ctx, interval, func() (bool, error) {
		if !s.store.Get().Recovery.Enabled || s.Phase() != Running {
			return false, nil
		}
		if f, stuck := s.watchdog.Check(); stuck {
			s.Recover(ctx, f)
		}
		return false, nil
	}, false)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
