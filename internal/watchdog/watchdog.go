package watchdog

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/state"
)

// defaultLimit applies to kinds without a configured limit.
const defaultLimit = 60 * time.Second

// keepStuck is how many stuck findings are carried into a Recovery Record.
const keepStuck = 3

type Reason string

const (
	ReasonStuckState Reason = "stuck_state"
	ReasonInactivity Reason = "inactivity"
)

// Finding describes why the loop is considered stuck.
type Finding struct {
	Reason     Reason        `json:"reason"`
	State      state.Kind    `json:"state"`
	Duration   time.Duration `json:"duration"`
	MaxAllowed time.Duration `json:"max_allowed"`
	Details    state.Details `json:"details"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Watchdog decides whether the fishing loop has stalled. It only reads the
// state machine; acting on a finding is the Supervisor's job.
type Watchdog struct {
	store   *config.Store
	machine *state.Machine
	now     func() time.Time
	log     *zap.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
	stuck   []Finding
}

// New creates a watchdog whose first check is allowed one check interval
// after construction.
func New(store *config.Store, machine *state.Machine, log *zap.Logger, now func() time.Time) *Watchdog {
	if now == nil {
		now = time.Now
	}
	interval := store.Get().Recovery.CheckInterval
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.AllowN(now(), 1)
	return &Watchdog{
		store:   store,
		machine: machine,
		now:     now,
		log:     log,
		limiter: limiter,
	}
}

// Limit returns the maximum dwell time of kind. Idle is capped at the
// configured idle limit.
func Limit(cfg config.RecoveryConfig, kind state.Kind) time.Duration {
	limit, ok := cfg.Limits[kind.String()]
	if !ok || limit <= 0 {
		limit = defaultLimit
	}
	if kind == state.Idle && cfg.IdleLimit > 0 && limit > cfg.IdleLimit {
		limit = cfg.IdleLimit
	}
	return limit
}

// Check samples the state machine, at most once per check interval. A
// state is stuck only when its dwell time is strictly above its limit.
func (w *Watchdog) Check() (Finding, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if !w.limiter.AllowN(now, 1) {
		return Finding{}, false
	}

	cfg := w.store.Get().Recovery
	snap := w.machine.Snapshot()

	dwell := snap.Dwell(now)
	limit := Limit(cfg, snap.Kind)
	if dwell > limit {
		f := Finding{
			Reason:     ReasonStuckState,
			State:      snap.Kind,
			Duration:   dwell,
			MaxAllowed: limit,
			Details:    snap.Details,
			Timestamp:  now,
		}
		w.stuck = append(w.stuck, f)
		if len(w.stuck) > keepStuck {
			w.stuck = w.stuck[len(w.stuck)-keepStuck:]
		}
		w.log.Error("State is stuck.", zap.Stringer("state", snap.Kind), zap.Duration("duration", dwell), zap.Duration("max_allowed", limit))
		w.log.Debug("Stuck state details.", zap.Any("finding", f))
		return f, true
	}

	idle := snap.Idle(now)
	if idle > cfg.InactivityTimeout {
		w.log.Error("No activity.", zap.Duration("duration", idle))
		return Finding{
			Reason:     ReasonInactivity,
			State:      snap.Kind,
			Duration:   idle,
			MaxAllowed: cfg.InactivityTimeout,
			Details:    snap.Details,
			Timestamp:  now,
		}, true
	}
	return Finding{}, false
}

// RecentStuck returns a copy of the retained stuck findings, oldest first.
func (w *Watchdog) RecentStuck() []Finding {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Finding(nil), w.stuck...)
}

func (w *Watchdog) ClearStuck() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stuck = nil
}
