package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// Snapshot is a consistent copy of the machine.
type Snapshot struct {
	Kind         Kind
	Details      Details
	EnteredAt    time.Time
	LastActivity time.Time
}

// Dwell is how long the current state has been held at now.
func (s Snapshot) Dwell(now time.Time) time.Duration {
	return now.Sub(s.EnteredAt)
}

// Idle is how long no transition or input happened at now.
func (s Snapshot) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// Machine holds the operational state. The worker writes it, the watchdog
// and the UI read it.
type Machine struct {
	mu        sync.Mutex
	now       func() time.Time
	current   Snapshot
	listeners []func(Snapshot)
	log       *zap.Logger
}

// NewMachine starts in idle. now defaults to time.Now.
func NewMachine(log *zap.Logger, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Machine{
		now: now,
		log: log,
		current: Snapshot{
			Kind:         Idle,
			Details:      IdleDetails{},
			EnteredAt:    t,
			LastActivity: t,
		},
	}
}

// Subscribe registers fn for every state change. fn runs on the writer's
// goroutine and must not block.
func (m *Machine) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Enter moves to d.Kind() if the transition table allows it. Re-entering
// the current kind restarts its dwell timer.
func (m *Machine) Enter(d Details) error {
	m.mu.Lock()
	from := m.current.Kind
	if !CanTransition(from, d.Kind()) {
		m.mu.Unlock()
		m.log.Warn("Rejected state transition.", zap.Stringer("from", from), zap.Stringer("to", d.Kind()))
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, d.Kind())
	}
	snap, listeners := m.set(d)
	m.mu.Unlock()

	m.log.Debug("State changed.", zap.Stringer("from", from), zap.Stringer("to", snap.Kind), zap.Any("details", d))
	notify(listeners, snap)
	return nil
}

// Reset forces the machine into d regardless of the transition table.
func (m *Machine) Reset(d Details) {
	m.mu.Lock()
	snap, listeners := m.set(d)
	m.mu.Unlock()

	m.log.Debug("State reset.", zap.Stringer("to", snap.Kind), zap.Any("details", d))
	notify(listeners, snap)
}

func (m *Machine) set(d Details) (Snapshot, []func(Snapshot)) {
	t := m.now()
	m.current = Snapshot{Kind: d.Kind(), Details: d, EnteredAt: t, LastActivity: t}
	return m.current, m.listeners
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}

// Touch records input activity without changing the state.
func (m *Machine) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.LastActivity = m.now()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
