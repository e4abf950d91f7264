package actuator

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gpo-autofish/internal/pkg/sleeper"
)

const (
	ButtonLeft  = "left"
	ButtonRight = "right"
)

// Driver is the raw input backend, game.RobotDriver in production.
type Driver interface {
	Move(x, y int) error
	Toggle(button string, down bool) error
	KeyTap(key string) error
	Type(text string) error
}

// Mouse issues input on behalf of the bot. Failures are logged and never
// returned: a missed click is repaired by the loop's own retries. Only
// context cancellation is reported to callers.
type Mouse struct {
	driver Driver
	settle time.Duration
	log    *zap.Logger

	mu       sync.Mutex
	held     atomic.Bool
	activity atomic.Pointer[func()]
}

func NewMouse(driver Driver, settle time.Duration, log *zap.Logger) *Mouse {
	return &Mouse{driver: driver, settle: settle, log: log}
}

// OnActivity registers fn to be called after every input event.
func (m *Mouse) OnActivity(fn func()) {
	m.activity.Store(&fn)
}

func (m *Mouse) touch() {
	if fn := m.activity.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}

// Held reports whether the left button is currently held by the bot.
func (m *Mouse) Held() bool {
	return m.held.Load()
}

// Press holds the left button unless it is already held.
func (m *Mouse) Press() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held.Load() {
		return
	}
	if err := m.driver.Toggle(ButtonLeft, true); err != nil {
		m.log.Error("Press failed.", zap.Error(err))
		return
	}
	m.held.Store(true)
	m.touch()
}

// Release lets go of the left button if the bot holds it.
func (m *Mouse) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held.Load() {
		return
	}
	m.release()
}

// ForceRelease sends a button up regardless of the held flag.
func (m *Mouse) ForceRelease() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *Mouse) release() {
	if err := m.driver.Toggle(ButtonLeft, false); err != nil {
		m.log.Error("Release failed.", zap.Error(err))
	}
	m.held.Store(false)
	m.touch()
}

// Hold presses the left button for d, as used to cast the rod.
func (m *Mouse) Hold(ctx context.Context, d time.Duration) error {
	m.Press()
	err := sleeper.Sleep(ctx, d)
	m.Release()
	return err
}

func (m *Mouse) ClickAt(ctx context.Context, p image.Point) error {
	return m.click(ctx, p, ButtonLeft)
}

func (m *Mouse) RightClickAt(ctx context.Context, p image.Point) error {
	return m.click(ctx, p, ButtonRight)
}

// click moves, settles, presses, settles and releases. Once the button is
// down it is always released, even when ctx ends in between.
func (m *Mouse) click(ctx context.Context, p image.Point, button string) error {
	if err := m.driver.Move(p.X, p.Y); err != nil {
		m.log.Error("Move failed.", zap.Stringer("point", p), zap.Error(err))
	}
	m.touch()
	if err := sleeper.Sleep(ctx, m.settle); err != nil {
		return err
	}

	if err := m.driver.Toggle(button, true); err != nil {
		m.log.Error("Click failed.", zap.String("button", button), zap.Stringer("point", p), zap.Error(err))
		return nil
	}
	err := sleeper.Sleep(ctx, m.settle)
	if uerr := m.driver.Toggle(button, false); uerr != nil {
		m.log.Error("Click release failed.", zap.String("button", button), zap.Error(uerr))
	}
	m.touch()
	return err
}

func (m *Mouse) KeyTap(key string) {
	if err := m.driver.KeyTap(key); err != nil {
		m.log.Error("Key tap failed.", zap.String("key", key), zap.Error(err))
		return
	}
	m.touch()
}

func (m *Mouse) Type(text string) {
	if err := m.driver.Type(text); err != nil {
		m.log.Error("Typing failed.", zap.Error(err))
		return
	}
	m.touch()
}
