package listener

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	hook "github.com/robotn/gohook"
	"go.uber.org/zap"

	"gpo-autofish/internal/config"
)

var (
	ErrExitRequested = errors.New("exit hotkey pressed")
	ErrBusy          = errors.New("listener already running")
	ErrHookClosed    = errors.New("input hook closed")
)

// Listener turns global hotkeys into loop commands. The input hook is
// process wide, so only one Listen or capture can run at a time.
type Listener struct {
	state  int32
	toggle string
	exit   string
	log    *zap.Logger
}

const (
	stateReady int32 = iota
	stateRunning
)

func New(cfg config.HotkeysConfig, log *zap.Logger) *Listener {
	return &Listener{toggle: cfg.ToggleLoop, exit: cfg.Exit, log: log}
}

func (l *Listener) acquire() bool {
	return atomic.CompareAndSwapInt32(&l.state, stateReady, stateRunning)
}

func (l *Listener) release() {
	hook.End()
	atomic.StoreInt32(&l.state, stateReady)
}

// Listen calls onToggle for every toggle hotkey press until ctx ends or the
// exit hotkey is pressed, in which case it returns ErrExitRequested.
func (l *Listener) Listen(ctx context.Context, onToggle func()) error {
	if !l.acquire() {
		return ErrBusy
	}
	defer l.release()

	exit := make(chan struct{})
	var once sync.Once

	hook.Register(hook.KeyDown, []string{l.toggle}, func(hook.Event) {
		l.log.Info("Toggle hotkey pressed.", zap.String("key", l.toggle))
		onToggle()
	})
	hook.Register(hook.KeyDown, []string{l.exit}, func(hook.Event) {
		l.log.Info("Exit hotkey pressed.", zap.String("key", l.exit))
		once.Do(func() { close(exit) })
	})

	l.log.Info("Hotkeys loaded.", zap.String("toggle", l.toggle), zap.String("exit", l.exit))
	events := hook.Start()
	go func() {
		<-hook.Process(events)
		l.log.Debug("Hotkeys unloaded.")
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-exit:
		return ErrExitRequested
	}
}

// CaptureClicks returns the positions of the next n left clicks.
func (l *Listener) CaptureClicks(ctx context.Context, n int, onClick func(i int, p image.Point)) ([]image.Point, error) {
	if !l.acquire() {
		return nil, ErrBusy
	}
	defer l.release()

	left := hook.MouseMap["left"]
	points := make([]image.Point, 0, n)
	events := hook.Start()
	for len(points) < n {
		select {
		case <-ctx.Done():
			return points, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return points, ErrHookClosed
			}
			if ev.Kind != hook.MouseDown || ev.Button != left {
				continue
			}
			p := image.Pt(int(ev.X), int(ev.Y))
			points = append(points, p)
			if onClick != nil {
				onClick(len(points), p)
			}
		}
	}
	return points, nil
}

// WaitKey blocks until key is pressed.
func (l *Listener) WaitKey(ctx context.Context, key string) error {
	code, ok := hook.Keycode[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	if !l.acquire() {
		return ErrBusy
	}
	defer l.release()

	events := hook.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrHookClosed
			}
			if ev.Kind == hook.KeyDown && ev.Keycode == code {
				return nil
			}
		}
	}
}
