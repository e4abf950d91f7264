package tray

import (
	"context"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"gpo-autofish/internal/pkg/utils"
)

// Tray shows the bot's status in the system tray and offers Start/Pause
// and Quit. It implements the status sinks of the loop and the supervisor.
type Tray struct {
	log     *zap.Logger
	toggle  func()
	quit    func()
	runtime func() time.Duration
	ctx     context.Context

	mu         sync.Mutex
	ready      bool
	status     string
	style      string
	statusItem *systray.MenuItem
}

func New(log *zap.Logger, toggle, quit func()) *Tray {
	return &Tray{log: log, toggle: toggle, quit: quit, status: "Stopped", style: "default"}
}

// TrackRuntime shows fn's value in the menu, refreshed every second. Call
// it before Run.
func (t *Tray) TrackRuntime(fn func() time.Duration) {
	t.runtime = fn
}

// Run blocks until ctx ends or Quit is clicked.
func (t *Tray) Run(ctx context.Context) error {
	t.ctx = ctx
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			systray.Quit()
		case <-stop:
		}
	}()

	systray.Run(t.onReady, func() {
		t.mu.Lock()
		t.ready = false
		t.mu.Unlock()
		t.log.Info("System tray closed.")
	})
	return nil
}

func (t *Tray) onReady() {
	systray.SetTitle("Autofish")
	systray.SetTooltip("GPO Autofish")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem(label(t.status), "Current status")
	t.statusItem.Disable()
	t.ready = true
	t.mu.Unlock()

	if t.runtime != nil {
		runtimeItem := systray.AddMenuItem(runtimeLabel(0), "Time spent fishing this session")
		runtimeItem.Disable()
		go utils.NewTicker(t.ctx, time.Second, func() (bool, error) {
			runtimeItem.SetTitle(runtimeLabel(t.runtime()))
			return false, nil
		}, false)
	}

	systray.AddSeparator()
	toggleItem := systray.AddMenuItem("Start / Pause", "Start, pause or resume fishing")
	quitItem := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-toggleItem.ClickedCh:
				t.toggle()
			case <-quitItem.ClickedCh:
				t.log.Info("Quit requested from the tray.")
				t.quit()
				systray.Quit()
				return
			}
		}
	}()
	t.log.Info("System tray initialized.")
}

func label(status string) string {
	return "Status: " + status
}

func runtimeLabel(d time.Duration) string {
	return "Runtime: " + d.Truncate(time.Second).String()
}

func (t *Tray) UpdateStatus(name, style string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = name
	t.style = style
	if t.ready {
		t.statusItem.SetTitle(label(name))
		systray.SetTooltip("GPO Autofish: " + name)
	}
}

// Status returns the last status shown and its style.
func (t *Tray) Status() (string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.style
}
