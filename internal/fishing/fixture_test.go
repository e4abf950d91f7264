package fishing

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gpo-autofish/internal/actuator"
	"gpo-autofish/internal/config"
	"gpo-autofish/internal/control"
	"gpo-autofish/internal/detector"
	"gpo-autofish/internal/state"
)

var (
	background = color.RGBA{R: 60, G: 90, B: 120, A: 255}
	indicator  = color.RGBA{R: 85, G: 170, B: 255, A: 255}
	dark       = color.RGBA{R: 25, G: 25, B: 25, A: 255}
	marker     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func fill(frame *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(frame, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func emptyFrame() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, 40, 120))
	fill(frame, frame.Bounds(), background)
	return frame
}

// indicatorOnly shows the bar frame without its dark band.
func indicatorOnly() *image.RGBA {
	frame := emptyFrame()
	fill(frame, image.Rect(10, 5, 30, 6), indicator)
	return frame
}

// barFrame draws a bar whose measurement area spans rows 10..109 (height
// 100), with the marker starting at row 30 and the fish at fishTop.
func barFrame(fishTop, fishSize int) *image.RGBA {
	frame := indicatorOnly()
	fill(frame, image.Rect(10, 10, 30, 11), dark)
	fill(frame, image.Rect(10, 109, 30, 110), dark)
	fill(frame, image.Rect(12, 30, 28, 34), marker)
	fill(frame, image.Rect(14, fishTop, 26, fishTop+fishSize), dark)
	return frame
}

type scriptedSampler struct {
	mu    sync.Mutex
	calls int
	next  func(call int) (*image.RGBA, error)
}

func (s *scriptedSampler) Capture(image.Rectangle) (*image.RGBA, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	return s.next(n)
}

var errScriptDone = errors.New("script done")

type recordingDriver struct {
	mu     sync.Mutex
	events []string
	onType func()
}

func (d *recordingDriver) record(e string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDriver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *recordingDriver) Move(x, y int) error {
	d.record(fmt.Sprintf("move %d,%d", x, y))
	return nil
}

func (d *recordingDriver) Toggle(button string, down bool) error {
	if down {
		d.record(button + " down")
	} else {
		d.record(button + " up")
	}
	return nil
}

func (d *recordingDriver) KeyTap(key string) error {
	d.record("tap " + key)
	return nil
}

func (d *recordingDriver) Type(text string) error {
	d.record("type " + text)
	if d.onType != nil {
		d.onType()
	}
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	purchases []int
	progress  []int
}

func (n *recordingNotifier) SendPurchase(amount int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purchases = append(n.purchases, amount)
}

func (n *recordingNotifier) SendProgress(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, count)
}

type fixture struct {
	bot      *Bot
	driver   *recordingDriver
	mouse    *actuator.Mouse
	machine  *state.Machine
	notifier *recordingNotifier
	store    *config.Store
	sampler  *scriptedSampler
	details  []state.Details
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	cfg.Timing = config.TimingConfig{
		ScanTimeout:        time.Second,
		WaitAfterLoss:      time.Millisecond,
		ScanInterval:       time.Millisecond,
		RetryDelay:         time.Millisecond,
		ErrorBackoff:       time.Millisecond,
		CastHold:           time.Millisecond,
		ForceTimeoutMargin: time.Second,
	}
	cfg.Purchase.DelayAfterKey = 0
	cfg.Purchase.ClickDelay = 0
	cfg.Purchase.AfterTypeDelay = 0
	cfg.Webhook.ProgressInterval = 1
	return cfg
}

func withPoints(cfg *config.Config) {
	cfg.Purchase.Points = map[string]config.Point{
		"1": {X: 10, Y: 11},
		"2": {X: 20, Y: 21},
		"3": {X: 30, Y: 31},
		"4": {X: 40, Y: 41},
	}
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	f := &fixture{
		driver:   &recordingDriver{},
		notifier: &recordingNotifier{},
		store:    config.NewStore(cfg),
		sampler:  &scriptedSampler{},
		machine:  state.NewMachine(zap.NewNop(), nil),
	}
	f.mouse = actuator.NewMouse(f.driver, 0, zap.NewNop())
	f.mouse.OnActivity(f.machine.Touch)
	f.machine.Subscribe(func(s state.Snapshot) { f.details = append(f.details, s.Details) })
	f.bot = NewBot(Options{
		Store:      f.store,
		Sampler:    f.sampler,
		Scanner:    detector.NewPixelScanner(),
		Controller: control.NewController(),
		Input:      f.mouse,
		Machine:    f.machine,
		Notifier:   f.notifier,
		Status:     LogStatus{Log: zap.NewNop()},
		Log:        zap.NewNop(),
	})
	return f
}

func (f *fixture) kinds() []state.Kind {
	out := make([]state.Kind, len(f.details))
	for i, d := range f.details {
		out[i] = d.Kind()
	}
	return out
}

func (f *fixture) saw(d state.Details) bool {
	for _, seen := range f.details {
		if seen == d {
			return true
		}
	}
	return false
}
