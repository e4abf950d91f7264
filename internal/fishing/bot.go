package fishing

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/control"
	"gpo-autofish/internal/detector"
	"gpo-autofish/internal/game"
	"gpo-autofish/internal/observability"
	"gpo-autofish/internal/pkg/script"
	"gpo-autofish/internal/pkg/sleeper"
	"gpo-autofish/internal/pkg/utils"
	"gpo-autofish/internal/state"
)

// Input is the actuator as seen by the loop.
type Input interface {
	script.Input
	Press()
	Release()
	Hold(ctx context.Context, d time.Duration) error
}

type Notifier interface {
	SendPurchase(amount int)
	SendProgress(count int)
}

type Options struct {
	Store      *config.Store
	Sampler    game.Sampler
	Scanner    detector.Scanner
	Controller *control.Controller
	Input      Input
	Machine    *state.Machine
	Notifier   Notifier
	Status     StatusSink
	Now        func() time.Time
	Log        *zap.Logger
}

// Bot is the fishing loop. A Bot outlives its Run calls: counters and the
// controller's memory survive pauses and recoveries.
type Bot struct {
	store      *config.Store
	sampler    game.Sampler
	scanner    detector.Scanner
	controller *control.Controller
	input      Input
	machine    *state.Machine
	notifier   Notifier
	script     script.Script
	now        func() time.Time
	log        *zap.Logger

	fish          atomic.Int64
	sinceProgress atomic.Int64
	sincePurchase atomic.Int64
}

func NewBot(opts Options) *Bot {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	b := &Bot{
		store:      opts.Store,
		sampler:    opts.Sampler,
		scanner:    opts.Scanner,
		controller: opts.Controller,
		input:      opts.Input,
		machine:    opts.Machine,
		notifier:   opts.Notifier,
		script:     script.NewDefaultScript(opts.Input, opts.Log),
		now:        now,
		log:        opts.Log,
	}
	if opts.Status != nil {
		status := opts.Status
		b.machine.Subscribe(func(s state.Snapshot) {
			status.UpdateStatus(s.Kind.DisplayName(), StyleFor(s.Kind))
		})
	}
	return b
}

// FishCount is the number of fish caught since the last fresh start.
func (b *Bot) FishCount() int64 {
	return b.fish.Load()
}

// Prepare resets the session counters. It refuses a start when auto
// purchase is on but not every purchase point is calibrated.
func (b *Bot) Prepare() error {
	cfg := b.store.Get()
	if cfg.Purchase.Enabled {
		if missing := cfg.Purchase.MissingPoints(); len(missing) > 0 {
			return fmt.Errorf("%w: set point(s) %v before starting auto purchase", ErrPointsMissing, missing)
		}
	}
	b.fish.Store(0)
	b.sinceProgress.Store(0)
	b.sincePurchase.Store(0)
	return nil
}

// Run casts, tracks and reels until ctx ends. Errors of a single cast are
// logged and the loop starts over after a backoff.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("Fishing loop started.")
	defer func() {
		b.input.Release()
		b.log.Info("Fishing loop stopped.")
	}()

	b.machine.Reset(state.IdleDetails{Action: state.ActionLoopStart})
	if b.store.Get().Purchase.Enabled {
		if err := b.purchase(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	for ctx.Err() == nil {
		err := b.iterate(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		b.log.Error("Fishing loop error.", zap.Error(err))
		b.input.Release()
		b.machine.Reset(state.IdleDetails{Action: state.ActionErrorRecovery, Error: err.Error()})
		if sleeper.Sleep(ctx, b.store.Get().Timing.ErrorBackoff) != nil {
			break
		}
	}
	return ctx.Err()
}

// iterate is one cast, detect and react cycle.
func (b *Bot) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in fishing cycle: %v", r)
		}
	}()

	cfg := b.store.Get()
	if err := b.machine.Enter(state.CastingDetails{Action: "initial_cast"}); err != nil {
		return err
	}
	if err := b.cast(ctx, cfg); err != nil {
		return err
	}
	castAt := b.now()

	if err := b.machine.Enter(state.FishingDetails{Action: "blue_bar_detection", ScanTimeout: cfg.Timing.ScanTimeout}); err != nil {
		return err
	}
	if err := b.detect(ctx, castAt); err != nil {
		return err
	}
	return b.machine.Enter(state.IdleDetails{Action: state.ActionLoopComplete})
}

func (b *Bot) cast(ctx context.Context, cfg *config.Config) error {
	b.log.Debug("Casting line.")
	if err := b.input.Hold(ctx, cfg.Timing.CastHold); err != nil {
		return err
	}
	b.log.Debug("Line cast.")
	return nil
}

func palette(c config.DetectorConfig) detector.Palette {
	return detector.Palette{
		Indicator: c.Indicator.RGBA(),
		Dark:      c.Dark.RGBA(),
		Marker:    c.Marker.RGBA(),
	}
}

// detect runs the detection phase of one cast. It returns nil when the
// phase ended normally: fish caught, recast needed or forced timeout.
func (b *Bot) detect(ctx context.Context, castAt time.Time) error {
	start := b.now()
	detected := false
	tracking := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := b.store.Get()
		timing := cfg.Timing

		if b.now().Sub(start) > timing.ForceTimeout() {
			b.log.Warn("Detection exceeded its time limit, breaking.", zap.Duration("limit", timing.ForceTimeout()))
			return b.machine.Enter(state.IdleDetails{Action: state.ActionForceTimeout})
		}

		frame, err := b.sampler.Capture(cfg.Region.Rect())
		if err != nil {
			b.log.Debug("Capture failed.", zap.Error(err))
			if err := sleeper.Sleep(ctx, timing.RetryDelay); err != nil {
				return err
			}
			continue
		}

		m, err := detector.NewAnalyzer(b.scanner, palette(cfg.Detector)).Analyze(frame)
		switch {
		case errors.Is(err, detector.ErrNoIndicator):
			if !detected && b.now().Sub(castAt) > timing.ScanTimeout {
				b.log.Info("Nothing bit, recasting.", zap.Duration("timeout", timing.ScanTimeout))
				return b.machine.Enter(state.CastingDetails{Action: "recast_after_timeout", Timeout: timing.ScanTimeout})
			}
			if tracking {
				return b.caught(ctx, cfg)
			}
			if err := sleeper.Sleep(ctx, timing.ScanInterval); err != nil {
				return err
			}
			continue
		case err != nil:
			detected = true
			b.log.Debug("Frame not measurable.", zap.Error(err))
			if err := sleeper.Sleep(ctx, timing.RetryDelay); err != nil {
				return err
			}
			continue
		}

		detected = true
		if !tracking {
			tracking = true
			if err := b.machine.Enter(state.IdleDetails{Action: state.ActionFishDetected}); err != nil {
				return err
			}
			at := utils.ToGlobalPoint(cfg.Region.Rect().Min, image.Pt(m.Area.Min.X, m.Target.Middle))
			b.log.Debug("Fish detected.", zap.Stringer("at", at))
		}
		b.react(cfg, m)

		if err := sleeper.Sleep(ctx, timing.ScanInterval); err != nil {
			return err
		}
	}
}

// react runs the controller on m and holds or releases the button.
func (b *Bot) react(cfg *config.Config, m detector.Measurement) {
	gains := control.Gains{Kp: cfg.Control.Kp, Kd: cfg.Control.Kd}
	out := b.controller.Update(gains, m.MeasuredY(), m.TargetY(), m.Height())
	b.log.Debug("Tracking.",
		zap.Int("marker_y", m.TargetY()),
		zap.Int("fish_y", m.MeasuredY()),
		zap.Float64("error_px", out.RawError),
		zap.Float64("error", out.Error),
		zap.Float64("output", out.Value))

	if out.Press() {
		b.input.Press()
	} else {
		b.input.Release()
	}
}

// caught handles the loss of a tracked fish.
func (b *Bot) caught(ctx context.Context, cfg *config.Config) error {
	b.input.Release()
	b.log.Debug("Lost detection, waiting.")
	if err := sleeper.Sleep(ctx, cfg.Timing.WaitAfterLoss); err != nil {
		return err
	}

	count := b.fish.Add(1)
	b.machine.Touch()
	b.log.Info("Fish caught.", observability.Important, zap.Int64("count", count))
	if every := cfg.Webhook.ProgressInterval; every > 0 && b.sinceProgress.Add(1) >= int64(every) {
		b.sinceProgress.Store(0)
		b.notifier.SendProgress(int(count))
	}

	if cfg.Purchase.Enabled {
		n := b.sincePurchase.Add(1)
		need := int64(max(1, cfg.Purchase.LoopsPerPurchase))
		b.log.Debug("Purchase counter.", zap.Int64("counter", n), zap.Int64("needed", need))
		if n >= need {
			err := b.purchase(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				b.log.Error("Auto purchase failed.", zap.Error(err))
			}
			b.sincePurchase.Store(0)
		}
	}
	return b.machine.Enter(state.IdleDetails{Action: state.ActionFishCaught})
}
