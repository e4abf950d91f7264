package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gpo-autofish/internal/actuator"
	"gpo-autofish/internal/config"
	"gpo-autofish/internal/control"
	"gpo-autofish/internal/detector"
	"gpo-autofish/internal/detector/cvscan"
	"gpo-autofish/internal/fishing"
	"gpo-autofish/internal/game"
	"gpo-autofish/internal/listener"
	"gpo-autofish/internal/notify"
	"gpo-autofish/internal/state"
	"gpo-autofish/internal/tray"
	"gpo-autofish/internal/watchdog"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Wait for the hotkeys and fish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newScanner(backend string) (detector.Scanner, error) {
	switch backend {
	case "pixel", "":
		return detector.NewPixelScanner(), nil
	case "gocv":
		return cvscan.NewMatScanner(), nil
	}
	return nil, fmt.Errorf("unknown detector backend %q", backend)
}

func printNotice(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Before you start:")
	fmt.Fprintln(out, "- Run the game windowed and keep it in front while fishing.")
	fmt.Fprintln(out, "- Set the capture region with `autofish region` if the bar is not found.")
	if cfg.Purchase.Enabled {
		fmt.Fprintln(out, "- Auto purchase is on. Calibrate its points with `autofish calibrate`.")
	}
	fmt.Fprintf(out, "Press %s to start, pause or resume. Press %s to exit.\n\n",
		cfg.Hotkeys.ToggleLoop, cfg.Hotkeys.Exit)
}

// run builds the bot and serves the hotkeys until the exit hotkey, the tray's
// Quit or ctx ends it.
func (a *app) run(ctx context.Context, out io.Writer) error {
	cfg, log := a.cfg, a.log
	printNotice(out, cfg)

	sampler, err := game.NewSampler(cfg.Capture.Backend)
	if err != nil {
		return err
	}
	scanner, err := newScanner(cfg.Detector.Backend)
	if err != nil {
		return err
	}

	g := game.NewGame(cfg.Game.WindowTitle, log.Named("game"))
	g.Initialize()

	store := config.NewStore(cfg)
	machine := state.NewMachine(log.Named("state"), time.Now)
	mouse := actuator.NewMouse(game.RobotDriver{}, cfg.Timing.ClickSettle, log.Named("actuator"))
	mouse.OnActivity(machine.Touch)

	notifier := notify.New(cfg.Webhook, log.Named("notify"))
	defer notifier.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sup *watchdog.Supervisor
	toggle := func() {
		if err := sup.Toggle(ctx); err != nil {
			log.Warn("Toggle refused.", zap.Stringer("phase", sup.Phase()), zap.Error(err))
			return
		}
		log.Debug("Toggled.", zap.Stringer("phase", sup.Phase()), zap.String("session", sup.Session()))
	}

	status := fishing.MultiStatus{fishing.LogStatus{Log: log.Named("status")}}
	var tr *tray.Tray
	if cfg.Tray.Enabled {
		tr = tray.New(log.Named("tray"), toggle, cancel)
		status = append(status, tr)
	}

	bot := fishing.NewBot(fishing.Options{
		Store:      store,
		Sampler:    sampler,
		Scanner:    scanner,
		Controller: control.NewController(),
		Input:      mouse,
		Machine:    machine,
		Notifier:   notifier,
		Status:     status,
		Log:        log.Named("fishing"),
	})
	sup = watchdog.NewSupervisor(watchdog.Options{
		Worker:   bot,
		Mouse:    mouse,
		Machine:  machine,
		Watchdog: watchdog.New(store, machine, log.Named("watchdog"), time.Now),
		Notifier: notifier,
		Status:   status,
		Store:    store,
		Log:      log.Named("supervisor"),
	})
	if tr != nil {
		tr.TrackRuntime(sup.Runtime)
	}
	defer func() {
		sup.Stop()
		game.ReleaseAllKeys()
		log.Info("Session finished.", zap.Int64("fish", bot.FishCount()), zap.Int("recoveries", len(sup.Records())))
	}()

	keys := listener.New(cfg.Hotkeys, log.Named("listener"))
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return sup.Watch(gctx) })
	grp.Go(func() error { return keys.Listen(gctx, toggle) })
	if tr != nil {
		grp.Go(func() error { return tr.Run(gctx) })
	}

	err = grp.Wait()
	if errors.Is(err, listener.ErrExitRequested) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
