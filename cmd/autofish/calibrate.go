package main

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/listener"
)

var pointHints = [config.PurchasePointCount]string{
	"clicked first, and again to confirm the amount",
	"clicked before typing the amount, and last to buy",
	"clicked after confirming the amount",
	"right clicked to close the menu",
}

func newCalibrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Record the purchase points by clicking them in the game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := listener.New(a.cfg.Hotkeys, a.log.Named("listener"))
			return a.calibrate(cmd.Context(), cmd.OutOrStdout(), keys)
		},
	}
}

// clickSource is the part of the listener calibrate needs.
type clickSource interface {
	CaptureClicks(ctx context.Context, n int, onClick func(i int, p image.Point)) ([]image.Point, error)
}

func (a *app) calibrate(ctx context.Context, out io.Writer, src clickSource) error {
	fmt.Fprintf(out, "Left click the %d purchase points in order.\n", config.PurchasePointCount)
	fmt.Fprintf(out, "Point 1: %s\n", pointHints[0])

	clicks, err := src.CaptureClicks(ctx, config.PurchasePointCount, func(i int, p image.Point) {
		fmt.Fprintf(out, "Point %d set to (%d, %d).\n", i, p.X, p.Y)
		if i < config.PurchasePointCount {
			fmt.Fprintf(out, "Point %d: %s\n", i+1, pointHints[i])
		}
	})
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	points := make([]config.Point, len(clicks))
	for i, p := range clicks {
		points[i] = config.Point{X: p.X, Y: p.Y}
	}
	if err := config.SavePoints(a.viper, a.configFile, points); err != nil {
		return err
	}
	a.log.Info("Purchase points saved.", zap.String("file", a.configFile), zap.Any("points", points))
	return nil
}
