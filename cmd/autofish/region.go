package main

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/game"
	"gpo-autofish/internal/listener"
	"gpo-autofish/internal/pkg/utils"
)

func newRegionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "region",
		Short: "Set the capture region around the fishing bar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := listener.New(a.cfg.Hotkeys, a.log.Named("listener"))
			return a.region(cmd.Context(), cmd.OutOrStdout(), keys, game.Location)
		},
	}
}

type keySource interface {
	WaitKey(ctx context.Context, key string) error
}

func (a *app) region(ctx context.Context, out io.Writer, src keySource, cursor func() (int, int)) error {
	var corners [2]image.Point
	for i, name := range []string{"top-left", "bottom-right"} {
		fmt.Fprintf(out, "Move the cursor to the %s corner of the bar and press Enter.\n", name)
		if err := src.WaitKey(ctx, "enter"); err != nil {
			return fmt.Errorf("region: %w", err)
		}
		x, y := cursor()
		corners[i] = image.Pt(x, y)
		fmt.Fprintf(out, "Corner set to (%d, %d).\n", x, y)
	}

	rect := utils.NormalizeRect(corners[0], corners[1])
	if rect.Empty() {
		return fmt.Errorf("region: %v is empty", rect)
	}
	r := config.RegionConfig{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}
	if err := config.SaveRegion(a.viper, a.configFile, r); err != nil {
		return err
	}
	a.log.Info("Capture region saved.", zap.String("file", a.configFile), zap.Stringer("region", rect))
	return nil
}
