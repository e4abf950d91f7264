package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/observability"
	"gpo-autofish/internal/pkg/paths"
)

// app carries what PersistentPreRunE prepares for the subcommands.
type app struct {
	configFile string
	viper      *viper.Viper
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{viper: viper.New()}

	root := &cobra.Command{
		Use:          "autofish",
		Short:        "Autofish plays the GPO fishing minigame for you.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "settings file (default ./"+paths.ConfigFileName+")")
	flags.Bool("tray", false, "show the status in the system tray")
	flags.BoolP("verbose", "v", false, "log debug output")
	a.viper.BindPFlag("tray.enabled", flags.Lookup("tray"))
	a.viper.BindPFlag("logger.verbose", flags.Lookup("verbose"))

	root.AddCommand(newRunCmd(a), newCalibrateCmd(a), newRegionCmd(a))
	return root, a
}

func (a *app) load() error {
	if a.configFile == "" {
		a.configFile = paths.ConfigFile()
	}
	cfg, err := config.Load(a.viper, a.configFile)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "autofish"})
		return fmt.Errorf("load settings: %w", err)
	}
	observability.InitializeLogger(cfg.Logger)

	a.cfg = cfg
	a.log = observability.GetLogger()
	a.log.Debug("Settings loaded.", zap.String("file", a.configFile))
	return nil
}
