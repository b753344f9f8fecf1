package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/liuscraft/noizee/internal/config"
	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/session"
	"github.com/liuscraft/noizee/internal/ui"
)

type RunParams struct {
	Config   string `short:"c" optional:"true" help:"Config file (.json, .yaml or .toml)." default:"config/noizee.json"`
	Manifest string `short:"m" optional:"true" help:"Manifest path or URL, overrides manifest.source."`
	Driver   string `short:"d" optional:"true" help:"Audio driver: portaudio, speaker or null."`
	LogFile  string `optional:"true" help:"Log file used when the config names no output." default:"noizee.log"`
	Headless bool   `optional:"true" help:"Run without the terminal UI, controlled only through media keys or the remote."`
}

func runCmd() *cobra.Command {
	return boa.CmdT[RunParams]{
		Use:   "run",
		Short: "Start the interactive mixer",
		RunFunc: func(params *RunParams, cmd *cobra.Command, args []string) {
			logFile := params.LogFile
			if params.Headless {
				logFile = ""
			}
			cfg := loadConfig(params.Config, logFile)
			defer logging.Sync()
			applyOverrides(cfg, params)

			if err := run(cfg, params.Headless); err != nil {
				logging.Errorf("noizee: %v", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func applyOverrides(cfg *config.AppConfig, params *RunParams) {
	if params.Manifest != "" {
		cfg.Manifest.Source = params.Manifest
	}
	if params.Driver != "" {
		cfg.Audio.Driver = params.Driver
	}
}

func run(cfg *config.AppConfig, headless bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Infof("========================================")
	logging.Infof("           noizee starting...           ")
	logging.Infof("========================================")

	s, err := session.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Start(ctx); err != nil {
		return err
	}

	if headless {
		<-ctx.Done()
		logging.Infof("Shutting down...")
		return nil
	}
	return ui.Run(ctx, s)
}
