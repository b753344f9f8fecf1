package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/spf13/cobra"

	"github.com/liuscraft/noizee/internal/audio"
	"github.com/liuscraft/noizee/internal/logging"
)

type ToneParams struct {
	Config  string  `short:"c" optional:"true" help:"Config file (.json, .yaml or .toml)." default:"config/noizee.json"`
	Freq    float64 `short:"f" optional:"true" help:"Tone frequency in Hz." default:"440"`
	Seconds float64 `short:"s" optional:"true" help:"Tone duration in seconds." default:"2"`
	Volume  float64 `short:"v" optional:"true" help:"Linear volume in [0,1]." default:"0.3"`
	Driver  string  `short:"d" optional:"true" help:"Audio driver: portaudio, speaker or null."`
}

func toneCmd() *cobra.Command {
	return boa.CmdT[ToneParams]{
		Use:   "tone",
		Short: "Play a sine tone through the configured output to verify audio",
		RunFunc: func(params *ToneParams, cmd *cobra.Command, args []string) {
			cfg := loadConfig(params.Config, "")
			defer logging.Sync()
			driver := cfg.Audio.Driver
			if params.Driver != "" {
				driver = params.Driver
			}

			engine, err := audio.NewEngine(&audio.EngineConfig{
				Driver:     driver,
				SampleRate: cfg.Audio.SampleRate,
				BufferMs:   cfg.Audio.BufferMs,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create audio engine: %v\n", err)
				os.Exit(1)
			}
			defer engine.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			fmt.Printf("Playing %.0f Hz for %.1fs at volume %.2f (%s)...\n", params.Freq, params.Seconds, params.Volume, driver)
			if err := playTone(ctx, engine, params.Freq, time.Duration(params.Seconds*float64(time.Second)), params.Volume); err != nil {
				fmt.Fprintf(os.Stderr, "Tone failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Done.")
		},
	}.ToCobra()
}

func playTone(ctx context.Context, engine *audio.Engine, freq float64, d time.Duration, volume float64) error {
	sr := engine.SampleRate()
	sine, err := generators.SineTone(sr, freq)
	if err != nil {
		return err
	}

	gain := &effects.Volume{Streamer: beep.Take(sr.N(d), sine), Base: 2}
	if v := audio.ClampVolume(volume); v == 0 {
		gain.Silent = true
	} else {
		gain.Volume = math.Log2(v)
	}

	done := make(chan struct{})
	detach := engine.Attach(beep.Seq(gain, beep.Callback(func() { close(done) })))
	defer detach()

	if err := engine.Resume(ctx); err != nil {
		return err
	}

	// the null driver never pulls samples
	timeout := time.NewTimer(d + time.Second)
	defer timeout.Stop()
	select {
	case <-done:
	case <-timeout.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
