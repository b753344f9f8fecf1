package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/liuscraft/noizee/internal/manifest"
)

type ListParams struct {
	Config   string `short:"c" optional:"true" help:"Config file (.json, .yaml or .toml)." default:"config/noizee.json"`
	Manifest string `short:"m" optional:"true" help:"Manifest path or URL, overrides manifest.source."`
}

func listCmd() *cobra.Command {
	return boa.CmdT[ListParams]{
		Use:   "list",
		Short: "Print the sounds in the manifest",
		RunFunc: func(params *ListParams, cmd *cobra.Command, args []string) {
			cfg := loadConfig(params.Config, "")
			source := cfg.Manifest.Source
			if params.Manifest != "" {
				source = params.Manifest
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			clips, err := manifest.Fetch(ctx, source)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read manifest %s: %v\n", source, err)
				os.Exit(1)
			}

			renderClips(os.Stdout, cfg.Manifest.AssetsDir, clips)
		},
	}.ToCobra()
}

func renderClips(w io.Writer, assetsDir string, clips []manifest.Clip) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "ID", "Name", "Icon", "Sound"})
	for i, clip := range clips {
		t.AppendRow(table.Row{
			i + 1,
			clip.ID,
			clip.DisplayName,
			manifest.IconPath(assetsDir, clip),
			soundState(assetsDir, clip),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d sounds", len(clips))})
	t.Render()
}

func soundState(assetsDir string, clip manifest.Clip) string {
	path := manifest.SoundPath(assetsDir, clip)
	if _, err := os.Stat(path); err != nil {
		return text.FgHiRed.Sprint("missing")
	}
	return text.FgGreen.Sprint(path)
}
