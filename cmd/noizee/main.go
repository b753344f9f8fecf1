package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/liuscraft/noizee/internal/config"
	"github.com/liuscraft/noizee/internal/logging"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "noizee",
		Short:   "Ambient soundscape mixer",
		Long:    "noizee plays looping ambient sounds side by side, each with its own volume, and pauses or resumes them together from the keyboard or the desktop media keys.",
		Version: appVersion(),
		SubCmds: []*cobra.Command{
			runCmd(),
			listCmd(),
			devicesCmd(),
			toneCmd(),
		},
	}.Run()
}

// loadConfig loads the config file and initializes logging. When logFile is
// set and the config names no output, logs go there instead of stderr.
func loadConfig(path, logFile string) *config.AppConfig {
	cfg, err := config.Load(path)
	if err != nil {
		// no config means no logging settings yet
		if initErr := logging.InitFromEnv(); initErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logging.Errorf("Failed to load config %s: %v", path, err)
		logging.Sync()
		os.Exit(1)
	}

	output := cfg.Logging.Output
	if strings.TrimSpace(output) == "" {
		output = logFile
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-(no build info)"
	}
	if bi.Main.Version == "" {
		return "unknown-(no version)"
	}
	return bi.Main.Version
}
