package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"shortscraper/internal/runner"
	"shortscraper/pkg/config"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shortscraper",
	Short: "Collect short-video metadata with several browser sessions at once",
	Long: `shortscraper drives one browser window per pre-authenticated profile through
a short-video feed, collecting each item's metadata into a shared CSV file.

Features:
  - One isolated worker per browser profile, tiled on screen
  - Randomized human pacing between actions
  - Fallback navigation when the next button is missing
  - Global de-duplication across every worker
  - Spooling of batches the output could not accept
  - Live dashboard and desktop notifications`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Out = io.Discard
		}
		if verbose && logLevel == "info" {
			logLevel = "debug"
		}

		switch cmd.Name() {
		case "version", "help", "completion":
		default:
			if verbose {
				ui.PrintLogo()
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(runner.ExitMisconfig)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.shortscraper.yaml or ~/.config/shortscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show the logo, debug logs and one line per event")

	rootCmd.SetVersionTemplate(`shortscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration from every source, with flags on top
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	return config.Load(configFile, flags)
}

// initLogger installs the global logger; console output goes to w
func initLogger(cfg *config.Config, w io.Writer) error {
	if quiet && cfg.Logging.Level != "debug" {
		cfg.Logging.Level = "error"
	}
	l, err := logger.NewWithWriter(&cfg.Logging, w)
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	return nil
}

// fail prints msg and exits with the misconfiguration code
func fail(msg string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Red(msg+": "+err.Error()))
	} else {
		fmt.Fprintln(os.Stderr, ui.Red(msg))
	}
	os.Exit(runner.ExitMisconfig)
}
