package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shortscraper/internal/runner"
	"shortscraper/pkg/auth"
	"shortscraper/pkg/config"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/report"
	"shortscraper/pkg/ui"
	"shortscraper/pkg/ui/tui"
	"shortscraper/pkg/worker"
)

var (
	// Scrape command flags
	quota      int
	outputPath string
	numWorkers int
	feedURL    string
	headless   bool
	useVPN     bool
	useTUI     bool
	runTimeout time.Duration
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run every configured worker until its quota is met",
	Long: `Start one worker per configured browser profile. Each worker opens the feed,
records the metadata of every item it lands on and moves to the next one until
it has collected its quota, runs out of error budget or can no longer navigate.

Workers must be configured in the config file or with SHORTSCRAPER_WORKERS
("id=profile_path[:profile_dir],..."). The process exits with:
  0  at least one worker wrote its items
  1  the configuration or the output could not be opened
  2  no worker collected anything
  3  items were collected but every write failed (see 'shortscraper spool')`,
	Example: `  # Run the configured workers with their defaults
  shortscraper scrape

  # Collect 30 items per worker into a custom file, watching a dashboard
  shortscraper scrape --quota 30 --output ./data/run1.csv --tui

  # Use only the first two profiles, headless, and stop after an hour
  shortscraper scrape --workers 2 --headless --run-timeout 1h`,
	Args: cobra.NoArgs,
	Run:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVar(&quota, "quota", 0, "items to collect per worker (default from config)")
	scrapeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "CSV output path")
	scrapeCmd.Flags().IntVarP(&numWorkers, "workers", "w", 0, "use only the first N configured profiles")
	scrapeCmd.Flags().StringVar(&feedURL, "feed-url", "", "feed to start from")
	scrapeCmd.Flags().BoolVar(&headless, "headless", false, "run the browsers headless")
	scrapeCmd.Flags().BoolVar(&useVPN, "vpn", false, "activate the configured VPN extension in every window")
	scrapeCmd.Flags().BoolVar(&useTUI, "tui", false, "show the interactive worker dashboard")
	scrapeCmd.Flags().DurationVar(&runTimeout, "run-timeout", 0, "cancel every worker after this long (0 waits for all)")
}

func scrapeFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if quota > 0 {
		flags["quota"] = quota
	}
	if outputPath != "" {
		flags["output"] = outputPath
	}
	if numWorkers > 0 {
		flags["workers"] = numWorkers
	}
	if feedURL != "" {
		flags["feed-url"] = feedURL
	}
	if headless {
		flags["headless"] = true
	}
	if useVPN {
		flags["vpn"] = true
	}
	if runTimeout > 0 {
		flags["run-timeout"] = runTimeout
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) {
	os.Exit(scrape())
}

// scrape runs one scrape and returns the process exit code
func scrape() int {
	cfg, err := loadConfig(scrapeFlags())
	if err != nil {
		fail("Failed to load configuration", err)
	}

	var (
		progress  func(worker.Event)
		dashboard *tui.TUI
		display   *ui.ProgressDisplay
		tuiDone   chan error
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the dashboard owns the terminal, so the console log becomes JSON
	// lines that it decodes into its event panel
	var console io.Writer = os.Stdout
	if useTUI {
		ids := make([]string, len(cfg.Workers))
		for i, w := range cfg.Workers {
			ids[i] = w.ID
		}
		dashboard = tui.NewTUI(ids, cfg.Scrape.Quota, cancel)
		tuiDone = make(chan error, 1)
		go func() { tuiDone <- dashboard.Start() }()
		progress = dashboard.Handle
		cfg.Logging.Format = "json"
		console = dashboard.LogWriter()
	}
	if err := initLogger(cfg, console); err != nil {
		if dashboard != nil {
			dashboard.Stop()
			<-tuiDone
		}
		fail("Failed to initialize logger", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("shortscraper starting")

	resolveAPIKey(cfg, log)
	resolveScreen(ctx, cfg, log)

	switch {
	case dashboard != nil:
		dashboard.LogInfo("%d workers, %d items each, writing to %s", len(cfg.Workers), cfg.Scrape.Quota, cfg.Output.CSVPath)
	case !quiet:
		display = ui.NewProgressDisplay(os.Stdout, verbose)
		progress = display.Handle
		ui.PrintInfo("Workers", fmt.Sprintf("%d", len(cfg.Workers)))
		ui.PrintInfo("Quota", fmt.Sprintf("%d per worker", cfg.Scrape.Quota))
		ui.PrintInfo("Output", cfg.Output.CSVPath)
	}

	r, err := runner.New(cfg, runner.Options{
		Logger:   log,
		Progress: progress,
	})
	if err != nil {
		if dashboard != nil {
			dashboard.Stop()
			<-tuiDone
		}
		ui.PrintError("Invalid configuration", err)
		return runner.ExitMisconfig
	}

	result, err := r.Run(ctx)
	if dashboard != nil {
		dashboard.Finish(result.ExitCode)
		if tuiErr := <-tuiDone; tuiErr != nil {
			ui.PrintWarning("Dashboard exited with an error", tuiErr)
		}
	}
	if display != nil {
		display.Complete()
	}
	if err != nil {
		ui.PrintError("Run failed", err)
		return result.ExitCode
	}

	if !quiet {
		fmt.Fprintln(ui.Out)
		ui.RenderSummary(ui.Out, result.Workers)
		if result.ReportPath != "" {
			ui.PrintInfo("Report", result.ReportPath)
		}
		if result.TimedOut {
			ui.PrintWarning("Run timeout reached; unfinished workers were cancelled")
		}
	}

	totals := report.Summarize(result.Workers)
	if totals.Spooled > 0 {
		ui.PrintWarning(fmt.Sprintf("%d batch(es) were spooled; run 'shortscraper spool replay' once the output is writable", totals.Spooled))
	}
	ui.NewNotifier(cfg.Notifications).RunFinished(result.ExitCode, totals.Written, totals.Workers)

	return result.ExitCode
}

// resolveAPIKey reports whether a metadata API key is available. Nothing in
// the extraction path calls the API, so a missing key is not an error.
func resolveAPIKey(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Key stores unavailable")
		return
	}
	key, source, err := manager.Resolve(auth.DefaultKeyName, cfg.MetadataAPI.Key)
	if errors.Is(err, auth.ErrKeyNotFound) {
		log.Debug("No metadata API key configured")
		return
	}
	if err != nil {
		log.WithError(err).Warn("Failed to read metadata API key")
		return
	}
	cfg.MetadataAPI.Key = key
	log.InfoWithFields("Metadata API key available", map[string]interface{}{
		"source": source,
		"key":    auth.Mask(key),
	})
}
