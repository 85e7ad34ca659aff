package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"shortscraper/internal/runner"
	"shortscraper/pkg/config"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/sink"
	"shortscraper/pkg/spool"
	"shortscraper/pkg/ui"
)

var spoolOutput string

// spoolCmd represents the spool command
var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Inspect and replay batches the output could not accept",
	Long: `When a worker cannot write its collected items, the batch is saved as a
JSON file in the spool directory instead of being lost. Replay writes those
batches to the output once it is writable again; duplicates are skipped.`,
}

var spoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending spool files",
	Args:  cobra.NoArgs,
	Run:   runSpoolList,
}

var spoolReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Write every pending batch to the output",
	Example: `  # Replay into the configured CSV
  shortscraper spool replay

  # Replay into another file
  shortscraper spool replay --output ./recovered.csv`,
	Args: cobra.NoArgs,
	Run:  runSpoolReplay,
}

func init() {
	rootCmd.AddCommand(spoolCmd)
	spoolCmd.AddCommand(spoolListCmd)
	spoolCmd.AddCommand(spoolReplayCmd)

	spoolReplayCmd.Flags().StringVarP(&spoolOutput, "output", "o", "", "CSV to replay into (default from config)")
}

// loadOutputConfig loads the configuration without requiring workers
func loadOutputConfig() *config.Config {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		fail("Failed to load configuration", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fail("Failed to load environment variables", err)
	}
	if logLevel != "info" {
		cfg.Logging.Level = logLevel
	}
	if err := initLogger(cfg, os.Stdout); err != nil {
		fail("Failed to initialize logger", err)
	}
	return cfg
}

func openSpool(cfg *config.Config) *spool.Spool {
	sp, err := spool.New(cfg.Output.SpoolDir, logger.GetLogger())
	if err != nil {
		fail("Failed to open spool", err)
	}
	return sp
}

func runSpoolList(cmd *cobra.Command, args []string) {
	sp := openSpool(loadOutputConfig())

	entries, err := sp.List()
	if err != nil {
		fail("Failed to list spool", err)
	}
	ui.PrintInfo("Spool", sp.Dir())
	if len(entries) == 0 {
		ui.PrintSuccess("Nothing is spooled")
		return
	}

	t := ui.NewTable(os.Stdout)
	t.AppendHeader(table.Row{"File", "Worker", "Items", "Created", "Size"})
	total := 0
	for _, e := range entries {
		t.AppendRow(table.Row{filepath.Base(e.Path), e.WorkerID, e.Items, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), fmt.Sprintf("%d B", e.Size)})
		total += e.Items
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d files", len(entries)), "", total, "", ""})
	t.Render()
}

func runSpoolReplay(cmd *cobra.Command, args []string) {
	cfg := loadOutputConfig()
	if spoolOutput != "" {
		cfg.Output.CSVPath = spoolOutput
	}
	sp := openSpool(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := sink.New(sink.Options{
		CSVPath:       cfg.Output.CSVPath,
		SQLitePath:    cfg.Output.SQLitePath,
		WriteAttempts: cfg.Output.WriteAttempts,
		Logger:        logger.GetLogger(),
	})
	if err := out.Start(ctx); err != nil {
		stop()
		fail("Failed to open output", err)
	}

	result, err := sp.Replay(ctx, out)
	if cerr := out.Close(); cerr != nil {
		logger.WithError(cerr).Warn("Failed to close output")
	}
	if err != nil {
		ui.PrintError("Replay interrupted", err)
	}

	ui.PrintInfo("Files", fmt.Sprintf("%d", result.Files))
	ui.PrintInfo("Replayed", fmt.Sprintf("%d", result.Replayed))
	ui.PrintInfo("Rows written", fmt.Sprintf("%d", result.Written))
	ui.PrintInfo("Duplicates skipped", fmt.Sprintf("%d", result.Duplicates))

	if len(result.Failed) > 0 {
		ui.PrintWarning(fmt.Sprintf("%d file(s) could not be replayed and were kept", len(result.Failed)))
		for _, path := range result.Failed {
			fmt.Printf("  - %s\n", path)
		}
		stop()
		os.Exit(runner.ExitSinkFailed)
	}
	ui.PrintSuccess("Spool replayed into " + cfg.Output.CSVPath)
}
