package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"shortscraper/internal/runner"
	"shortscraper/pkg/config"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/ui"
)

var (
	layoutWorkers int
	layoutScreen  string
)

// layoutCmd prints the window grid a run would use
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the window layout for the configured workers",
	Long: `Print where each worker's browser window would be placed. Use --workers to
check a screen for a number of workers that is not configured yet, and
--screen to plan for a display other than this one.`,
	Example: `  shortscraper layout
  shortscraper layout --workers 6
  shortscraper layout --workers 4 --screen 2560x1440`,
	Args: cobra.NoArgs,
	Run:  runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().IntVarP(&layoutWorkers, "workers", "w", 0, "number of workers to lay out (default: configured profiles)")
	layoutCmd.Flags().StringVar(&layoutScreen, "screen", "", "screen size as WIDTHxHEIGHT (default: configured or detected)")
}

func runLayout(cmd *cobra.Command, args []string) {
	cfg := loadOutputConfig()
	if layoutScreen != "" {
		w, h, err := config.ParseScreenSize(layoutScreen)
		if err != nil {
			fail("Invalid --screen", err)
		}
		cfg.Layout.ScreenWidth, cfg.Layout.ScreenHeight = w, h
	}
	resolveScreen(context.Background(), cfg, logger.GetLogger())

	n := layoutWorkers
	if n <= 0 {
		n = len(cfg.Workers)
	}
	if n <= 0 {
		n = 1
	}

	plan, clamped := runner.PlanFor(cfg, n)
	ui.PrintInfo("Screen", fmt.Sprintf("%dx%d", cfg.Layout.ScreenWidth, cfg.Layout.ScreenHeight))
	ui.PrintInfo("Grid", fmt.Sprintf("%d columns x %d rows", plan.Cols, plan.Rows))
	ui.PrintInfo("Window", fmt.Sprintf("%dx%d", plan.WindowWidth, plan.WindowHeight))
	if clamped {
		ui.PrintWarning("The screen is too small for the minimum window size; windows will overlap the edge")
	}

	t := ui.NewTable(os.Stdout)
	t.AppendHeader(table.Row{"#", "Worker", "X", "Y"})
	for i := 0; i < n; i++ {
		id := "-"
		if i < len(cfg.Workers) {
			id = cfg.Workers[i].ID
		}
		r := plan.Rect(i)
		t.AppendRow(table.Row{i + 1, id, r.X, r.Y})
	}
	t.Render()
}
