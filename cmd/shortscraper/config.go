package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"shortscraper/internal/runner"
	"shortscraper/pkg/auth"
	"shortscraper/pkg/config"
	"shortscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage shortscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (SHORTSCRAPER_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with the common options.

The file is created in the current directory as '.shortscraper.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

The metadata API key is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration and check the paths it names.

This command checks:
  - YAML syntax
  - Required fields
  - Value ranges
  - That profile directories exist and the output directory can be created`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# shortscraper configuration
#
# Every value can also be set with an environment variable prefixed with
# SHORTSCRAPER_, e.g. SHORTSCRAPER_QUOTA or SHORTSCRAPER_WORKERS.

# One worker per pre-authenticated browser profile.
# profile_path is the user-data directory, profile_dir the profile inside it.
workers:
  - id: w1
    profile_path: ~/.config/shortscraper/profiles/w1
    profile_dir: Default
  - id: w2
    profile_path: ~/.config/shortscraper/profiles/w2
    profile_dir: Default

scrape:
  feed_url: https://www.youtube.com/shorts
  # Items each worker collects before stopping
  quota: 15
  # How long to wait for the page to render a title
  marker_timeout: 20s
  expand_timeout: 5s
  # Failed iterations tolerated before a worker gives up
  error_budget: 5
  # Iterations that yield nothing new; 0 means four times the quota
  max_skips: 60
  # Chance of lingering on an item after collecting it
  watch_probability: 0.3
  # 0 waits for every worker
  run_timeout: 0s

pacing:
  start_delay: {min: 5s, max: 15s}
  initial: {min: 5s, max: 10s}
  general: {min: 2s, max: 5s}
  post_click: {min: 2s, max: 5s}
  post_scroll: {min: 2s, max: 5s}
  long_pause: {min: 15s, max: 30s}
  long_pause_every: 10
  watch: {min: 10s, max: 30s}
  after_watch: {min: 5s, max: 10s}
  # 0 disables the per-worker navigation cap
  max_navigations_per_minute: 0

layout:
  # 0 detects the screen size when a run starts (fallback 1920x1080)
  screen_width: 0
  screen_height: 0
  min_width: 300
  min_height: 300
  h_padding: 10
  v_padding: 10
  reserved_bottom: 50

browser:
  # Leave empty to let the driver find Chrome
  exec_path: ""
  headless: false
  launch_attempts: 3
  hide_automation: true

navigation:
  next_labels: ["Next video", "Video berikutnya"]
  click_timeout: 10s

vpn:
  enabled: false
  extension_id: eppiocemhmnlbhjplcgkofciiegomcon
  extension_version: 5.6.0_0
  extensions_dir: ""
  activation_timeout: 30s

output:
  csv_path: shortscraper_raw_data.csv
  # Set to mirror every written row into SQLite
  sqlite_path: ""
  spool_enabled: true
  # Empty uses the per-user data directory
  spool_dir: ""
  write_attempts: 3
  report: true

notifications:
  enabled: true
  # terminal, desktop or none
  type: terminal

logging:
  level: info
  file: ""
  # console or json
  format: console
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".shortscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(runner.ExitMisconfig)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fail("Failed to create configuration directory", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fail("Failed to create configuration file", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Point each worker at a browser profile that is already signed in")
	fmt.Println("2. Run 'shortscraper config validate' to check the configuration")
	fmt.Println("3. Start collecting with 'shortscraper scrape'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(nil)
	if err != nil {
		fail("Failed to load configuration", err)
	}

	display := *cfg
	if display.MetadataAPI.Key != "" {
		display.MetadataAPI.Key = auth.Mask(display.MetadataAPI.Key)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		fail("Failed to format configuration", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (SHORTSCRAPER_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (searched in default locations)")
	}
	fmt.Println("5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		fail("Configuration validation failed", err)
	}

	warnings, problems := checkPaths(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(runner.ExitMisconfig)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	plan, clamped := runner.Plan(cfg)
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Workers: %d\n", len(cfg.Workers))
	fmt.Printf("  Quota per worker: %d\n", cfg.Scrape.Quota)
	if cfg.Layout.ScreenWidth > 0 && cfg.Layout.ScreenHeight > 0 {
		fmt.Printf("  Screen: %dx%d\n", cfg.Layout.ScreenWidth, cfg.Layout.ScreenHeight)
	} else {
		fmt.Println("  Screen: detected when a run starts (grid below assumes 1920x1080)")
	}
	fmt.Printf("  Window grid: %dx%d (%dx%d px)\n", plan.Cols, plan.Rows, plan.WindowWidth, plan.WindowHeight)
	if clamped {
		fmt.Println("  Windows are larger than their screen share and will overlap the edge")
	}
	fmt.Printf("  Output: %s\n", cfg.Output.CSVPath)
	if cfg.Output.SQLitePath != "" {
		fmt.Printf("  SQLite mirror: %s\n", cfg.Output.SQLitePath)
	}
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

// checkPaths looks at the paths a configuration names. Missing profiles are
// warnings because the browser creates them, an unwritable output is not.
func checkPaths(cfg *config.Config) (warnings, problems []string) {
	for _, w := range cfg.Workers {
		if _, err := os.Stat(w.ProfilePath); err != nil {
			warnings = append(warnings, fmt.Sprintf("worker %s: profile %s does not exist yet and will start signed out", w.ID, w.ProfilePath))
		}
	}

	if dir := filepath.Dir(cfg.Output.CSVPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.VPN.Enabled {
		if _, err := os.Stat(cfg.VPN.ExtensionPath()); err != nil {
			problems = append(problems, fmt.Sprintf("vpn extension not found at %s", cfg.VPN.ExtensionPath()))
		}
	}
	return warnings, problems
}
