package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the shorts scraper
type Config struct {
	// Browser profiles, one worker per entry
	Workers []WorkerProfile `yaml:"workers" json:"workers"`

	// Per-worker loop behaviour
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Human pacing delays
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Window tiling parameters
	Layout LayoutConfig `yaml:"layout" json:"layout"`

	// Browser launch settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Next-item navigation settings
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Optional VPN extension activation
	VPN VPNConfig `yaml:"vpn" json:"vpn"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// External metadata API hook
	MetadataAPI MetadataAPIConfig `yaml:"metadata_api" json:"metadata_api"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WorkerProfile identifies one pre-authenticated browser profile
type WorkerProfile struct {
	ID          string `yaml:"id" json:"id"`
	ProfilePath string `yaml:"profile_path" json:"profile_path"`
	ProfileDir  string `yaml:"profile_dir" json:"profile_dir"`
}

// ScrapeConfig holds the worker loop settings
type ScrapeConfig struct {
	FeedURL          string        `yaml:"feed_url" json:"feed_url"`
	Quota            int           `yaml:"quota" json:"quota"`
	MarkerTimeout    time.Duration `yaml:"marker_timeout" json:"marker_timeout"`
	ExpandTimeout    time.Duration `yaml:"expand_timeout" json:"expand_timeout"`
	ErrorBudget      int           `yaml:"error_budget" json:"error_budget"`
	MaxSkips         int           `yaml:"max_skips" json:"max_skips"`
	WatchProbability float64       `yaml:"watch_probability" json:"watch_probability"`
	RunTimeout       time.Duration `yaml:"run_timeout" json:"run_timeout"`
}

// DelayRange is an inclusive range for randomized delays
type DelayRange struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// PacingConfig holds the randomized delay ranges
type PacingConfig struct {
	StartDelay              DelayRange `yaml:"start_delay" json:"start_delay"`
	Initial                 DelayRange `yaml:"initial" json:"initial"`
	General                 DelayRange `yaml:"general" json:"general"`
	PostClick               DelayRange `yaml:"post_click" json:"post_click"`
	PostScroll              DelayRange `yaml:"post_scroll" json:"post_scroll"`
	LongPause               DelayRange `yaml:"long_pause" json:"long_pause"`
	LongPauseEvery          int        `yaml:"long_pause_every" json:"long_pause_every"`
	Watch                   DelayRange `yaml:"watch" json:"watch"`
	AfterWatch              DelayRange `yaml:"after_watch" json:"after_watch"`
	MaxNavigationsPerMinute int        `yaml:"max_navigations_per_minute" json:"max_navigations_per_minute"`
}

// Screen size used when the size is neither configured nor detected
const (
	FallbackScreenWidth  = 1920
	FallbackScreenHeight = 1080
)

// LayoutConfig holds the window tiling parameters. A zero screen size is
// detected at startup.
type LayoutConfig struct {
	ScreenWidth    int `yaml:"screen_width" json:"screen_width"`
	ScreenHeight   int `yaml:"screen_height" json:"screen_height"`
	MinWidth       int `yaml:"min_width" json:"min_width"`
	MinHeight      int `yaml:"min_height" json:"min_height"`
	HPadding       int `yaml:"h_padding" json:"h_padding"`
	VPadding       int `yaml:"v_padding" json:"v_padding"`
	ReservedBottom int `yaml:"reserved_bottom" json:"reserved_bottom"`
}

// ScreenSize returns the configured screen size, falling back to 1920x1080
// for a dimension that is still zero
func (l LayoutConfig) ScreenSize() (int, int) {
	w, h := l.ScreenWidth, l.ScreenHeight
	if w <= 0 {
		w = FallbackScreenWidth
	}
	if h <= 0 {
		h = FallbackScreenHeight
	}
	return w, h
}

// BrowserConfig holds browser launch settings
type BrowserConfig struct {
	ExecPath       string   `yaml:"exec_path" json:"exec_path"`
	Headless       bool     `yaml:"headless" json:"headless"`
	UserAgents     []string `yaml:"user_agents" json:"user_agents"`
	LaunchAttempts int      `yaml:"launch_attempts" json:"launch_attempts"`
	HideAutomation bool     `yaml:"hide_automation" json:"hide_automation"`
}

// NavigationConfig holds the next-item control settings
type NavigationConfig struct {
	NextLabels   []string      `yaml:"next_labels" json:"next_labels"`
	ClickTimeout time.Duration `yaml:"click_timeout" json:"click_timeout"`
}

// VPNConfig holds the optional VPN extension settings
type VPNConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	ExtensionID       string        `yaml:"extension_id" json:"extension_id"`
	ExtensionVersion  string        `yaml:"extension_version" json:"extension_version"`
	ExtensionsDir     string        `yaml:"extensions_dir" json:"extensions_dir"`
	ActivationTimeout time.Duration `yaml:"activation_timeout" json:"activation_timeout"`
}

// ExtensionPath returns the unpacked extension directory passed to the browser
func (v VPNConfig) ExtensionPath() string {
	return filepath.Join(v.ExtensionsDir, v.ExtensionID, v.ExtensionVersion)
}

// OutputConfig holds destination settings
type OutputConfig struct {
	CSVPath       string `yaml:"csv_path" json:"csv_path"`
	SQLitePath    string `yaml:"sqlite_path" json:"sqlite_path"`
	SpoolEnabled  bool   `yaml:"spool_enabled" json:"spool_enabled"`
	SpoolDir      string `yaml:"spool_dir" json:"spool_dir"`
	WriteAttempts int    `yaml:"write_attempts" json:"write_attempts"`
	Report        bool   `yaml:"report" json:"report"`
}

// MetadataAPIConfig holds the key for the external metadata API.
// Nothing in the extraction path calls the API yet.
type MetadataAPIConfig struct {
	Key string `yaml:"key" json:"key"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultUserAgents are rotated across sessions when none are configured
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			FeedURL:          "https://www.youtube.com/shorts",
			Quota:            15,
			MarkerTimeout:    20 * time.Second,
			ExpandTimeout:    5 * time.Second,
			ErrorBudget:      5,
			MaxSkips:         60,
			WatchProbability: 0.3,
			RunTimeout:       0, // 0 means wait for every worker
		},
		Pacing: PacingConfig{
			StartDelay:              DelayRange{Min: 5 * time.Second, Max: 15 * time.Second},
			Initial:                 DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
			General:                 DelayRange{Min: 2 * time.Second, Max: 5 * time.Second},
			PostClick:               DelayRange{Min: 2 * time.Second, Max: 5 * time.Second},
			PostScroll:              DelayRange{Min: 2 * time.Second, Max: 5 * time.Second},
			LongPause:               DelayRange{Min: 15 * time.Second, Max: 30 * time.Second},
			LongPauseEvery:          10,
			Watch:                   DelayRange{Min: 10 * time.Second, Max: 30 * time.Second},
			AfterWatch:              DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
			MaxNavigationsPerMinute: 0,
		},
		Layout: LayoutConfig{
			MinWidth:       300,
			MinHeight:      300,
			HPadding:       10,
			VPadding:       10,
			ReservedBottom: 50,
		},
		Browser: BrowserConfig{
			UserAgents:     append([]string(nil), DefaultUserAgents...),
			LaunchAttempts: 3,
			HideAutomation: true,
		},
		Navigation: NavigationConfig{
			NextLabels:   []string{"Next video", "Video berikutnya"},
			ClickTimeout: 10 * time.Second,
		},
		VPN: VPNConfig{
			Enabled:           false,
			ExtensionID:       "eppiocemhmnlbhjplcgkofciiegomcon",
			ExtensionVersion:  "5.6.0_0",
			ActivationTimeout: 30 * time.Second,
		},
		Output: OutputConfig{
			CSVPath:       "shortscraper_raw_data.csv",
			SpoolEnabled:  true,
			WriteAttempts: 3,
			Report:        true,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Type:    "terminal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Worker profiles as "id=path[:dir],id=path"
	if workers := os.Getenv("SHORTSCRAPER_WORKERS"); workers != "" {
		profiles, err := ParseWorkerList(workers)
		if err != nil {
			errs = append(errs, fmt.Errorf("SHORTSCRAPER_WORKERS: %w", err))
		} else {
			c.Workers = profiles
		}
	}

	if quota := os.Getenv("SHORTSCRAPER_QUOTA"); quota != "" {
		val, err := strconv.Atoi(quota)
		if err != nil {
			errs = append(errs, fmt.Errorf("SHORTSCRAPER_QUOTA: %w", err))
		} else if val > 0 {
			c.Scrape.Quota = val
		}
	}

	if feed := os.Getenv("SHORTSCRAPER_FEED_URL"); feed != "" {
		c.Scrape.FeedURL = feed
	}

	// Output
	if output := os.Getenv("SHORTSCRAPER_OUTPUT"); output != "" {
		c.Output.CSVPath = output
	}
	if sqlitePath := os.Getenv("SHORTSCRAPER_SQLITE_PATH"); sqlitePath != "" {
		c.Output.SQLitePath = sqlitePath
	}
	if spoolDir := os.Getenv("SHORTSCRAPER_SPOOL_DIR"); spoolDir != "" {
		c.Output.SpoolDir = spoolDir
	}

	if screen := os.Getenv("SHORTSCRAPER_SCREEN"); screen != "" {
		w, h, err := ParseScreenSize(screen)
		if err != nil {
			errs = append(errs, fmt.Errorf("SHORTSCRAPER_SCREEN: %w", err))
		} else {
			c.Layout.ScreenWidth, c.Layout.ScreenHeight = w, h
		}
	}

	// Browser
	if execPath := os.Getenv("SHORTSCRAPER_BROWSER_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if headless := os.Getenv("SHORTSCRAPER_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}

	if vpn := os.Getenv("SHORTSCRAPER_VPN_ENABLED"); vpn != "" {
		c.VPN.Enabled = strings.ToLower(vpn) == "true"
	}

	// The metadata API key keeps the legacy variable name as a fallback
	if key := os.Getenv("SHORTSCRAPER_API_KEY"); key != "" {
		c.MetadataAPI.Key = key
	} else if key := os.Getenv("YOUTUBE_API_KEY"); key != "" && c.MetadataAPI.Key == "" {
		c.MetadataAPI.Key = key
	}

	if notifEnabled := os.Getenv("SHORTSCRAPER_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	if logLevel := os.Getenv("SHORTSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("SHORTSCRAPER_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// ParseScreenSize parses "WIDTHxHEIGHT", e.g. "2560x1440"
func ParseScreenSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("screen size %q is not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid screen width %q", ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid screen height %q", hs)
	}
	return w, h, nil
}

// ParseWorkerList parses "id=path[:dir]" entries separated by commas
func ParseWorkerList(s string) ([]WorkerProfile, error) {
	var profiles []WorkerProfile
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, rest, ok := strings.Cut(entry, "=")
		if !ok || id == "" || rest == "" {
			return nil, fmt.Errorf("invalid worker entry %q", entry)
		}
		profile := WorkerProfile{ID: id, ProfilePath: rest, ProfileDir: "Default"}
		// Windows drive letters contain a colon, so only split on the last one
		if i := strings.LastIndex(rest, ":"); i > 1 {
			profile.ProfilePath = rest[:i]
			profile.ProfileDir = rest[i+1:]
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".shortscraper.yaml",
		".shortscraper.yml",
		filepath.Join(home, ".config", "shortscraper", "config.yaml"),
		filepath.Join(home, ".config", "shortscraper", "config.yml"),
		filepath.Join(home, ".shortscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Workers
	if len(c.Workers) == 0 {
		errs = append(errs, errors.New("at least one worker profile is required"))
	}
	ids := make(map[string]bool, len(c.Workers))
	for i, w := range c.Workers {
		if w.ID == "" {
			errs = append(errs, fmt.Errorf("worker %d: id is required", i))
		} else if ids[w.ID] {
			errs = append(errs, fmt.Errorf("worker %d: duplicate id %q", i, w.ID))
		}
		ids[w.ID] = true
		if w.ProfilePath == "" {
			errs = append(errs, fmt.Errorf("worker %q: profile_path is required", w.ID))
		}
	}

	// Scrape loop
	if c.Scrape.FeedURL == "" {
		errs = append(errs, errors.New("feed url is required"))
	}
	if c.Scrape.Quota <= 0 {
		errs = append(errs, errors.New("quota must be positive"))
	}
	if c.Scrape.MarkerTimeout <= 0 {
		errs = append(errs, errors.New("marker timeout must be positive"))
	}
	if c.Scrape.ErrorBudget <= 0 {
		errs = append(errs, errors.New("error budget must be positive"))
	}
	if c.Scrape.MaxSkips < 0 {
		errs = append(errs, errors.New("max skips cannot be negative"))
	}
	if c.Scrape.WatchProbability < 0 || c.Scrape.WatchProbability > 1 {
		errs = append(errs, errors.New("watch probability must be between 0 and 1"))
	}
	if c.Scrape.RunTimeout < 0 {
		errs = append(errs, errors.New("run timeout cannot be negative"))
	}

	// Pacing
	ranges := map[string]DelayRange{
		"start_delay": c.Pacing.StartDelay,
		"initial":     c.Pacing.Initial,
		"general":     c.Pacing.General,
		"post_click":  c.Pacing.PostClick,
		"post_scroll": c.Pacing.PostScroll,
		"long_pause":  c.Pacing.LongPause,
		"watch":       c.Pacing.Watch,
		"after_watch": c.Pacing.AfterWatch,
	}
	for name, r := range ranges {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("pacing.%s: invalid range %s..%s", name, r.Min, r.Max))
		}
	}
	if c.Pacing.LongPauseEvery < 0 {
		errs = append(errs, errors.New("long pause interval cannot be negative"))
	}
	if c.Pacing.MaxNavigationsPerMinute < 0 {
		errs = append(errs, errors.New("max navigations per minute cannot be negative"))
	}

	// Layout
	if c.Layout.ScreenWidth < 0 || c.Layout.ScreenHeight < 0 {
		errs = append(errs, errors.New("screen size cannot be negative"))
	}
	if c.Layout.MinWidth <= 0 || c.Layout.MinHeight <= 0 {
		errs = append(errs, errors.New("minimum window size must be positive"))
	}
	if c.Layout.HPadding < 0 || c.Layout.VPadding < 0 || c.Layout.ReservedBottom < 0 {
		errs = append(errs, errors.New("layout paddings cannot be negative"))
	}

	// Browser
	if len(c.Browser.UserAgents) == 0 {
		errs = append(errs, errors.New("at least one user agent is required"))
	}
	if c.Browser.LaunchAttempts <= 0 {
		errs = append(errs, errors.New("launch attempts must be positive"))
	}

	// Navigation
	if len(c.Navigation.NextLabels) == 0 {
		errs = append(errs, errors.New("at least one next-button label is required"))
	}
	if c.Navigation.ClickTimeout <= 0 {
		errs = append(errs, errors.New("click timeout must be positive"))
	}

	// VPN
	if c.VPN.Enabled {
		if c.VPN.ExtensionID == "" || c.VPN.ExtensionsDir == "" {
			errs = append(errs, errors.New("vpn requires extension_id and extensions_dir"))
		}
		if c.VPN.ActivationTimeout <= 0 {
			errs = append(errs, errors.New("vpn activation timeout must be positive"))
		}
	}

	// Output
	if c.Output.CSVPath == "" {
		errs = append(errs, errors.New("output csv path is required"))
	}
	if c.Output.WriteAttempts <= 0 {
		errs = append(errs, errors.New("write attempts must be positive"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "" && f != "console" && f != "json" {
		errs = append(errs, errors.New("invalid log format"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.Type)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if quota, ok := flags["quota"].(int); ok && quota > 0 {
		c.Scrape.Quota = quota
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.CSVPath = output
	}
	if feed, ok := flags["feed-url"].(string); ok && feed != "" {
		c.Scrape.FeedURL = feed
	}
	// Limit the run to the first N configured profiles
	if n, ok := flags["workers"].(int); ok && n > 0 && n < len(c.Workers) {
		c.Workers = c.Workers[:n]
	}
	if headless, ok := flags["headless"].(bool); ok && headless {
		c.Browser.Headless = true
	}
	if vpn, ok := flags["vpn"].(bool); ok && vpn {
		c.VPN.Enabled = true
	}
	if timeout, ok := flags["run-timeout"].(time.Duration); ok && timeout > 0 {
		c.Scrape.RunTimeout = timeout
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".shortscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
