package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortscraper/pkg/config"
)

func TestExampleConfig_IsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0644))

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Workers, 2)
	assert.Equal(t, "w1", cfg.Workers[0].ID)
	assert.Equal(t, "Default", cfg.Workers[0].ProfileDir)
	assert.Equal(t, 15, cfg.Scrape.Quota)
	assert.Equal(t, config.DelayRange{Min: 15 * time.Second, Max: 30 * time.Second}, cfg.Pacing.LongPause)
	assert.Equal(t, "terminal", cfg.Notifications.Type)
	assert.NotEmpty(t, cfg.Browser.UserAgents, "defaults survive the example")
	assert.Zero(t, cfg.Layout.ScreenWidth, "screen is detected by default")
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "profiles", "w1")
	require.NoError(t, os.MkdirAll(existing, 0755))

	cfg := config.DefaultConfig()
	cfg.Workers = []config.WorkerProfile{
		{ID: "w1", ProfilePath: existing},
		{ID: "w2", ProfilePath: filepath.Join(dir, "profiles", "w2")},
	}
	cfg.Output.CSVPath = filepath.Join(dir, "out", "raw.csv")

	warnings, problems := checkPaths(cfg)
	assert.Empty(t, problems)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "w2")

	_, err := os.Stat(filepath.Join(dir, "out"))
	assert.NoError(t, err, "output directory is created")

	cfg.VPN.Enabled = true
	cfg.VPN.ExtensionsDir = filepath.Join(dir, "extensions")
	_, problems = checkPaths(cfg)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "vpn extension")
}

func TestScrapeFlags(t *testing.T) {
	quota, outputPath, numWorkers, headless, runTimeout = 7, "out.csv", 2, true, time.Minute
	t.Cleanup(func() {
		quota, outputPath, numWorkers, headless, runTimeout = 0, "", 0, false, 0
	})

	flags := scrapeFlags()
	assert.Equal(t, 7, flags["quota"])
	assert.Equal(t, "out.csv", flags["output"])
	assert.Equal(t, 2, flags["workers"])
	assert.Equal(t, true, flags["headless"])
	assert.Equal(t, time.Minute, flags["run-timeout"])
	assert.NotContains(t, flags, "vpn")

	cfg := config.DefaultConfig()
	cfg.Workers = []config.WorkerProfile{{ID: "a", ProfilePath: "/a"}, {ID: "b", ProfilePath: "/b"}, {ID: "c", ProfilePath: "/c"}}
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 7, cfg.Scrape.Quota)
	assert.Len(t, cfg.Workers, 2)
	assert.True(t, cfg.Browser.Headless)
}
