package worker

import (
	"context"
	"time"

	"shortscraper/pkg/config"
	"shortscraper/pkg/layout"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/session"
	"shortscraper/pkg/sink"
)

// Submitter receives the worker's batch when it drains; *sink.Writer satisfies it
type Submitter interface {
	Submit(ctx context.Context, workerID string, items []models.ScrapedItem) (sink.Receipt, error)
}

// Spooler keeps a batch the sink refused; *spool.Spool satisfies it
type Spooler interface {
	Write(workerID string, items []models.ScrapedItem, cause error) (string, error)
}

// Delays groups the pacing ranges the loop uses
type Delays struct {
	Initial        pacing.Range
	General        pacing.Range
	PostClick      pacing.Range
	PostScroll     pacing.Range
	LongPause      pacing.Range
	LongPauseEvery int
	Watch          pacing.Range
	AfterWatch     pacing.Range
}

// Options configures one worker
type Options struct {
	Profile   config.WorkerProfile
	Window    layout.Rect
	UserAgent string
	VPN       config.VPNConfig

	FeedURL          string
	Quota            int
	ErrorBudget      int
	MaxSkips         int
	WatchProbability float64
	MarkerTimeout    time.Duration
	ExpandTimeout    time.Duration

	NextLabels   []string
	ClickTimeout time.Duration

	Delays Delays

	Factory session.Factory
	Sink    Submitter
	// Spool is optional; nil disables spooling
	Spool Spooler

	Pacer  *pacing.Pacer
	Logger logger.Logger
	// Progress, when set, receives every Event. It is called from the
	// worker goroutine and must not block.
	Progress func(Event)
	Now      func() time.Time
}

func toRange(r config.DelayRange) pacing.Range {
	return pacing.Range{Min: r.Min, Max: r.Max}
}

// DelaysFromConfig converts the configured delay ranges
func DelaysFromConfig(p config.PacingConfig) Delays {
	return Delays{
		Initial:        toRange(p.Initial),
		General:        toRange(p.General),
		PostClick:      toRange(p.PostClick),
		PostScroll:     toRange(p.PostScroll),
		LongPause:      toRange(p.LongPause),
		LongPauseEvery: p.LongPauseEvery,
		Watch:          toRange(p.Watch),
		AfterWatch:     toRange(p.AfterWatch),
	}
}

// FromConfig builds the options for one profile. Factory, Sink, Spool,
// Pacer and Progress are left for the caller.
func FromConfig(cfg *config.Config, profile config.WorkerProfile, window layout.Rect) Options {
	return Options{
		Profile:          profile,
		Window:           window,
		VPN:              cfg.VPN,
		FeedURL:          cfg.Scrape.FeedURL,
		Quota:            cfg.Scrape.Quota,
		ErrorBudget:      cfg.Scrape.ErrorBudget,
		MaxSkips:         cfg.Scrape.MaxSkips,
		WatchProbability: cfg.Scrape.WatchProbability,
		MarkerTimeout:    cfg.Scrape.MarkerTimeout,
		ExpandTimeout:    cfg.Scrape.ExpandTimeout,
		NextLabels:       cfg.Navigation.NextLabels,
		ClickTimeout:     cfg.Navigation.ClickTimeout,
		Delays:           DelaysFromConfig(cfg.Pacing),
	}
}
