// Package session drives one browser per worker. The extractor and the
// navigator only ever see the Session interface, so tests can swap the
// chromedp implementation for FakeFactory.
package session

import (
	"context"
	"time"

	"shortscraper/pkg/config"
	"shortscraper/pkg/layout"
)

// Session is the minimal set of page operations a worker needs
type Session interface {
	// Navigate loads url in the session's tab
	Navigate(ctx context.Context, url string) error
	// CurrentURL returns the address the tab currently shows
	CurrentURL(ctx context.Context) (string, error)
	// HTML returns the rendered document as served by the browser
	HTML(ctx context.Context) (string, error)
	// WaitVisible blocks until selector is visible or timeout elapses
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching selector
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// PressKey sends a single key event to the page, e.g. kb.ArrowDown
	PressKey(ctx context.Context, key string) error
	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Spec describes the session one worker asks for
type Spec struct {
	WorkerID    string
	ProfilePath string
	ProfileDir  string
	Window      layout.Rect
	UserAgent   string
	VPN         config.VPNConfig
}

// Factory hands out sessions. Acquire fails with an errors.DriverInit.
type Factory interface {
	Acquire(ctx context.Context, spec Spec) (Session, error)
}
