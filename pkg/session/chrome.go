package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"shortscraper/pkg/config"
	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/retry"
)

// hideWebdriverJS runs before any page script so navigator.webdriver reads undefined
const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// defaultOpTimeout bounds operations that take no explicit timeout
const defaultOpTimeout = 30 * time.Second

// ChromeFactory launches one Chrome process per session through chromedp.
// Every session gets its own allocator, so profiles never share a browser.
type ChromeFactory struct {
	cfg     config.BrowserConfig
	backoff retry.BackoffStrategy
	logger  logger.Logger
}

// NewChromeFactory creates a factory from the browser settings
func NewChromeFactory(cfg config.BrowserConfig, log logger.Logger) *ChromeFactory {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ChromeFactory{
		cfg: cfg,
		backoff: &retry.ExponentialBackoff{
			BaseDelay:    2 * time.Second,
			MaxDelay:     20 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		logger: log,
	}
}

// Acquire starts a browser for spec, retrying the launch with exponential
// backoff. When VPN is enabled the extension is activated on a best-effort
// basis; a failed activation is logged and the session is still returned.
func (f *ChromeFactory) Acquire(ctx context.Context, spec Spec) (Session, error) {
	log := logger.ForWorker(f.logger, spec.WorkerID)
	spec = checkVPNExtension(spec, log)

	attempts := f.cfg.LaunchAttempts
	if attempts < 1 {
		attempts = 1
	}

	sess, err := retry.DoWithResult(ctx, func() (*ChromeSession, error) {
		return f.launch(ctx, spec, log)
	}, &retry.Config{
		MaxAttempts: attempts,
		Backoff:     f.backoff,
		Logger:      log,
	})
	if err != nil {
		return nil, errs.DriverInit(spec.WorkerID, err)
	}

	if spec.VPN.Enabled {
		if err := sess.activateVPN(ctx, spec.VPN); err != nil {
			log.WithError(err).Warn("VPN activation failed, continuing without VPN")
		} else {
			log.Info("VPN connected")
		}
	}

	return sess, nil
}

// checkVPNExtension turns the VPN off for spec when its unpacked extension
// is missing, so the browser starts without it
func checkVPNExtension(spec Spec, log logger.Logger) Spec {
	if !spec.VPN.Enabled {
		return spec
	}
	path := spec.VPN.ExtensionPath()
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		log.WarnWithFields("VPN extension not found, proceeding without VPN", map[string]interface{}{
			"path": path,
		})
		spec.VPN.Enabled = false
	}
	return spec
}

func (f *ChromeFactory) launch(ctx context.Context, spec Spec, log logger.Logger) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], f.allocatorOptions(spec)...)

	// The allocator outlives ctx; its lifetime ends with Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	s := &ChromeSession{
		workerID:    spec.WorkerID,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      log,
	}

	// The first Run starts the browser, so it must use tabCtx itself.
	stop := context.AfterFunc(ctx, allocCancel)
	err := chromedp.Run(tabCtx, f.setupActions(spec)...)
	stop()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.DebugWithFields("Browser session started", map[string]interface{}{
		"profile": spec.ProfilePath,
		"window":  fmt.Sprintf("%dx%d+%d+%d", spec.Window.Width, spec.Window.Height, spec.Window.X, spec.Window.Y),
	})
	return s, nil
}

// launchFlags returns the command-line switches for spec. A false value
// removes a switch that chromedp would otherwise pass by default.
func (f *ChromeFactory) launchFlags(spec Spec) map[string]interface{} {
	flags := map[string]interface{}{
		"mute-audio": true,
		"headless":   f.cfg.Headless,
	}
	if spec.ProfilePath != "" {
		flags["user-data-dir"] = spec.ProfilePath
	}
	if spec.ProfileDir != "" {
		flags["profile-directory"] = spec.ProfileDir
	}
	if spec.Window.Width > 0 && spec.Window.Height > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", spec.Window.Width, spec.Window.Height)
		flags["window-position"] = fmt.Sprintf("%d,%d", spec.Window.X, spec.Window.Y)
	}
	if f.cfg.HideAutomation {
		flags["disable-blink-features"] = "AutomationControlled"
		flags["enable-automation"] = false
	}
	if spec.VPN.Enabled {
		flags["disable-extensions"] = false
		flags["load-extension"] = spec.VPN.ExtensionPath()
	}
	return flags
}

func (f *ChromeFactory) allocatorOptions(spec Spec) []chromedp.ExecAllocatorOption {
	flags := f.launchFlags(spec)
	opts := make([]chromedp.ExecAllocatorOption, 0, len(flags)+2)
	for name, value := range flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if spec.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(spec.UserAgent))
	}
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}
	return opts
}

func (f *ChromeFactory) setupActions(spec Spec) []chromedp.Action {
	var actions []chromedp.Action
	if f.cfg.HideAutomation {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
			return err
		}))
	}
	if !f.cfg.Headless && spec.Window.Width > 0 {
		actions = append(actions, placeWindow(spec))
	}
	return actions
}

// placeWindow moves the window onto its grid cell. Some window managers
// ignore the launch flags, so this is applied again over the protocol.
func placeWindow(spec Spec) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return nil
		}
		bounds := &browser.Bounds{
			Left:        int64(spec.Window.X),
			Top:         int64(spec.Window.Y),
			Width:       int64(spec.Window.Width),
			Height:      int64(spec.Window.Height),
			WindowState: browser.WindowStateNormal,
		}
		// best effort
		_ = browser.SetWindowBounds(windowID, bounds).Do(ctx)
		return nil
	})
}

// ChromeSession is a Session backed by a single chromedp tab
type ChromeSession struct {
	workerID    string
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      logger.Logger
	closeOnce   sync.Once
}

// run executes actions under a timeout that also ends when ctx does
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, defaultOpTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, defaultOpTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return location, nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, defaultOpTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

func (s *ChromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *ChromeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *ChromeSession) PressKey(ctx context.Context, key string) error {
	return s.run(ctx, defaultOpTimeout, chromedp.KeyEvent(key))
}

// Close shuts the browser down gracefully, then kills the allocator
func (s *ChromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.tabCtx)
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Browser session closed")
	})
	return err
}
