package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"shortscraper/pkg/config"
)

// screenDetectTimeout bounds the whole detection, browser start included
const screenDetectTimeout = 20 * time.Second

const screenJS = `({width: window.screen.width, height: window.screen.height})`

// ScreenSize is the display size reported by the browser
type ScreenSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectScreen starts a throwaway visible browser with a temporary profile,
// reads window.screen and closes it. Headless browsers report a fixed
// virtual screen, so detection refuses to run headless.
func DetectScreen(ctx context.Context, cfg config.BrowserConfig) (ScreenSize, error) {
	if cfg.Headless {
		return ScreenSize{}, errors.New("cannot detect the screen from a headless browser")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(200, 200),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	ctx, cancel := context.WithTimeout(ctx, screenDetectTimeout)
	defer cancel()
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	var size ScreenSize
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(screenJS, &size)); err != nil {
		return ScreenSize{}, fmt.Errorf("failed to read screen size: %w", err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return ScreenSize{}, fmt.Errorf("browser reported screen %dx%d", size.Width, size.Height)
	}
	return size, nil
}
