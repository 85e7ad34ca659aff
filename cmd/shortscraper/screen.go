package main

import (
	"context"

	"shortscraper/pkg/config"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/session"
)

// detectScreen is swapped in tests
var detectScreen = session.DetectScreen

// resolveScreen fills in a screen size the config left at zero. A configured
// size always wins; a failed detection falls back to 1920x1080.
func resolveScreen(ctx context.Context, cfg *config.Config, log logger.Logger) {
	if cfg.Layout.ScreenWidth > 0 && cfg.Layout.ScreenHeight > 0 {
		return
	}

	size, err := detectScreen(ctx, cfg.Browser)
	if err != nil {
		log.WithError(err).Warn("Screen detection failed, using 1920x1080")
		size = session.ScreenSize{Width: config.FallbackScreenWidth, Height: config.FallbackScreenHeight}
	} else {
		log.InfoWithFields("Screen detected", map[string]interface{}{
			"width":  size.Width,
			"height": size.Height,
		})
	}

	if cfg.Layout.ScreenWidth <= 0 {
		cfg.Layout.ScreenWidth = size.Width
	}
	if cfg.Layout.ScreenHeight <= 0 {
		cfg.Layout.ScreenHeight = size.Height
	}
}
