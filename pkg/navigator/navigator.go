// Package navigator advances a session to the next item in the feed.
package navigator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"

	"shortscraper/pkg/logger"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/session"
)

// Method records which strategy moved the feed
type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
	MethodNone     Method = "none"
)

// Result is the outcome of one Advance call
type Result struct {
	Advanced bool
	Method   Method
	// Err is the last failure seen; it is set when Advanced is false
	Err error
}

// Options configures a Navigator
type Options struct {
	// NextLabels are the aria-labels of the "next item" button, one per UI language
	NextLabels   []string
	ClickTimeout time.Duration
	PostClick    pacing.Range
	PostScroll   pacing.Range
	Pacer        *pacing.Pacer
	Logger       logger.Logger
}

// Navigator clicks the next-item button and falls back to a key press
type Navigator struct {
	opts     Options
	selector string
	logger   logger.Logger
}

// New creates a Navigator
func New(opts Options) *Navigator {
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 10 * time.Second
	}
	if opts.Pacer == nil {
		opts.Pacer = pacing.New()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Navigator{
		opts:     opts,
		selector: NextButtonSelector(opts.NextLabels),
		logger:   log.WithField("component", "navigator"),
	}
}

// NextButtonSelector builds a selector list matching the next button under any of labels
func NextButtonSelector(labels []string) string {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.ReplaceAll(label, "'", `\'`)
		parts = append(parts, fmt.Sprintf("button.yt-spec-button-shape-next[aria-label='%s']", label))
	}
	if len(parts) == 0 {
		return "button.yt-spec-button-shape-next"
	}
	return strings.Join(parts, ", ")
}

// Advance moves to the next item. The key press is only tried when the
// button click fails. A successful advance is followed by the matching
// post-navigation delay.
func (n *Navigator) Advance(ctx context.Context, sess session.Session) Result {
	if err := n.opts.Pacer.Navigation(ctx); err != nil {
		return Result{Method: MethodNone, Err: err}
	}

	clickErr := sess.Click(ctx, n.selector, n.opts.ClickTimeout)
	if clickErr == nil {
		n.logger.Debug("Advanced with next button")
		if err := n.opts.Pacer.Sleep(ctx, n.opts.PostClick); err != nil {
			return Result{Advanced: true, Method: MethodPrimary, Err: err}
		}
		return Result{Advanced: true, Method: MethodPrimary}
	}
	if ctx.Err() != nil {
		return Result{Method: MethodNone, Err: ctx.Err()}
	}

	n.logger.DebugWithFields("Next button failed, pressing ArrowDown", map[string]interface{}{
		"error": clickErr.Error(),
	})

	keyErr := sess.PressKey(ctx, kb.ArrowDown)
	if keyErr == nil {
		if err := n.opts.Pacer.Sleep(ctx, n.opts.PostScroll); err != nil {
			return Result{Advanced: true, Method: MethodFallback, Err: err}
		}
		return Result{Advanced: true, Method: MethodFallback}
	}

	n.logger.WarnWithFields("All navigation methods failed", map[string]interface{}{
		"click_error": clickErr.Error(),
		"key_error":   keyErr.Error(),
	})
	return Result{Method: MethodNone, Err: fmt.Errorf("next button: %v; arrow key: %w", clickErr, keyErr)}
}
