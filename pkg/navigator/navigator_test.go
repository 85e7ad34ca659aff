package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/session"
)

var (
	postClick  = pacing.Range{Min: 2 * time.Second, Max: 2 * time.Second}
	postScroll = pacing.Range{Min: 7 * time.Second, Max: 7 * time.Second}
)

func newTestNavigator(t *testing.T) (*Navigator, *pacing.Recorder) {
	t.Helper()
	pacer, rec := pacing.Instant(1)
	return New(Options{
		NextLabels:   []string{"Next video", "Video berikutnya"},
		ClickTimeout: time.Second,
		PostClick:    postClick,
		PostScroll:   postScroll,
		Pacer:        pacer,
		Logger:       logger.NewNopLogger(),
	}), rec
}

func TestAdvance(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		script     session.FakeScript
		advanced   bool
		method     Method
		clicks     int32
		keys       int32
		wantDelays []time.Duration
	}{
		{
			name:       "primary click works, no key press",
			script:     session.FakeScript{Pages: session.Feed("a", "b")},
			advanced:   true,
			method:     MethodPrimary,
			clicks:     1,
			keys:       0,
			wantDelays: []time.Duration{2 * time.Second},
		},
		{
			name:       "click fails, key press fallback",
			script:     session.FakeScript{Pages: session.Feed("a", "b"), ClickErr: boom},
			advanced:   true,
			method:     MethodFallback,
			clicks:     1,
			keys:       1,
			wantDelays: []time.Duration{7 * time.Second},
		},
		{
			name:     "both fail",
			script:   session.FakeScript{Pages: session.Feed("a", "b"), ClickErr: boom, KeyErr: boom},
			advanced: false,
			method:   MethodNone,
			clicks:   1,
			keys:     1,
		},
		{
			name:     "end of feed",
			script:   session.FakeScript{Pages: session.Feed("a")},
			advanced: false,
			method:   MethodNone,
			clicks:   1,
			keys:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav, rec := newTestNavigator(t)
			sess := session.NewFakeSession(tt.script)

			res := nav.Advance(context.Background(), sess)
			assert.Equal(t, tt.advanced, res.Advanced)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.clicks, sess.Clicks.Load())
			assert.Equal(t, tt.keys, sess.KeyPresses.Load())
			assert.Equal(t, tt.wantDelays, rec.Delays())
			if !tt.advanced {
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestAdvance_MovesToNextItem(t *testing.T) {
	nav, _ := newTestNavigator(t)
	sess := session.NewFakeSession(session.FakeScript{Pages: session.Feed("a", "b")})

	res := nav.Advance(context.Background(), sess)
	require.True(t, res.Advanced)

	url, err := sess.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.URLFor("b"), url)
}

func TestAdvance_MatchesSecondLabel(t *testing.T) {
	nav, _ := newTestNavigator(t)
	first := session.SamplePage("a")
	first.HTML = `<html><body><button class="yt-spec-button-shape-next" aria-label="Video berikutnya">n</button></body></html>`
	sess := session.NewFakeSession(session.FakeScript{Pages: []session.FakePage{first, session.SamplePage("b")}})

	res := nav.Advance(context.Background(), sess)
	assert.Equal(t, MethodPrimary, res.Method)
}

func TestAdvance_CancelledSkipsFallback(t *testing.T) {
	nav, _ := newTestNavigator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sess := session.NewFakeSession(session.FakeScript{Pages: session.Feed("a", "b")})

	res := nav.Advance(ctx, sess)
	assert.False(t, res.Advanced)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, sess.KeyPresses.Load())
}

func TestNextButtonSelector(t *testing.T) {
	assert.Equal(t,
		"button.yt-spec-button-shape-next[aria-label='Next video'], button.yt-spec-button-shape-next[aria-label='Video berikutnya']",
		NextButtonSelector([]string{"Next video", "Video berikutnya"}))
	assert.Equal(t, "button.yt-spec-button-shape-next", NextButtonSelector(nil))
}
