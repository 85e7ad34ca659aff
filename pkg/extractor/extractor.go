// Package extractor turns the page a session is showing into a ScrapedItem.
//
// Extraction never raises: every call returns a Result whose Outcome tells
// the worker loop what happened. The seen set is only written after the
// item has been fully assembled, so a failed or skipped cycle leaves it
// exactly as it was.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/session"
	"shortscraper/pkg/textfix"
)

// Outcome tags an extraction result
type Outcome int

const (
	// Extracted: a new item was assembled and added to seen
	Extracted Outcome = iota
	// Duplicate: the current item id is already in seen
	Duplicate
	// NoItemID: the current URL carries no item id
	NoItemID
	// Timeout: the page marker never became visible
	Timeout
	// Unparseable: the description panel is absent, usually an ad
	Unparseable
	// Failed: reading or assembling the page failed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Extracted:
		return "extracted"
	case Duplicate:
		return "duplicate"
	case NoItemID:
		return "no_item_id"
	case Timeout:
		return "timeout"
	case Unparseable:
		return "unparseable"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Counts reports whether the outcome is charged to the consecutive-error budget
func (o Outcome) Counts() bool {
	return o == Timeout || o == Failed
}

// Result is the outcome of one extraction cycle
type Result struct {
	Outcome Outcome
	ItemID  string
	Item    *models.ScrapedItem
	Err     error
}

// Seen is the set of item ids a worker has already collected
type Seen map[string]struct{}

// Has reports whether id was collected
func (s Seen) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id as collected
func (s Seen) Add(id string) {
	s[id] = struct{}{}
}

// Options configures an Extractor
type Options struct {
	WorkerID      string
	MarkerTimeout time.Duration
	ExpandTimeout time.Duration
	// PostClick is waited after the description expander was clicked
	PostClick pacing.Range
	Pacer     *pacing.Pacer
	Logger    logger.Logger
	// Now stamps ScanTimestamp; defaults to time.Now
	Now func() time.Time
}

// Extractor reads items for one worker
type Extractor struct {
	opts   Options
	logger logger.Logger
}

// New creates an Extractor
func New(opts Options) *Extractor {
	if opts.MarkerTimeout <= 0 {
		opts.MarkerTimeout = 20 * time.Second
	}
	if opts.ExpandTimeout <= 0 {
		opts.ExpandTimeout = 5 * time.Second
	}
	if opts.Pacer == nil {
		opts.Pacer = pacing.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		opts:   opts,
		logger: log.WithField("component", "extractor"),
	}
}

// Extract reads the item the session is currently showing. On Extracted the
// item id has been added to seen; every other outcome leaves seen untouched.
func (e *Extractor) Extract(ctx context.Context, sess session.Session, seen Seen) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: Failed, ItemID: res.ItemID, Err: fmt.Errorf("panic during extraction: %v", r)}
		}
	}()

	if err := sess.WaitVisible(ctx, MarkerSelector, e.opts.MarkerTimeout); err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: Failed, Err: ctx.Err()}
		}
		return Result{Outcome: Timeout, Err: errs.ExtractionTimeout(e.opts.WorkerID, MarkerSelector, err)}
	}

	currentURL, err := sess.CurrentURL(ctx)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}
	id, ok := ItemID(currentURL)
	if !ok {
		return Result{Outcome: NoItemID}
	}
	if seen.Has(id) {
		return Result{Outcome: Duplicate, ItemID: id}
	}

	expanded := e.expand(ctx, sess)

	html, err := sess.HTML(ctx)
	if err != nil {
		return Result{Outcome: Failed, ItemID: id, Err: err}
	}

	item, outcome, err := e.parse(id, textfix.Normalize(html), expanded)
	if outcome != Extracted {
		return Result{Outcome: outcome, ItemID: id, Err: err}
	}

	seen.Add(id)
	return Result{Outcome: Extracted, ItemID: id, Item: item}
}

// expand clicks the description expander. Missing or unclickable expanders
// are normal, so failure only means the snippet is used instead.
func (e *Extractor) expand(ctx context.Context, sess session.Session) bool {
	if err := sess.Click(ctx, ExpandSelector, e.opts.ExpandTimeout); err != nil {
		e.logger.DebugWithFields("Description expander not clickable", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	if err := e.opts.Pacer.Sleep(ctx, e.opts.PostClick); err != nil {
		return false
	}
	return true
}

func (e *Extractor) parse(id, html string, expanded bool) (*models.ScrapedItem, Outcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, Failed, fmt.Errorf("failed to parse page: %w", err)
	}

	panels := doc.Find(PanelSelector)
	if panels.Length() < 2 {
		return nil, Unparseable, nil
	}

	p := newPage(doc, panels.Eq(1), expanded)
	item := &models.ScrapedItem{
		ItemID:                id,
		ChannelID:             models.NotAvailable,
		SoundID:               models.NotAvailable,
		SoundArtist:           models.NotAvailable,
		SoundUsage:            models.NotAvailable,
		ScanTimestamp:         e.opts.Now(),
		WorkerID:              e.opts.WorkerID,
		FullURL:               models.URLFor(id),
		SimulatedWatchSeconds: e.opts.Pacer.IntBetween(5, 15),
	}

	for _, f := range fields {
		value, ok := f.Resolve(p)
		if !ok {
			value = f.Default
			e.logger.WithError(errs.StructuralParseMiss(e.opts.WorkerID, f.Name)).
				DebugWithFields("Field missing, default used", map[string]interface{}{
					"item_id": id,
					"field":   f.Name,
				})
		}
		f.Assign(item, value)
	}
	for _, f := range tagFields {
		f.Assign(item, f.Resolve(p))
	}

	return item, Extracted, nil
}
