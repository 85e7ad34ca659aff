// Package worker runs one browser profile through the collection loop.
//
// A worker moves Starting → Looping → Draining → Terminated. ErrorTerminated
// is absorbing: a worker that cannot start, or whose batch the sink refuses,
// ends there. Whatever happens, the session is released before Run returns.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/extractor"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/navigator"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/session"
)

// Worker collects items from one session
type Worker struct {
	opts      Options
	id        string
	logger    logger.Logger
	extractor *extractor.Extractor
	navigator *navigator.Navigator

	state   models.SessionState
	summary models.WorkerSummary
	items   []models.ScrapedItem
	seen    extractor.Seen
	lastErr error
}

// New validates opts and creates a Worker
func New(opts Options) (*Worker, error) {
	if opts.Profile.ID == "" {
		return nil, fmt.Errorf("worker id is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("worker %s: session factory is required", opts.Profile.ID)
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("worker %s: sink is required", opts.Profile.ID)
	}
	if opts.Quota < 1 {
		return nil, fmt.Errorf("worker %s: quota must be at least 1, got %d", opts.Profile.ID, opts.Quota)
	}
	if opts.ErrorBudget < 1 {
		opts.ErrorBudget = 5
	}
	if opts.MaxSkips < 1 {
		opts.MaxSkips = 4 * opts.Quota
	}
	if opts.Pacer == nil {
		opts.Pacer = pacing.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := logger.ForWorker(opts.Logger, opts.Profile.ID)

	return &Worker{
		opts:   opts,
		id:     opts.Profile.ID,
		logger: log,
		extractor: extractor.New(extractor.Options{
			WorkerID:      opts.Profile.ID,
			MarkerTimeout: opts.MarkerTimeout,
			ExpandTimeout: opts.ExpandTimeout,
			PostClick:     opts.Delays.PostClick,
			Pacer:         opts.Pacer,
			Logger:        log,
			Now:           opts.Now,
		}),
		navigator: navigator.New(navigator.Options{
			NextLabels:   opts.NextLabels,
			ClickTimeout: opts.ClickTimeout,
			PostClick:    opts.Delays.PostClick,
			PostScroll:   opts.Delays.PostScroll,
			Pacer:        opts.Pacer,
			Logger:       log,
		}),
		seen: make(extractor.Seen),
	}, nil
}

// ID returns the worker's profile id
func (w *Worker) ID() string {
	return w.id
}

// Run drives the worker to a final state and returns its summary. A
// cancelled ctx stops the loop, but whatever was collected is still
// submitted to the sink.
func (w *Worker) Run(ctx context.Context) models.WorkerSummary {
	w.state = models.StateStarting
	w.summary = models.WorkerSummary{
		WorkerID:   w.id,
		Quota:      w.opts.Quota,
		FinalState: models.StateStarting,
		Started:    w.opts.Now(),
	}
	w.emit(Event{Kind: EventState})

	summary := w.run(ctx)
	summary.Finished = w.opts.Now()

	w.logger.InfoWithFields("Worker finished", map[string]interface{}{
		"state":      summary.FinalState.String(),
		"reason":     string(summary.Reason),
		"collected":  summary.Collected,
		"written":    summary.Written,
		"iterations": summary.Iterations,
		"errors":     summary.Errors,
		"duration":   summary.Duration().String(),
	})
	w.emit(Event{Kind: EventDone, Reason: summary.Reason, Summary: &summary})
	return summary
}

func (w *Worker) run(ctx context.Context) (summary models.WorkerSummary) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorWithFields("Worker panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			summary = w.finish(models.StateErrorTerminated, models.ReasonPanic, fmt.Errorf("panic: %v", r))
		}
	}()

	sess, err := w.opts.Factory.Acquire(ctx, session.Spec{
		WorkerID:    w.id,
		ProfilePath: w.opts.Profile.ProfilePath,
		ProfileDir:  w.opts.Profile.ProfileDir,
		Window:      w.opts.Window,
		UserAgent:   w.opts.UserAgent,
		VPN:         w.opts.VPN,
	})
	if err != nil {
		if ctx.Err() != nil {
			return w.finish(models.StateTerminated, models.ReasonCancelled, nil)
		}
		w.logger.WithError(err).Error("Failed to start browser session")
		return w.finish(models.StateErrorTerminated, models.ReasonDriverInit, err)
	}
	defer w.release(sess)

	if err := sess.Navigate(ctx, w.opts.FeedURL); err != nil {
		if ctx.Err() != nil {
			return w.finish(models.StateTerminated, models.ReasonCancelled, nil)
		}
		w.logger.WithError(err).ErrorWithFields("Failed to load feed", map[string]interface{}{
			"url": w.opts.FeedURL,
		})
		return w.finish(models.StateErrorTerminated, models.ReasonStartFailed, fmt.Errorf("failed to load feed: %w", err))
	}
	if err := w.opts.Pacer.Sleep(ctx, w.opts.Delays.Initial); err != nil {
		return w.finish(models.StateTerminated, models.ReasonCancelled, nil)
	}

	w.transition(models.StateLooping, models.ReasonNone)
	reason := w.loop(ctx, sess)
	return w.drain(ctx, reason)
}

// loop runs iterations until one of them stops it. Every iteration ends in
// exactly one of collected, skipped or charged, so the total is bounded by
// quota + error budget + skip allowance.
func (w *Worker) loop(ctx context.Context, sess session.Session) models.StopReason {
	limit := w.opts.Quota + w.opts.ErrorBudget + w.opts.MaxSkips
	consecutive := 0

	for len(w.items) < w.opts.Quota {
		if ctx.Err() != nil {
			return models.ReasonCancelled
		}
		if w.summary.Iterations >= limit {
			w.logger.WarnWithFields("Iteration limit reached", map[string]interface{}{
				"limit":     limit,
				"collected": len(w.items),
			})
			return models.ReasonSkipBudget
		}
		w.summary.Iterations++

		if reason, stop := w.iterate(ctx, sess, &consecutive); stop {
			return reason
		}
	}
	return models.ReasonQuotaReached
}

func (w *Worker) iterate(ctx context.Context, sess session.Session, consecutive *int) (reason models.StopReason, stop bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorWithFields("Recovered panic in iteration", map[string]interface{}{
				"panic":     fmt.Sprint(r),
				"iteration": w.summary.Iterations,
			})
			reason, stop = w.charge(consecutive, fmt.Errorf("panic: %v", r))
		}
	}()

	res := w.extractor.Extract(ctx, sess, w.seen)
	switch {
	case res.Outcome == extractor.Extracted:
		*consecutive = 0
		w.items = append(w.items, *res.Item)
		logger.LogWorkerProgress(w.logger, res.ItemID, len(w.items), w.opts.Quota)
		w.emit(Event{Kind: EventItem, ItemID: res.ItemID})

		if len(w.items) >= w.opts.Quota {
			return models.ReasonQuotaReached, true
		}
		if err := w.watch(ctx); err != nil {
			return models.ReasonCancelled, true
		}

	case res.Outcome.Counts():
		if ctx.Err() != nil {
			return models.ReasonCancelled, true
		}
		err := res.Err
		if err == nil {
			err = errors.New(res.Outcome.String())
		}
		if reason, stop := w.charge(consecutive, err); stop {
			return reason, true
		}

	default:
		w.logger.DebugWithFields("Skipping item", map[string]interface{}{
			"outcome": res.Outcome.String(),
			"item_id": res.ItemID,
		})
	}

	nav := w.navigator.Advance(ctx, sess)
	if ctx.Err() != nil {
		return models.ReasonCancelled, true
	}
	if !nav.Advanced {
		w.lastErr = errs.NavigationExhausted(w.id, nav.Err)
		return models.ReasonNavigationFailed, true
	}

	if err := w.pause(ctx); err != nil {
		return models.ReasonCancelled, true
	}
	return models.ReasonNone, false
}

// charge counts err against the consecutive-error budget
func (w *Worker) charge(consecutive *int, err error) (models.StopReason, bool) {
	*consecutive++
	w.summary.Errors++
	w.lastErr = err

	w.logger.WithError(err).WarnWithFields("Iteration failed", map[string]interface{}{
		"consecutive": *consecutive,
		"budget":      w.opts.ErrorBudget,
	})
	w.emit(Event{Kind: EventError, Message: err.Error()})

	if *consecutive >= w.opts.ErrorBudget {
		return models.ReasonErrorBudget, true
	}
	return models.ReasonNone, false
}

// watch lingers on the current item with the configured probability
func (w *Worker) watch(ctx context.Context) error {
	if !w.opts.Pacer.Chance(w.opts.WatchProbability) {
		return nil
	}
	w.logger.Debug("Watching item")
	if err := w.opts.Pacer.Sleep(ctx, w.opts.Delays.Watch); err != nil {
		return err
	}
	return w.opts.Pacer.Sleep(ctx, w.opts.Delays.AfterWatch)
}

// pause applies the general delay, or the long pause every LongPauseEvery iterations
func (w *Worker) pause(ctx context.Context) error {
	every := w.opts.Delays.LongPauseEvery
	if every > 0 && w.summary.Iterations%every == 0 {
		w.logger.DebugWithFields("Taking a long pause", map[string]interface{}{
			"iteration": w.summary.Iterations,
		})
		return w.opts.Pacer.Sleep(ctx, w.opts.Delays.LongPause)
	}
	return w.opts.Pacer.Sleep(ctx, w.opts.Delays.General)
}

// drain submits the collected batch. The submit ignores ctx cancellation so
// an interrupted run still keeps what it collected.
func (w *Worker) drain(ctx context.Context, reason models.StopReason) models.WorkerSummary {
	w.transition(models.StateDraining, reason)

	batch := models.DedupByID(w.items)
	w.summary.Collected = len(batch)
	if len(batch) == 0 {
		w.logger.Info("Nothing collected, skipping sink")
		return w.finish(models.StateTerminated, reason, w.lastErr)
	}

	receipt, err := w.opts.Sink.Submit(context.WithoutCancel(ctx), w.id, batch)
	if err != nil {
		w.logger.WithError(err).ErrorWithFields("Batch could not be written", map[string]interface{}{
			"items": len(batch),
		})
		if w.opts.Spool != nil {
			path, spoolErr := w.opts.Spool.Write(w.id, batch, err)
			if spoolErr != nil {
				w.logger.WithError(spoolErr).Error("Failed to spool batch, items are lost")
			} else {
				w.summary.SpoolPath = path
			}
		}
		return w.finish(models.StateErrorTerminated, models.ReasonSinkWriteFailed, err)
	}

	w.summary.Written = receipt.Written
	w.summary.Duplicates = receipt.Duplicates
	return w.finish(models.StateTerminated, reason, w.lastErr)
}

func (w *Worker) finish(state models.SessionState, reason models.StopReason, err error) models.WorkerSummary {
	w.summary.Reason = reason
	if err != nil {
		w.summary.Err = err.Error()
	}
	w.transition(state, reason)
	return w.summary
}

func (w *Worker) transition(to models.SessionState, reason models.StopReason) {
	from := w.state
	w.state = to
	w.summary.FinalState = to
	logger.LogTransition(w.logger, from, to, string(reason))
	w.emit(Event{Kind: EventState, Reason: reason})
}

func (w *Worker) release(sess session.Session) {
	if err := sess.Close(); err != nil {
		w.logger.WithError(err).Warn("Failed to release session")
		return
	}
	w.logger.Debug("Session released")
}

func (w *Worker) emit(ev Event) {
	if w.opts.Progress == nil {
		return
	}
	ev.WorkerID = w.id
	ev.State = w.state
	ev.Collected = len(w.items)
	ev.Quota = w.opts.Quota
	ev.Errors = w.summary.Errors
	ev.At = w.opts.Now()
	w.opts.Progress(ev)
}
