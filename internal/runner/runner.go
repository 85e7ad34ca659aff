// Package runner starts one worker per configured profile, joins them and
// turns their summaries into the process exit code.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shortscraper/pkg/config"
	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/layout"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/report"
	"shortscraper/pkg/session"
	"shortscraper/pkg/sink"
	"shortscraper/pkg/spool"
	"shortscraper/pkg/worker"
)

// Exit codes
const (
	ExitOK         = 0
	ExitMisconfig  = 1
	ExitNoOutput   = 2
	ExitSinkFailed = 3
)

// Options configures a Runner
type Options struct {
	Factory session.Factory
	// Pacer returns the pacer for worker rank i; defaults to a fresh pacing.New
	Pacer    func(rank int) *pacing.Pacer
	Logger   logger.Logger
	Progress func(worker.Event)
	Now      func() time.Time
}

// Result is the outcome of one run
type Result struct {
	Started    time.Time
	Finished   time.Time
	Layout     layout.Plan
	Clamped    bool
	Workers    []models.WorkerSummary
	ExitCode   int
	TimedOut   bool
	ReportPath string
}

// Runner owns the sink and the workers for one run
type Runner struct {
	cfg    *config.Config
	opts   Options
	logger logger.Logger
}

// New validates cfg and creates a Runner. Invalid configuration comes
// back as an errors.Config.
func New(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, errs.Config(errors.New("config is nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Config(err)
	}
	if opts.Factory == nil {
		opts.Factory = session.NewChromeFactory(cfg.Browser, opts.Logger)
	}
	if opts.Pacer == nil {
		perMinute := cfg.Pacing.MaxNavigationsPerMinute
		opts.Pacer = func(int) *pacing.Pacer {
			return pacing.New(pacing.WithNavigationsPerMinute(perMinute))
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{
		cfg:    cfg,
		opts:   opts,
		logger: log.WithField("component", "runner"),
	}, nil
}

// Plan computes the window layout for the configured workers
func Plan(cfg *config.Config) (layout.Plan, bool) {
	return PlanFor(cfg, len(cfg.Workers))
}

// PlanFor computes the window layout for n workers on the configured screen
func PlanFor(cfg *config.Config, n int) (layout.Plan, bool) {
	width, height := cfg.Layout.ScreenSize()
	return layout.Compute(layout.Params{
		ScreenWidth:    width,
		ScreenHeight:   height,
		Workers:        n,
		MinWidth:       cfg.Layout.MinWidth,
		MinHeight:      cfg.Layout.MinHeight,
		HPad:           cfg.Layout.HPadding,
		VPad:           cfg.Layout.VPadding,
		ReservedBottom: cfg.Layout.ReservedBottom,
	})
}

// Run starts every worker, waits for all of them and closes the sink. The
// returned error covers setup failures only; worker failures are reported
// in the summaries and the exit code.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	result := &Result{Started: r.opts.Now()}
	result.Layout, result.Clamped = Plan(r.cfg)
	if result.Clamped {
		r.logger.WarnWithFields("Screen too small, windows will overlap the edge", map[string]interface{}{
			"width":  result.Layout.WindowWidth,
			"height": result.Layout.WindowHeight,
		})
	}

	out := sink.New(sink.Options{
		CSVPath:       r.cfg.Output.CSVPath,
		SQLitePath:    r.cfg.Output.SQLitePath,
		WriteAttempts: r.cfg.Output.WriteAttempts,
		Logger:        r.logger,
	})
	if err := out.Start(ctx); err != nil {
		result.ExitCode = ExitMisconfig
		return result, fmt.Errorf("failed to open output: %w", err)
	}

	var spooler worker.Spooler
	if r.cfg.Output.SpoolEnabled {
		sp, err := spool.New(r.cfg.Output.SpoolDir, r.logger)
		if err != nil {
			r.logger.WithError(err).Warn("Spool unavailable, failed batches will be lost")
		} else {
			spooler = sp
		}
	}

	runCtx := ctx
	if timeout := r.cfg.Scrape.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.LogComponentStart("runner", map[string]interface{}{
		"workers": len(r.cfg.Workers),
		"quota":   r.cfg.Scrape.Quota,
		"output":  r.cfg.Output.CSVPath,
		"grid":    fmt.Sprintf("%dx%d", result.Layout.Cols, result.Layout.Rows),
	})

	result.Workers = r.runWorkers(runCtx, result.Layout, out, spooler)
	result.TimedOut = ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
	if result.TimedOut {
		r.logger.Warn("Run timeout reached, workers were cancelled")
	}

	// the sink outlives every worker
	if err := out.Close(); err != nil {
		r.logger.WithError(err).Warn("Failed to close output")
	}

	result.Finished = r.opts.Now()
	result.ExitCode = ExitCode(result.Workers)

	if r.cfg.Output.Report {
		rep := report.New(r.cfg.Output.CSVPath, result.Layout, result.Workers, result.Started, result.Finished)
		rep.Clamped = result.Clamped
		rep.TimedOut = result.TimedOut
		rep.ExitCode = result.ExitCode
		path := report.PathFor(r.cfg.Output.CSVPath)
		if err := rep.Save(path); err != nil {
			r.logger.WithError(err).Warn("Failed to write run report")
		} else {
			result.ReportPath = path
		}
	}

	totals := report.Summarize(result.Workers)
	logger.LogMetrics("run", map[string]interface{}{
		"duration":   result.Finished.Sub(result.Started).String(),
		"workers":    totals.Workers,
		"collected":  totals.Collected,
		"written":    totals.Written,
		"duplicates": totals.Duplicates,
		"failed":     totals.Failed,
		"exit_code":  result.ExitCode,
	})
	logger.LogComponentStop("runner", "all workers joined")
	return result, nil
}

type ranked struct {
	rank    int
	summary models.WorkerSummary
}

func (r *Runner) runWorkers(ctx context.Context, plan layout.Plan, out worker.Submitter, spooler worker.Spooler) []models.WorkerSummary {
	n := len(r.cfg.Workers)
	results := make(chan ranked, n)

	var wg sync.WaitGroup
	for i, profile := range r.cfg.Workers {
		wg.Add(1)
		go func(i int, profile config.WorkerProfile) {
			defer wg.Done()
			results <- ranked{rank: i, summary: r.runWorker(ctx, i, profile, plan, out, spooler)}
		}(i, profile)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	summaries := make([]models.WorkerSummary, n)
	for res := range results {
		summaries[res.rank] = res.summary
		r.logger.InfoWithFields("Worker joined", map[string]interface{}{
			"worker":  res.summary.WorkerID,
			"state":   res.summary.FinalState.String(),
			"written": res.summary.Written,
		})
	}
	return summaries
}

// runWorker staggers the start of worker i by i random start delays, then runs it
func (r *Runner) runWorker(ctx context.Context, i int, profile config.WorkerProfile, plan layout.Plan, out worker.Submitter, spooler worker.Spooler) models.WorkerSummary {
	pacer := r.opts.Pacer(i)
	log := logger.ForWorker(r.logger, profile.ID)

	if i > 0 {
		delay := time.Duration(i) * pacer.Duration(pacing.Range{
			Min: r.cfg.Pacing.StartDelay.Min,
			Max: r.cfg.Pacing.StartDelay.Max,
		})
		log.DebugWithFields("Staggering worker start", map[string]interface{}{
			"delay": delay.String(),
		})
		if err := pacer.SleepFor(ctx, delay); err != nil {
			return r.notStarted(profile, models.StateTerminated, models.ReasonCancelled, nil)
		}
	}

	opts := worker.FromConfig(r.cfg, profile, plan.Rect(i))
	opts.UserAgent = pacer.Pick(r.cfg.Browser.UserAgents)
	opts.Factory = r.opts.Factory
	opts.Sink = out
	opts.Spool = spooler
	opts.Pacer = pacer
	opts.Logger = r.logger
	opts.Progress = r.opts.Progress
	opts.Now = r.opts.Now

	w, err := worker.New(opts)
	if err != nil {
		log.WithError(err).Error("Failed to create worker")
		return r.notStarted(profile, models.StateErrorTerminated, models.ReasonStartFailed, err)
	}
	return w.Run(ctx)
}

func (r *Runner) notStarted(profile config.WorkerProfile, state models.SessionState, reason models.StopReason, err error) models.WorkerSummary {
	now := r.opts.Now()
	summary := models.WorkerSummary{
		WorkerID:   profile.ID,
		Quota:      r.cfg.Scrape.Quota,
		FinalState: state,
		Reason:     reason,
		Started:    now,
		Finished:   now,
	}
	if err != nil {
		summary.Err = err.Error()
	}
	if r.opts.Progress != nil {
		r.opts.Progress(worker.Event{
			WorkerID: profile.ID,
			Kind:     worker.EventDone,
			State:    state,
			Reason:   reason,
			Quota:    summary.Quota,
			Summary:  &summary,
			At:       now,
		})
	}
	return summary
}

// ExitCode maps the worker summaries to the process exit code
func ExitCode(workers []models.WorkerSummary) int {
	withOutput, written := 0, 0
	for _, w := range workers {
		if w.Collected == 0 {
			continue
		}
		withOutput++
		if !w.SinkFailed() {
			written++
		}
	}
	switch {
	case withOutput == 0:
		return ExitNoOutput
	case written == 0:
		return ExitSinkFailed
	default:
		return ExitOK
	}
}
