package runner

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortscraper/pkg/config"
	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/pacing"
	"shortscraper/pkg/report"
	"shortscraper/pkg/session"
	"shortscraper/pkg/spool"
	"shortscraper/pkg/worker"
)

func testConfig(t *testing.T, workers int) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	for i := 1; i <= workers; i++ {
		cfg.Workers = append(cfg.Workers, config.WorkerProfile{
			ID:          fmt.Sprintf("w%d", i),
			ProfilePath: filepath.Join(dir, "profiles", fmt.Sprintf("w%d", i)),
		})
	}
	cfg.Scrape.Quota = 5
	cfg.Scrape.WatchProbability = 0
	cfg.Output.CSVPath = filepath.Join(dir, "out", "raw.csv")
	cfg.Output.SpoolDir = filepath.Join(dir, "spool")
	cfg.Pacing.StartDelay = config.DelayRange{Min: 5 * time.Second, Max: 5 * time.Second}
	return cfg
}

// feedFor gives each worker its own ids so global dedup keeps every row
func feedFor(workerID string, n int) []session.FakePage {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-item%d", workerID, i)
	}
	return session.Feed(ids...)
}

type recorders struct {
	mu   sync.Mutex
	recs map[int]*pacing.Recorder
}

func (r *recorders) pacer(rank int) *pacing.Pacer {
	p, rec := pacing.Instant(uint64(rank + 1))
	r.mu.Lock()
	r.recs[rank] = rec
	r.mu.Unlock()
	return p
}

func newRunner(t *testing.T, cfg *config.Config, factory session.Factory, progress func(worker.Event)) (*Runner, *recorders) {
	t.Helper()
	recs := &recorders{recs: make(map[int]*pacing.Recorder)}
	r, err := New(cfg, Options{
		Factory:  factory,
		Pacer:    recs.pacer,
		Logger:   logger.NewNopLogger(),
		Progress: progress,
	})
	require.NoError(t, err)
	return r, recs
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunner_ThreeWorkersFillQuota(t *testing.T) {
	cfg := testConfig(t, 3)
	factory := session.NewFakeFactory(session.FakeScript{})
	for _, w := range cfg.Workers {
		factory.Script(w.ID, session.FakeScript{Pages: feedFor(w.ID, 8)})
	}
	r, recs := newRunner(t, cfg, factory, nil)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExitOK, result.ExitCode)
	require.Len(t, result.Workers, 3)
	for i, s := range result.Workers {
		assert.Equal(t, cfg.Workers[i].ID, s.WorkerID, "summaries keep worker order")
		assert.Equal(t, models.StateTerminated, s.FinalState)
		assert.Equal(t, models.ReasonQuotaReached, s.Reason)
		assert.Equal(t, 5, s.Written)
	}

	records := readRows(t, cfg.Output.CSVPath)
	require.Len(t, records, 16)
	assert.Equal(t, models.CSVHeader, records[0])
	seen := make(map[string]bool)
	for _, row := range records[1:] {
		id := row[models.ItemIDColumn]
		assert.False(t, seen[id], "duplicate row %s", id)
		seen[id] = true
	}

	// worker i waits i start delays
	for rank := 1; rank < 3; rank++ {
		delays := recs.recs[rank].Delays()
		require.NotEmpty(t, delays)
		assert.Equal(t, time.Duration(rank)*5*time.Second, delays[0])
	}

	// every worker got its own tile
	windows := make(map[string]bool)
	for _, spec := range factory.Specs() {
		windows[fmt.Sprintf("%d,%d", spec.Window.X, spec.Window.Y)] = true
		assert.Contains(t, cfg.Browser.UserAgents, spec.UserAgent)
	}
	assert.Len(t, windows, 3)

	require.NotEmpty(t, result.ReportPath)
	rep, err := report.Load(result.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, 15, rep.Totals.Written)
	assert.Equal(t, ExitOK, rep.ExitCode)
	assert.Equal(t, 2, rep.Layout.Cols)
}

func TestRunner_NavigationFailureKeepsPartialOutput(t *testing.T) {
	cfg := testConfig(t, 2)
	factory := session.NewFakeFactory(session.FakeScript{})
	factory.Script("w1", session.FakeScript{Pages: feedFor("w1", 8)})
	factory.Script("w2", session.FakeScript{Pages: feedFor("w2", 2)})
	r, _ := newRunner(t, cfg, factory, nil)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExitOK, result.ExitCode)
	assert.Equal(t, models.ReasonNavigationFailed, result.Workers[1].Reason)
	assert.Equal(t, 2, result.Workers[1].Written)
	assert.Len(t, readRows(t, cfg.Output.CSVPath), 1+5+2)
}

func TestRunner_NoOutput(t *testing.T) {
	cfg := testConfig(t, 2)
	factory := session.NewFakeFactory(session.FakeScript{})
	factory.FailAcquire("w1", errors.New("profile locked"))
	factory.FailAcquire("w2", errors.New("profile locked"))
	r, _ := newRunner(t, cfg, factory, nil)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExitNoOutput, result.ExitCode)
	for _, s := range result.Workers {
		assert.Equal(t, models.StateErrorTerminated, s.FinalState)
		assert.Equal(t, models.ReasonDriverInit, s.Reason)
	}
	assert.Len(t, readRows(t, cfg.Output.CSVPath), 1, "header only")
}

func TestRunner_AllSinkWritesFail(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Output.WriteAttempts = 1
	factory := session.NewFakeFactory(session.FakeScript{})
	for _, w := range cfg.Workers {
		factory.Script(w.ID, session.FakeScript{Pages: feedFor(w.ID, 8)})
	}

	// once the workers are looping, replace the output with a directory
	// so every append fails
	var once sync.Once
	progress := func(ev worker.Event) {
		if ev.Kind == worker.EventState && ev.State == models.StateLooping {
			once.Do(func() {
				assert.NoError(t, os.Remove(cfg.Output.CSVPath))
				assert.NoError(t, os.Mkdir(cfg.Output.CSVPath, 0755))
			})
		}
	}
	r, _ := newRunner(t, cfg, factory, progress)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ExitSinkFailed, result.ExitCode)
	for _, s := range result.Workers {
		assert.Equal(t, models.StateErrorTerminated, s.FinalState)
		assert.True(t, s.SinkFailed())
		assert.NotEmpty(t, s.SpoolPath)
	}

	sp, err := spool.New(cfg.Output.SpoolDir, logger.NewNopLogger())
	require.NoError(t, err)
	entries, err := sp.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunner_RunTimeoutCancelsWorkers(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Scrape.RunTimeout = 50 * time.Millisecond
	cfg.Output.Report = false

	blocking := factoryFunc(func(ctx context.Context, spec session.Spec) (session.Session, error) {
		<-ctx.Done()
		return nil, errs.DriverInit(spec.WorkerID, ctx.Err())
	})
	r, _ := newRunner(t, cfg, blocking, nil)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.Equal(t, ExitNoOutput, result.ExitCode)
	assert.Empty(t, result.ReportPath)
	for _, s := range result.Workers {
		assert.Equal(t, models.ReasonCancelled, s.Reason)
	}
}

func TestRunner_ProgressEvents(t *testing.T) {
	cfg := testConfig(t, 2)
	factory := session.NewFakeFactory(session.FakeScript{})
	for _, w := range cfg.Workers {
		factory.Script(w.ID, session.FakeScript{Pages: feedFor(w.ID, 8)})
	}

	var mu sync.Mutex
	done := make(map[string]bool)
	progress := func(ev worker.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Kind == worker.EventDone {
			done[ev.WorkerID] = true
		}
	}
	r, _ := newRunner(t, cfg, factory, progress)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"w1": true, "w2": true}, done)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, 0)

	_, err := New(cfg, Options{Factory: session.NewFakeFactory(session.FakeScript{})})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeConfig, errs.TypeOf(err))
	assert.Contains(t, err.Error(), "at least one worker")
}

func TestExitCode(t *testing.T) {
	ok := models.WorkerSummary{Collected: 3, Written: 3, FinalState: models.StateTerminated}
	dupOnly := models.WorkerSummary{Collected: 2, Duplicates: 2, FinalState: models.StateTerminated}
	failed := models.WorkerSummary{Collected: 4, FinalState: models.StateErrorTerminated, Reason: models.ReasonSinkWriteFailed}
	empty := models.WorkerSummary{FinalState: models.StateTerminated, Reason: models.ReasonErrorBudget}
	noDriver := models.WorkerSummary{FinalState: models.StateErrorTerminated, Reason: models.ReasonDriverInit}

	tests := []struct {
		name    string
		workers []models.WorkerSummary
		want    int
	}{
		{"all written", []models.WorkerSummary{ok, ok}, ExitOK},
		{"one written one failed", []models.WorkerSummary{ok, failed}, ExitOK},
		{"duplicates still count as a successful write", []models.WorkerSummary{dupOnly}, ExitOK},
		{"nothing collected", []models.WorkerSummary{empty, noDriver}, ExitNoOutput},
		{"no workers", nil, ExitNoOutput},
		{"every sink write failed", []models.WorkerSummary{failed, failed, empty}, ExitSinkFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.workers))
		})
	}
}

func TestPlan(t *testing.T) {
	cfg := testConfig(t, 4)
	plan, clamped := Plan(cfg)
	assert.False(t, clamped)
	assert.Equal(t, 2, plan.Cols)
	assert.Equal(t, 2, plan.Rows)
	assert.Len(t, plan.Positions, 4)

	plan, _ = PlanFor(cfg, 7)
	assert.Equal(t, 3, plan.Cols)
	assert.Equal(t, 3, plan.Rows)
	assert.Len(t, plan.Positions, 7)
}

type factoryFunc func(ctx context.Context, spec session.Spec) (session.Session, error)

func (f factoryFunc) Acquire(ctx context.Context, spec session.Spec) (session.Session, error) {
	return f(ctx, spec)
}
