// Package sink owns the output file. One goroutine performs every write, so
// workers finishing at the same time never interleave rows or race on the
// header check.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/retry"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("sink closed")

// errUndoFailed marks an append that may have left rows behind. Retrying it
// could write the same rows twice.
var errUndoFailed = errors.New("could not undo partial append")

// Receipt reports what happened to one submitted batch
type Receipt struct {
	WorkerID   string
	Submitted  int
	Written    int
	Duplicates int
	Mirrored   int
}

// Options configures a Writer
type Options struct {
	CSVPath string
	// SQLitePath enables the SQLite mirror when set
	SQLitePath    string
	WriteAttempts int
	RetryDelay    time.Duration
	Logger        logger.Logger
}

type request struct {
	ctx      context.Context
	workerID string
	items    []models.ScrapedItem
	reply    chan response
}

type response struct {
	receipt Receipt
	err     error
}

// Writer appends deduplicated rows to the CSV
type Writer struct {
	opts   Options
	logger logger.Logger

	// ids is only touched by the run goroutine after Start
	ids    map[string]struct{}
	mirror *Mirror

	requests  chan request
	closing   chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	// openFile is swapped in tests
	openFile func(name string, flag int, perm os.FileMode) (*os.File, error)
}

// New creates a Writer. Nothing touches the disk until Start.
func New(opts Options) *Writer {
	if opts.WriteAttempts < 1 {
		opts.WriteAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{
		opts:     opts,
		logger:   log.WithField("component", "sink"),
		ids:      make(map[string]struct{}),
		requests: make(chan request),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		openFile: os.OpenFile,
	}
}

// Start prepares the destination and launches the writer goroutine. It
// creates the parent directory, loads the ids already in the file, writes
// the header if the file is new or empty and opens the mirror. ctx only
// bounds this preparation; the goroutine runs until Close.
func (w *Writer) Start(ctx context.Context) error {
	var err error
	w.startOnce.Do(func() {
		if err = w.prepare(ctx); err != nil {
			return
		}
		w.started.Store(true)
		go w.run()
		logger.LogComponentStart("sink", map[string]interface{}{
			"csv":      w.opts.CSVPath,
			"existing": len(w.ids),
			"mirror":   w.opts.SQLitePath,
		})
	})
	return err
}

func (w *Writer) prepare(ctx context.Context) error {
	if dir := filepath.Dir(w.opts.CSVPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	info, err := os.Stat(w.opts.CSVPath)
	switch {
	case err == nil && info.Size() > 0:
		if err := w.scanExisting(); err != nil {
			return fmt.Errorf("failed to scan existing output: %w", err)
		}
	case err == nil || errors.Is(err, os.ErrNotExist):
		if err := w.writeHeader(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to stat output: %w", err)
	}

	if w.opts.SQLitePath != "" {
		mirror, err := OpenMirror(ctx, w.opts.SQLitePath)
		if err != nil {
			// the CSV is authoritative, so a broken mirror is only logged
			w.logger.WithError(err).Warn("SQLite mirror disabled")
		} else {
			w.mirror = mirror
		}
	}
	return nil
}

// scanExisting loads every video_id already in the file so rows written by
// earlier runs are never repeated.
func (w *Writer) scanExisting() error {
	f, err := os.Open(w.opts.CSVPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return err
	}
	if len(header) <= models.ItemIDColumn || header[models.ItemIDColumn] != models.CSVHeader[models.ItemIDColumn] {
		w.logger.WarnWithFields("Existing output has an unexpected header", map[string]interface{}{
			"path": w.opts.CSVPath,
		})
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				w.logger.WarnWithFields("Skipping malformed row in existing output", map[string]interface{}{
					"line": parseErr.Line,
				})
				continue
			}
			return err
		}
		if len(record) > models.ItemIDColumn && record[models.ItemIDColumn] != "" {
			w.ids[record[models.ItemIDColumn]] = struct{}{}
		}
	}
}

func (w *Writer) writeHeader() error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(models.CSVHeader); err != nil {
		return err
	}
	cw.Flush()

	f, err := w.openFile(w.opts.CSVPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync header: %w", err)
	}
	return f.Close()
}

// Submit hands a batch to the writer goroutine and waits for the result.
// A failed write comes back as an errors.SinkWrite.
func (w *Writer) Submit(ctx context.Context, workerID string, items []models.ScrapedItem) (Receipt, error) {
	if !w.started.Load() {
		return Receipt{}, fmt.Errorf("sink not started")
	}

	req := request{
		ctx:      ctx,
		workerID: workerID,
		items:    items,
		reply:    make(chan response, 1),
	}

	select {
	case w.requests <- req:
	case <-w.closing:
		return Receipt{}, errs.SinkWrite(workerID, len(items), ErrClosed)
	case <-ctx.Done():
		return Receipt{}, errs.SinkWrite(workerID, len(items), ctx.Err())
	}

	select {
	case resp := <-req.reply:
		return resp.receipt, resp.err
	case <-ctx.Done():
		return Receipt{}, errs.SinkWrite(workerID, len(items), ctx.Err())
	}
}

// Close stops the writer goroutine once the batch in progress is done
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closing)
		if w.started.Load() {
			<-w.done
		}
		if w.mirror != nil {
			err = w.mirror.Close()
		}
		logger.LogComponentStop("sink", "closed")
	})
	return err
}

// Known reports how many distinct ids the output holds. It is only safe
// to call once Close has returned.
func (w *Writer) Known() int {
	return len(w.ids)
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case req := <-w.requests:
			receipt, err := w.handle(req)
			req.reply <- response{receipt: receipt, err: err}
		case <-w.closing:
			return
		}
	}
}

func (w *Writer) handle(req request) (Receipt, error) {
	receipt := Receipt{WorkerID: req.workerID, Submitted: len(req.items)}
	log := logger.ForWorker(w.logger, req.workerID)

	fresh := make([]models.ScrapedItem, 0, len(req.items))
	batch := make(map[string]struct{}, len(req.items))
	for _, item := range req.items {
		if _, ok := w.ids[item.ItemID]; ok {
			continue
		}
		if _, ok := batch[item.ItemID]; ok {
			continue
		}
		batch[item.ItemID] = struct{}{}
		fresh = append(fresh, item)
	}
	receipt.Duplicates = len(req.items) - len(fresh)
	if len(fresh) == 0 {
		return receipt, nil
	}

	err := retry.Do(req.ctx, func() error {
		return w.appendRows(fresh)
	}, &retry.Config{
		MaxAttempts: w.opts.WriteAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: w.opts.RetryDelay},
		RetryIf:     func(err error) bool { return err != nil && !errors.Is(err, errUndoFailed) },
		Logger:      log,
	})
	if err != nil {
		return receipt, errs.SinkWrite(req.workerID, len(fresh), err)
	}

	for _, item := range fresh {
		w.ids[item.ItemID] = struct{}{}
	}
	receipt.Written = len(fresh)

	if w.mirror != nil {
		n, err := w.mirror.Insert(req.ctx, fresh)
		if err != nil {
			log.WithError(err).Warn("SQLite mirror write failed")
		}
		receipt.Mirrored = n
	}

	log.InfoWithFields("Batch written", map[string]interface{}{
		"written":    receipt.Written,
		"duplicates": receipt.Duplicates,
		"path":       w.opts.CSVPath,
	})
	return receipt, nil
}

// appendRows writes rows in a single append. A write or sync failure is
// truncated back to the previous size so a retry cannot duplicate rows; when
// that is impossible the error is marked with errUndoFailed.
func (w *Writer) appendRows(items []models.ScrapedItem) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for i := range items {
		if err := cw.Write(items[i].Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	f, err := w.openFile(w.opts.CSVPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	var size int64 = -1
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		err = fmt.Errorf("failed to append rows: %w", err)
		return errors.Join(err, undoAppend(f, size))
	}
	if err := f.Sync(); err != nil {
		err = fmt.Errorf("failed to sync output: %w", err)
		return errors.Join(err, undoAppend(f, size))
	}
	return f.Close()
}

// undoAppend truncates f back to size and closes it
func undoAppend(f *os.File, size int64) error {
	defer f.Close()
	if size < 0 {
		return errUndoFailed
	}
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("%w: %v", errUndoFailed, err)
	}
	return nil
}
