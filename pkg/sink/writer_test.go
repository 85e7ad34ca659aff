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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "shortscraper/pkg/errors"
	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
)

func makeItems(worker string, ids ...string) []models.ScrapedItem {
	items := make([]models.ScrapedItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.ScrapedItem{
			ItemID:          id,
			Caption:         "caption, with comma",
			CaptionHashtags: []string{"#a", "#b"},
			ScanTimestamp:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			WorkerID:        worker,
			FullURL:         models.URLFor(id),
		})
	}
	return items
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func startWriter(t *testing.T, opts Options) *Writer {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	w := New(opts)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWriter_NewFileGetsHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	w := startWriter(t, Options{CSVPath: path})

	receipt, err := w.Submit(context.Background(), "w1", makeItems("w1", "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.Written)
	assert.Zero(t, receipt.Duplicates)

	receipt, err = w.Submit(context.Background(), "w2", makeItems("w2", "d", "e"))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Written)
	require.NoError(t, w.Close())

	records := readCSV(t, path)
	require.Len(t, records, 6)
	assert.Equal(t, models.CSVHeader, records[0])
	assert.Equal(t, "a", records[1][models.ItemIDColumn])
	assert.Equal(t, "caption, with comma", records[1][3])
	assert.Equal(t, "#a, #b", records[1][4])
	assert.Equal(t, "2025-01-02T03:04:05Z", records[1][0])
	assert.Equal(t, "e", records[5][models.ItemIDColumn])
}

func TestWriter_AppendsAcrossRunsWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	first := startWriter(t, Options{CSVPath: path})
	_, err := first.Submit(context.Background(), "w1", makeItems("w1", "a", "b"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := startWriter(t, Options{CSVPath: path})
	receipt, err := second.Submit(context.Background(), "w1", makeItems("w1", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Written)
	assert.Equal(t, 1, receipt.Duplicates)
	require.NoError(t, second.Close())
	assert.Equal(t, 3, second.Known())

	records := readCSV(t, path)
	require.Len(t, records, 4)
	headers := 0
	for _, r := range records {
		if r[models.ItemIDColumn] == "video_id" {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
}

func TestWriter_EmptyExistingFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	w := startWriter(t, Options{CSVPath: path})
	_, err := w.Submit(context.Background(), "w1", makeItems("w1", "a"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, models.CSVHeader, records[0])
}

func TestWriter_DedupsAcrossWorkersAndWithinBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := startWriter(t, Options{CSVPath: path})

	r1, err := w.Submit(context.Background(), "w1", makeItems("w1", "a", "b", "a"))
	require.NoError(t, err)
	assert.Equal(t, 2, r1.Written)
	assert.Equal(t, 1, r1.Duplicates)

	r2, err := w.Submit(context.Background(), "w2", makeItems("w2", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Written)
	assert.Equal(t, 1, r2.Duplicates)

	r3, err := w.Submit(context.Background(), "w3", nil)
	require.NoError(t, err)
	assert.Zero(t, r3.Written)

	require.NoError(t, w.Close())
	assert.Len(t, readCSV(t, path), 4)
}

func TestWriter_ConcurrentSubmits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := startWriter(t, Options{CSVPath: path})

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := make([]string, perWorker)
			for j := range ids {
				ids[j] = fmt.Sprintf("w%d-%d", i, j)
			}
			_, err := w.Submit(context.Background(), fmt.Sprintf("w%d", i), makeItems("w", ids...))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	records := readCSV(t, path)
	assert.Len(t, records, workers*perWorker+1)
}

func TestWriter_RetriesThenSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := startWriter(t, Options{CSVPath: path, WriteAttempts: 3})

	var calls atomic.Int32
	w.openFile = func(name string, flag int, perm os.FileMode) (*os.File, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("file locked")
		}
		return os.OpenFile(name, flag, perm)
	}

	receipt, err := w.Submit(context.Background(), "w1", makeItems("w1", "a"))
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Written)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWriter_FailureIsSinkWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := startWriter(t, Options{CSVPath: path, WriteAttempts: 2})

	var calls atomic.Int32
	w.openFile = func(name string, flag int, perm os.FileMode) (*os.File, error) {
		calls.Add(1)
		return nil, errors.New("disk full")
	}

	receipt, err := w.Submit(context.Background(), "w1", makeItems("w1", "a", "b"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeSinkWrite, errs.TypeOf(err))
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, receipt.Written)
	assert.EqualValues(t, 2, calls.Load())

	// the failed ids are not remembered, so a later retry can still write them
	w.openFile = os.OpenFile
	receipt, err = w.Submit(context.Background(), "w1", makeItems("w1", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Written)
}

func TestWriter_SyncFailureIsNotRetriedWhenAppendCannotBeUndone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := startWriter(t, Options{CSVPath: path, WriteAttempts: 3})

	// a pipe accepts the write but rejects both fsync and truncate
	r, pw, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	var calls atomic.Int32
	w.openFile = func(name string, flag int, perm os.FileMode) (*os.File, error) {
		if calls.Add(1) > 1 {
			return os.OpenFile(name, flag, perm)
		}
		return pw, nil
	}

	receipt, err := w.Submit(context.Background(), "w1", makeItems("w1", "a"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeSinkWrite, errs.TypeOf(err))
	assert.ErrorIs(t, err, errUndoFailed)
	assert.ErrorContains(t, err, "failed to sync output")
	assert.Zero(t, receipt.Written)
	assert.EqualValues(t, 1, calls.Load(), "no second append after a failed undo")

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0][models.ItemIDColumn])

	require.NoError(t, w.Close())
	assert.Len(t, readCSV(t, path), 1, "header only")
}

func TestUndoAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("header\n"), 0644))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("row\n")
	require.NoError(t, err)
	require.NoError(t, undoAppend(f, int64(len("header\n"))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "header\n", string(data))

	f, err = os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	assert.ErrorIs(t, undoAppend(f, -1), errUndoFailed)
}

func TestWriter_SubmitAfterClose(t *testing.T) {
	w := startWriter(t, Options{CSVPath: filepath.Join(t.TempDir(), "out.csv")})
	require.NoError(t, w.Close())

	_, err := w.Submit(context.Background(), "w1", makeItems("w1", "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, errs.ErrorTypeSinkWrite, errs.TypeOf(err))
}

func TestWriter_SubmitBeforeStart(t *testing.T) {
	w := New(Options{CSVPath: filepath.Join(t.TempDir(), "out.csv"), Logger: logger.NewNopLogger()})
	_, err := w.Submit(context.Background(), "w1", makeItems("w1", "a"))
	assert.Error(t, err)
}

func TestWriter_SQLiteMirror(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db", "items.sqlite")
	w := startWriter(t, Options{CSVPath: filepath.Join(dir, "out.csv"), SQLitePath: dbPath})

	receipt, err := w.Submit(context.Background(), "w1", makeItems("w1", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Mirrored)
	require.NoError(t, w.Close())

	mirror, err := OpenMirror(context.Background(), dbPath)
	require.NoError(t, err)
	defer mirror.Close()

	n, err := mirror.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	inserted, err := mirror.Insert(context.Background(), makeItems("w2", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestMirror_InMemory(t *testing.T) {
	mirror, err := OpenMirror(context.Background(), ":memory:")
	require.NoError(t, err)
	defer mirror.Close()

	inserted, err := mirror.Insert(context.Background(), makeItems("w1", "x", "y", "x"))
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
}
