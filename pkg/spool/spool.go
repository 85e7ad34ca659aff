package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"shortscraper/pkg/logger"
	"shortscraper/pkg/models"
	"shortscraper/pkg/sink"
)

const version = 1

// Batch is the content of one spool file
type Batch struct {
	WorkerID  string               `json:"worker_id"`
	Items     []models.ScrapedItem `json:"items"`
	Cause     string               `json:"cause,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	Version   int                  `json:"version"`
}

// Entry describes a pending spool file
type Entry struct {
	Path      string
	WorkerID  string
	Items     int
	CreatedAt time.Time
	Size      int64
}

// Submitter accepts replayed batches; *sink.Writer satisfies it
type Submitter interface {
	Submit(ctx context.Context, workerID string, items []models.ScrapedItem) (sink.Receipt, error)
}

// ReplayResult summarizes a Replay call
type ReplayResult struct {
	Files      int
	Replayed   int
	Written    int
	Duplicates int
	Failed     []string
}

// Spool manages the spool directory
type Spool struct {
	dir    string
	logger logger.Logger
	now    func() time.Time
}

// New opens the spool at dir, or at DefaultDir when dir is empty
func New(dir string, log logger.Logger) (*Spool, error) {
	if dir == "" {
		def, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get spool directory: %w", err)
		}
		dir = def
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Spool{
		dir:    dir,
		logger: log.WithField("component", "spool"),
		now:    time.Now,
	}, nil
}

// Dir returns the spool directory
func (s *Spool) Dir() string {
	return s.dir
}

// Write saves a batch atomically and returns its path
func (s *Spool) Write(workerID string, items []models.ScrapedItem, cause error) (string, error) {
	batch := Batch{
		WorkerID:  workerID,
		Items:     items,
		CreatedAt: s.now(),
		Version:   version,
	}
	if cause != nil {
		batch.Cause = cause.Error()
	}

	path, file, err := s.claim(workerID, batch.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary spool file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(batch); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to encode batch: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to sync spool file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close spool file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to move spool file into place: %w", err)
	}

	s.logger.WarnWithFields("Batch spooled", map[string]interface{}{
		"worker": workerID,
		"items":  len(items),
		"path":   path,
	})
	return path, nil
}

// claim names the file <worker>-<unix>.json, adding a counter on collision,
// and creates its temporary file exclusively. Holding the temp file reserves
// the name, so two writers whose ids map to the same name never share one.
func (s *Spool) claim(workerID string, at time.Time) (string, *os.File, error) {
	base := fmt.Sprintf("%s-%d", safeName(workerID), at.Unix())
	path := filepath.Join(s.dir, base+".json")
	for i := 1; ; i++ {
		file, err := os.OpenFile(path+".tmp", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		switch {
		case err == nil:
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				return path, file, nil
			}
			file.Close()
			os.Remove(file.Name())
		case !errors.Is(err, fs.ErrExist):
			return "", nil, err
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s-%d.json", base, i))
	}
}

func safeName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	if name == "" {
		return "worker"
	}
	return name
}

// Load reads one spool file
func (s *Spool) Load(path string) (*Batch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool file: %w", err)
	}
	defer file.Close()

	var batch Batch
	if err := json.NewDecoder(file).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode spool file %s: %w", filepath.Base(path), err)
	}
	return &batch, nil
}

// List returns pending spool files, oldest first
func (s *Spool) List() ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		batch, err := s.Load(path)
		if err != nil {
			s.logger.WithError(err).Warn("Skipping unreadable spool file")
			continue
		}
		entries = append(entries, Entry{
			Path:      path,
			WorkerID:  batch.WorkerID,
			Items:     len(batch.Items),
			CreatedAt: batch.CreatedAt,
			Size:      info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Remove deletes a spool file
func (s *Spool) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete spool file: %w", err)
	}
	return nil
}

// Replay submits every pending batch to dst. A file is deleted only after
// its batch was written; failed files stay for the next replay.
func (s *Spool) Replay(ctx context.Context, dst Submitter) (ReplayResult, error) {
	entries, err := s.List()
	if err != nil {
		return ReplayResult{}, err
	}

	result := ReplayResult{Files: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.Load(entry.Path)
		if err != nil {
			result.Failed = append(result.Failed, entry.Path)
			continue
		}

		receipt, err := dst.Submit(ctx, batch.WorkerID, batch.Items)
		if err != nil {
			s.logger.WithError(err).WarnWithFields("Replay failed", map[string]interface{}{
				"path": entry.Path,
			})
			result.Failed = append(result.Failed, entry.Path)
			continue
		}

		if err := s.Remove(entry.Path); err != nil {
			s.logger.WithError(err).Warn("Replayed batch could not be removed")
		}
		result.Replayed++
		result.Written += receipt.Written
		result.Duplicates += receipt.Duplicates
	}

	s.logger.InfoWithFields("Spool replayed", map[string]interface{}{
		"files":    result.Files,
		"replayed": result.Replayed,
		"written":  result.Written,
		"failed":   len(result.Failed),
	})
	return result, nil
}
