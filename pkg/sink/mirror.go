package sink

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shortscraper/pkg/models"
)

//go:embed schema.sql
var schema string

const insertItem = `INSERT OR IGNORE INTO items (
	video_id, timestamp_scan, dummy_account_id, caption, hashtags_on_caption,
	hashtags_on_description, description, channel_name, raw_views_count,
	likes_count, comments_count, remix_count, upload_date, extracted_keywords,
	sound_id, sound_name, sound_artist, sound_usage, video_url_full,
	watch_duration_sec
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Mirror keeps a queryable SQLite copy of everything written to the CSV
type Mirror struct {
	db *sql.DB
}

// OpenMirror opens (creating if needed) the database at path
func OpenMirror(ctx context.Context, path string) (*Mirror, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create mirror directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}
	// one connection, so ":memory:" always sees the same database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply mirror schema: %w", err)
	}
	return &Mirror{db: db}, nil
}

// Insert stores items in one transaction and returns how many were new
func (m *Mirror) Insert(ctx context.Context, items []models.ScrapedItem) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertItem)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx,
			item.ItemID,
			item.ScanTimestamp.Format(time.RFC3339),
			item.WorkerID,
			item.Caption,
			strings.Join(item.CaptionHashtags, ", "),
			strings.Join(item.DescriptionHashtags, ", "),
			item.Description,
			item.ChannelName,
			item.RawViewCount,
			item.LikesDisplay,
			item.CommentsDisplay,
			item.RemixDisplay,
			item.UploadDateDisplay,
			item.ExtractedKeywords,
			item.SoundID,
			item.SoundName,
			item.SoundArtist,
			item.SoundUsage,
			item.FullURL,
			item.SimulatedWatchSeconds,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s: %w", item.ItemID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// Count returns the number of mirrored items
func (m *Mirror) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database
func (m *Mirror) Close() error {
	return m.db.Close()
}
