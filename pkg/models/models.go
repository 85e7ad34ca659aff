package models

import (
	"strconv"
	"strings"
	"time"
)

// Placeholder literals written when a field could not be resolved
const (
	NotAvailable       = "NaN"
	ZeroCount          = "0"
	CaptionMissing     = "Caption not found"
	DescriptionMissing = "Description not found"
	ChannelMissing     = "Channel not found"
)

// ShortURLPrefix is joined with an item id to form its canonical URL
const ShortURLPrefix = "https://www.youtube.com/shorts/"

// ScrapedItem is one observation of a short video. Engagement fields keep
// the text exactly as displayed ("1.2M", or a full aria-label sentence).
type ScrapedItem struct {
	ItemID string `json:"item_id"`

	Caption             string   `json:"caption"`
	Description         string   `json:"description"`
	CaptionHashtags     []string `json:"caption_hashtags"`
	DescriptionHashtags []string `json:"description_hashtags"`
	ExtractedKeywords   string   `json:"extracted_keywords"`

	ChannelName string `json:"channel_name"`
	ChannelID   string `json:"channel_id"`

	RawViewCount      string `json:"raw_view_count"`
	LikesDisplay      string `json:"likes_display"`
	CommentsDisplay   string `json:"comments_display"`
	RemixDisplay      string `json:"remix_display"`
	UploadDateDisplay string `json:"upload_date_display"`

	SoundID     string `json:"sound_id"`
	SoundName   string `json:"sound_name"`
	SoundArtist string `json:"sound_artist"`
	SoundUsage  string `json:"sound_usage"`

	ScanTimestamp time.Time `json:"scan_timestamp"`
	WorkerID      string    `json:"worker_id"`
	FullURL       string    `json:"full_url"`

	// SimulatedWatchSeconds is synthetic, not a measured dwell time
	SimulatedWatchSeconds int `json:"simulated_watch_seconds"`
}

// CSVHeader is the output column order
var CSVHeader = []string{
	"timestamp_scan",
	"dummy_account_id",
	"video_id",
	"caption",
	"hashtags_on_caption",
	"hashtags_on_description",
	"description",
	"channel_name",
	"raw_views_count",
	"likes_count",
	"comments_count",
	"remix_count",
	"upload_date",
	"extracted_keywords",
	"sound_id",
	"sound_name",
	"sound_artist",
	"sound_usage",
	"video_url_full",
	"watch_duration_sec",
}

// ItemIDColumn is the index of video_id in CSVHeader
const ItemIDColumn = 2

// Row renders the item in CSVHeader order
func (s *ScrapedItem) Row() []string {
	return []string{
		s.ScanTimestamp.Format(time.RFC3339),
		s.WorkerID,
		s.ItemID,
		s.Caption,
		strings.Join(s.CaptionHashtags, ", "),
		strings.Join(s.DescriptionHashtags, ", "),
		s.Description,
		s.ChannelName,
		s.RawViewCount,
		s.LikesDisplay,
		s.CommentsDisplay,
		s.RemixDisplay,
		s.UploadDateDisplay,
		s.ExtractedKeywords,
		s.SoundID,
		s.SoundName,
		s.SoundArtist,
		s.SoundUsage,
		s.FullURL,
		strconv.Itoa(s.SimulatedWatchSeconds),
	}
}

// URLFor returns the canonical URL of an item id
func URLFor(itemID string) string {
	return ShortURLPrefix + itemID
}

// DedupByID keeps the first occurrence of every item id, preserving order
func DedupByID(items []ScrapedItem) []ScrapedItem {
	seen := make(map[string]bool, len(items))
	out := make([]ScrapedItem, 0, len(items))
	for _, item := range items {
		if seen[item.ItemID] {
			continue
		}
		seen[item.ItemID] = true
		out = append(out, item)
	}
	return out
}
