package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowMatchesHeader(t *testing.T) {
	item := ScrapedItem{
		ItemID:                "abc123",
		Caption:               "Sunset run #running #fit",
		CaptionHashtags:       []string{"#running", "#fit"},
		DescriptionHashtags:   []string{"#travel"},
		Description:           "Full description",
		ChannelName:           "@runner",
		RawViewCount:          "1.2M",
		LikesDisplay:          "like this video along with 3,400 other people",
		CommentsDisplay:       "View 56 comments",
		RemixDisplay:          "0",
		UploadDateDisplay:     "Mar 3",
		ExtractedKeywords:     NotAvailable,
		SoundID:               NotAvailable,
		SoundName:             "original sound",
		SoundArtist:           NotAvailable,
		SoundUsage:            NotAvailable,
		ScanTimestamp:         time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		WorkerID:              "acc1",
		FullURL:               URLFor("abc123"),
		SimulatedWatchSeconds: 9,
	}

	row := item.Row()
	require.Len(t, row, len(CSVHeader))
	assert.Equal(t, "video_id", CSVHeader[ItemIDColumn])
	assert.Equal(t, "abc123", row[ItemIDColumn])
	assert.Equal(t, "2024-05-01T12:30:00Z", row[0])
	assert.Equal(t, "acc1", row[1])
	assert.Equal(t, "#running, #fit", row[4])
	assert.Equal(t, "#travel", row[5])
	assert.Equal(t, "https://www.youtube.com/shorts/abc123", row[18])
	assert.Equal(t, "9", row[19])
}

func TestDedupByID(t *testing.T) {
	items := []ScrapedItem{{ItemID: "a", Caption: "first"}, {ItemID: "b"}, {ItemID: "a", Caption: "second"}}
	out := DedupByID(items)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Caption)
	assert.Equal(t, "b", out[1].ItemID)
	assert.Empty(t, DedupByID(nil))
}

func TestSessionState(t *testing.T) {
	assert.Equal(t, "ErrorTerminated", StateErrorTerminated.String())
	assert.Equal(t, "Unknown", SessionState(42).String())
	assert.True(t, StateTerminated.Final())
	assert.False(t, StateDraining.Final())

	data, err := json.Marshal(WorkerSummary{WorkerID: "acc1", FinalState: StateTerminated, Reason: ReasonQuotaReached})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"final_state":"Terminated"`)
	assert.Contains(t, string(data), `"reason":"quota reached"`)
}

func TestWorkerSummaryDuration(t *testing.T) {
	start := time.Now()
	s := WorkerSummary{Started: start}
	assert.Zero(t, s.Duration())
	s.Finished = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, s.Duration())
	assert.False(t, s.SinkFailed())
	s.Reason = ReasonSinkWriteFailed
	assert.True(t, s.SinkFailed())
}
