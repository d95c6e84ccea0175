package models

import "time"

const (
	// RecordingStatusDone is the only status a stored recording currently has.
	RecordingStatusDone = "done"

	PlatformZoom       = "Zoom"
	PlatformGoogleMeet = "Google Meet"

	// DefaultMeetingTitle is used when a bot was dispatched without a title.
	DefaultMeetingTitle = "Reunión"
)

// TranscriptLine is one speaker turn.
type TranscriptLine struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

// Recording is the stored summary of one completed bot (recordings). At most one per bot.
type Recording struct {
	ID          int64            `json:"id"`
	RecallBotID string           `json:"recall_bot_id"`
	Title       string           `json:"title"`
	Host        string           `json:"host"`
	Date        time.Time        `json:"date"`
	Duration    string           `json:"duration"`
	Platform    string           `json:"platform"`
	VideoURL    *string          `json:"video_url"`
	Transcript  []TranscriptLine `json:"transcript"`
	Status      string           `json:"status"`
	ArchiveKey  string           `json:"archive_key,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
