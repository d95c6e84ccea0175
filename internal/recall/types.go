package recall

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Bot is the provider's bot detail payload. Only the fields the dashboard reads are mapped.
type Bot struct {
	ID            string          `json:"id"`
	BotName       string          `json:"bot_name"`
	MeetingURL    json.RawMessage `json:"meeting_url,omitempty"`
	JoinAt        string          `json:"join_at,omitempty"`
	StatusChanges []StatusChange  `json:"status_changes"`
	Recordings    []Recording     `json:"recordings"`
}

// StatusChange is one entry of a bot's status history, oldest first.
type StatusChange struct {
	Code      string  `json:"code"`
	SubCode   *string `json:"sub_code"`
	UpdatedAt string  `json:"updated_at"`
}

// Recording is one recording attached to a bot. Timestamps are RFC 3339 or empty.
type Recording struct {
	ID             string         `json:"id"`
	StartedAt      string         `json:"started_at"`
	CompletedAt    string         `json:"completed_at"`
	Status         Status         `json:"status"`
	MediaShortcuts MediaShortcuts `json:"media_shortcuts"`
}

// Status wraps a provider status code.
type Status struct {
	Code string `json:"code"`
}

// MediaShortcuts exposes the download locations of a recording's artifacts.
type MediaShortcuts struct {
	VideoMixed *MediaShortcut `json:"video_mixed"`
	Transcript *MediaShortcut `json:"transcript"`
}

// MediaShortcut is one artifact; DownloadURL is presigned and expires after a few hours.
type MediaShortcut struct {
	Status Status `json:"status"`
	Data   struct {
		DownloadURL string `json:"download_url"`
	} `json:"data"`
}

// LatestStatus returns the code of the most recent status change, or "".
func (b *Bot) LatestStatus() string {
	if b == nil || len(b.StatusChanges) == 0 {
		return ""
	}
	return b.StatusChanges[len(b.StatusChanges)-1].Code
}

// FirstRecording returns the bot's first recording, or nil.
func (b *Bot) FirstRecording() *Recording {
	if b == nil || len(b.Recordings) == 0 {
		return nil
	}
	return &b.Recordings[0]
}

// VideoURL returns the mixed video download URL of the first recording, or "".
func (b *Bot) VideoURL() string {
	rec := b.FirstRecording()
	if rec == nil || rec.MediaShortcuts.VideoMixed == nil {
		return ""
	}
	return rec.MediaShortcuts.VideoMixed.Data.DownloadURL
}

// TranscriptEntry is one speaker turn as returned by the transcript endpoint.
type TranscriptEntry struct {
	Speaker   string `json:"speaker"`
	SpeakerID *int   `json:"speaker_id"`
	Words     []Word `json:"words"`
}

// Word is a single transcribed word.
type Word struct {
	Text           string  `json:"text"`
	StartTimestamp Seconds `json:"start_timestamp"`
}

// Seconds is an offset from the start of the recording. The provider sends either a bare
// number or an object {"relative": n}; both decode here.
type Seconds float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			Relative float64 `json:"relative"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("decode timestamp object: %w", err)
		}
		*s = Seconds(obj.Relative)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	*s = Seconds(f)
	return nil
}

// CreateBotParams is the input of CreateBot.
type CreateBotParams struct {
	MeetingURL string
	BotName    string // defaults to the client's configured bot name
	JoinAt     string // optional RFC 3339 time
}

type createBotRequest struct {
	MeetingURL      string          `json:"meeting_url"`
	BotName         string          `json:"bot_name"`
	JoinAt          string          `json:"join_at,omitempty"`
	RecordingConfig recordingConfig `json:"recording_config"`
}

type recordingConfig struct {
	Transcript    transcriptConfig `json:"transcript"`
	VideoMixedMP4 struct{}         `json:"video_mixed_mp4"`
}

type transcriptConfig struct {
	Provider struct {
		MeetingCaptions struct{} `json:"meeting_captions"`
	} `json:"provider"`
}

type botList struct {
	Next    *string `json:"next"`
	Results []Bot   `json:"results"`
}
