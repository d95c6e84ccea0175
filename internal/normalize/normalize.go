// Package normalize turns a provider bot payload plus the stored bot row into the
// recording summary the dashboard persists. Every path that creates a recording
// (webhook, auto-sync, explicit sync, worker retry) goes through here.
package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/recall"
)

// TranscriptFetcher fetches the speaker turns of a bot's transcript.
type TranscriptFetcher interface {
	GetTranscript(ctx context.Context, botID string) ([]recall.TranscriptEntry, error)
}

// Normalizer builds recordings, fetching transcripts on the side.
type Normalizer struct {
	transcripts TranscriptFetcher
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Normalizer.
func New(transcripts TranscriptFetcher, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{transcripts: transcripts, logger: logger, now: time.Now}
}

// Build normalizes bot and attaches its transcript. ok is false when the bot has no finished
// recording yet; nothing should be written in that case. A failed transcript fetch is logged
// and yields an empty transcript.
func (n *Normalizer) Build(ctx context.Context, bot *recall.Bot, stored models.Bot) (rec *models.Recording, ok bool) {
	rec, ok = Normalize(bot, stored, n.now())
	if !ok {
		return nil, false
	}
	rec.Transcript = n.Transcript(ctx, bot.ID)
	return rec, true
}

// Transcript fetches and formats a bot's transcript. Failures yield an empty slice.
func (n *Normalizer) Transcript(ctx context.Context, botID string) []models.TranscriptLine {
	entries, err := n.transcripts.GetTranscript(ctx, botID)
	if err != nil {
		n.logger.Warn("fetch transcript failed", zap.String("recall_bot_id", botID), zap.Error(err))
		return []models.TranscriptLine{}
	}
	return FormatTranscript(entries)
}

// Normalize is the pure part of Build. The transcript is left empty.
func Normalize(bot *recall.Bot, stored models.Bot, now time.Time) (*models.Recording, bool) {
	first := bot.FirstRecording()
	if first == nil || first.Status.Code != models.RecordingStatusDone {
		return nil, false
	}

	title := stored.MeetingTitle
	if title == "" {
		title = models.DefaultMeetingTitle
	}
	date := now
	if t, err := parseTime(first.StartedAt); err == nil {
		date = t
	}
	var videoURL *string
	if u := bot.VideoURL(); u != "" {
		videoURL = &u
	}

	return &models.Recording{
		RecallBotID: bot.ID,
		Title:       title,
		Host:        stored.Host,
		Date:        date,
		Duration:    Duration(first.StartedAt, first.CompletedAt),
		Platform:    InferPlatform(stored.MeetingURL),
		VideoURL:    videoURL,
		Transcript:  []models.TranscriptLine{},
		Status:      models.RecordingStatusDone,
	}, true
}

// Duration formats completed-started. Either timestamp missing or unparsable gives "".
func Duration(startedAt, completedAt string) string {
	start, err := parseTime(startedAt)
	if err != nil {
		return ""
	}
	end, err := parseTime(completedAt)
	if err != nil {
		return ""
	}
	return FormatDuration(int64(end.Sub(start) / time.Second))
}

// FormatDuration renders whole seconds as H:MM:SS when at least an hour, else M:SS.
func FormatDuration(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// InferPlatform returns Zoom iff the meeting URL contains "zoom" (case-sensitive).
func InferPlatform(meetingURL string) string {
	if strings.Contains(meetingURL, "zoom") {
		return models.PlatformZoom
	}
	return models.PlatformGoogleMeet
}

// FormatTranscript maps provider speaker turns to transcript lines.
func FormatTranscript(entries []recall.TranscriptEntry) []models.TranscriptLine {
	out := make([]models.TranscriptLine, 0, len(entries))
	for _, e := range entries {
		var start float64
		words := make([]string, 0, len(e.Words))
		for i, w := range e.Words {
			if i == 0 {
				start = float64(w.StartTimestamp)
			}
			words = append(words, w.Text)
		}
		speaker := e.Speaker
		if speaker == "" {
			id := 0
			if e.SpeakerID != nil {
				id = *e.SpeakerID
			}
			speaker = fmt.Sprintf("Speaker %d", id)
		}
		out = append(out, models.TranscriptLine{
			Timestamp: clock(start),
			Speaker:   speaker,
			Text:      strings.Join(words, " "),
		})
	}
	return out
}

// clock renders an offset as zero-padded MM:SS; minutes are not wrapped at an hour.
func clock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	whole := int64(sec)
	return fmt.Sprintf("%02d:%02d", whole/60, whole%60)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339Nano, s)
}
