package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/pkg/database"
)

// AllHosts is the host filter value that disables filtering.
const AllHosts = "Todos"

const recordingColumns = `id, recall_bot_id, title, host, date, duration, platform, COALESCE(video_url,''), transcript, status, COALESCE(archive_key,''), created_at`

// Repository handles recording persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a recordings repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// InsertIfAbsent inserts rec unless a recording for the same bot exists. It reports whether
// a row was written; losing the race to another writer is not an error.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec *models.Recording) (bool, error) {
	transcript, err := marshalTranscript(rec.Transcript)
	if err != nil {
		return false, err
	}
	const q = `INSERT INTO recordings (recall_bot_id, title, host, date, duration, platform, video_url, transcript, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (recall_bot_id) DO NOTHING`
	tag, err := r.db.Exec(ctx, q, rec.RecallBotID, rec.Title, rec.Host, rec.Date, rec.Duration, rec.Platform, rec.VideoURL, transcript, rec.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List returns done recordings, newest first. An empty host or AllHosts returns every host.
func (r *Repository) List(ctx context.Context, host string) ([]models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE status = $1`
	args := []any{models.RecordingStatusDone}
	if host != "" && host != AllHosts {
		q += ` AND host = $2`
		args = append(args, host)
	}
	q += ` ORDER BY date DESC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// GetByID returns a recording by id, or nil.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// GetByRecallID returns the recording of a bot, or nil.
func (r *Repository) GetByRecallID(ctx context.Context, recallBotID string) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE recall_bot_id = $1`
	rec, err := scanRecording(r.db.QueryRow(ctx, q, recallBotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// UpdateTranscript replaces a recording's transcript.
func (r *Repository) UpdateTranscript(ctx context.Context, recallBotID string, lines []models.TranscriptLine) error {
	transcript, err := marshalTranscript(lines)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE recordings SET transcript = $1 WHERE recall_bot_id = $2`, transcript, recallBotID)
	return err
}

// SetArchiveKey records where the recording's video was archived.
func (r *Repository) SetArchiveKey(ctx context.Context, recallBotID, key string) error {
	_, err := r.db.Exec(ctx, `UPDATE recordings SET archive_key = $1 WHERE recall_bot_id = $2`, key, recallBotID)
	return err
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var (
		rec        models.Recording
		videoURL   string
		transcript []byte
	)
	if err := row.Scan(&rec.ID, &rec.RecallBotID, &rec.Title, &rec.Host, &rec.Date, &rec.Duration, &rec.Platform,
		&videoURL, &transcript, &rec.Status, &rec.ArchiveKey, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if videoURL != "" {
		rec.VideoURL = &videoURL
	}
	rec.Transcript = []models.TranscriptLine{}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript of %s: %w", rec.RecallBotID, err)
		}
	}
	if rec.Transcript == nil {
		rec.Transcript = []models.TranscriptLine{}
	}
	return &rec, nil
}

func marshalTranscript(lines []models.TranscriptLine) ([]byte, error) {
	if lines == nil {
		lines = []models.TranscriptLine{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return b, nil
}
