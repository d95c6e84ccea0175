package bots

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/pkg/database"
)

const botColumns = `id, recall_bot_id, meeting_url, bot_name, host, meeting_title, status, created_at, updated_at`

// Repository handles recall_bots persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a bots repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a newly dispatched bot.
func (r *Repository) Create(ctx context.Context, b *models.Bot) error {
	const q = `INSERT INTO recall_bots (recall_bot_id, meeting_url, bot_name, host, meeting_title, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, b.RecallBotID, b.MeetingURL, b.BotName, b.Host, b.MeetingTitle, b.Status).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// GetByRecallID returns the bot with the given provider id, or nil if it is not stored.
func (r *Repository) GetByRecallID(ctx context.Context, recallBotID string) (*models.Bot, error) {
	q := `SELECT ` + botColumns + ` FROM recall_bots WHERE recall_bot_id = $1`
	b, err := scanBot(r.db.QueryRow(ctx, q, recallBotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// List returns bots newest first. An empty host returns every host.
func (r *Repository) List(ctx context.Context, host string) ([]models.Bot, error) {
	q := `SELECT ` + botColumns + ` FROM recall_bots`
	var args []any
	if host != "" {
		q += ` WHERE host = $1`
		args = append(args, host)
	}
	q += ` ORDER BY created_at DESC`
	return r.query(ctx, q, args...)
}

// ListActive returns bots whose status may still change, optionally for one host.
func (r *Repository) ListActive(ctx context.Context, host string) ([]models.Bot, error) {
	q := `SELECT ` + botColumns + ` FROM recall_bots
		WHERE status NOT IN ($1, $2, $3) AND ($4 = '' OR host = $4)
		ORDER BY created_at DESC`
	return r.query(ctx, q, models.BotStatusDone, models.BotStatusFatal, models.BotStatusCallEnded, host)
}

// UpdateStatus overwrites the stored status and returns the updated row, or nil if the bot
// is not stored.
func (r *Repository) UpdateStatus(ctx context.Context, recallBotID, status string) (*models.Bot, error) {
	q := `UPDATE recall_bots SET status = $1, updated_at = NOW() WHERE recall_bot_id = $2
		RETURNING ` + botColumns
	b, err := scanBot(r.db.QueryRow(ctx, q, status, recallBotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// ListDoneWithoutRecording returns done bots that have no recording row. Bots never checked
// by a sync come first, then the least recently checked; ties go to the oldest update.
// A zero since means no lower bound; limit <= 0 means no limit.
func (r *Repository) ListDoneWithoutRecording(ctx context.Context, since time.Time, limit int) ([]models.Bot, error) {
	q := `SELECT b.id, b.recall_bot_id, b.meeting_url, b.bot_name, b.host, b.meeting_title, b.status, b.created_at, b.updated_at
		FROM recall_bots b
		LEFT JOIN recordings r ON r.recall_bot_id = b.recall_bot_id
		WHERE b.status = $1 AND r.id IS NULL AND b.updated_at >= $2
		ORDER BY b.sync_checked_at ASC NULLS FIRST, b.updated_at ASC, b.recall_bot_id ASC`
	args := []any{models.BotStatusDone, since}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.query(ctx, q, args...)
}

// MarkSyncChecked stamps bots that a sync looked at without creating a recording. It does
// not touch updated_at.
func (r *Repository) MarkSyncChecked(ctx context.Context, recallBotIDs []string, at time.Time) error {
	if len(recallBotIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `UPDATE recall_bots SET sync_checked_at = $1 WHERE recall_bot_id = ANY($2)`, at, recallBotIDs)
	return err
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.Bot, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Bot{}
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

func scanBot(row pgx.Row) (*models.Bot, error) {
	var b models.Bot
	if err := row.Scan(&b.ID, &b.RecallBotID, &b.MeetingURL, &b.BotName, &b.Host, &b.MeetingTitle, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
