// Package reconcile brings stored bots and recordings in line with the provider. The webhook,
// the recordings listing, the explicit sync endpoint, the worker and opsctl all call into
// Service; recordings are only ever created through the shared Normalizer and an
// insert-or-no-op write.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/normalize"
	"github.com/moglich/opsdash/internal/recall"
)

var (
	// ErrUnknownBot is returned when the provider reports a bot that is not stored locally.
	ErrUnknownBot = errors.New("bot not stored")
	// ErrNotReady is returned when a bot's recording is not finished on the provider side.
	ErrNotReady = errors.New("recording not ready")
)

// EventBotDone is the webhook event that triggers recording creation.
const EventBotDone = "bot.done"

// Provider is the subset of the provider client used here.
type Provider interface {
	GetBot(ctx context.Context, botID string) (*recall.Bot, error)
	GetTranscript(ctx context.Context, botID string) ([]recall.TranscriptEntry, error)
}

// BotStore persists bots.
type BotStore interface {
	GetByRecallID(ctx context.Context, recallBotID string) (*models.Bot, error)
	UpdateStatus(ctx context.Context, recallBotID, status string) (*models.Bot, error)
	// ListDoneWithoutRecording orders never-checked bots first, then by MarkSyncChecked time.
	ListDoneWithoutRecording(ctx context.Context, since time.Time, limit int) ([]models.Bot, error)
	MarkSyncChecked(ctx context.Context, recallBotIDs []string, at time.Time) error
}

// RecordingStore persists recordings.
type RecordingStore interface {
	// InsertIfAbsent reports false when a recording for the bot already exists.
	InsertIfAbsent(ctx context.Context, rec *models.Recording) (bool, error)
	UpdateTranscript(ctx context.Context, recallBotID string, lines []models.TranscriptLine) error
}

// Watermark remembers how far auto-sync has scanned.
type Watermark interface {
	Get(ctx context.Context) (time.Time, error)
	Set(ctx context.Context, t time.Time) error
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	EnqueueBotReconcile(ctx context.Context, recallBotID string) error
	EnqueueRecordingArchive(ctx context.Context, recallBotID string) error
}

// StatusPublisher fans status changes out to live clients.
type StatusPublisher interface {
	PublishBotStatus(ctx context.Context, host, recallBotID, status string) error
}

// Options tunes the service.
type Options struct {
	AutoSyncLimit   int
	AutoSyncOverlap time.Duration
	FanOut          int
	// Archive enqueues an archive job for every new recording with a video.
	Archive bool
}

// Service reconciles bot state.
type Service struct {
	bots       BotStore
	recordings RecordingStore
	provider   Provider
	normalizer *normalize.Normalizer
	opts       Options
	logger     *zap.Logger

	watermark Watermark
	jobs      Enqueuer
	publisher StatusPublisher

	now func() time.Time
}

// NewService creates a reconciliation service.
func NewService(bots BotStore, recordings RecordingStore, provider Provider, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FanOut <= 0 {
		opts.FanOut = 8
	}
	if opts.AutoSyncLimit <= 0 {
		opts.AutoSyncLimit = 25
	}
	return &Service{
		bots:       bots,
		recordings: recordings,
		provider:   provider,
		normalizer: normalize.New(provider, logger),
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// SetWatermark enables bounded auto-sync. Without one every auto-sync scans all done bots.
func (s *Service) SetWatermark(w Watermark) { s.watermark = w }

// SetEnqueuer enables webhook retries and recording archiving.
func (s *Service) SetEnqueuer(e Enqueuer) { s.jobs = e }

// SetPublisher enables live status broadcasts.
func (s *Service) SetPublisher(p StatusPublisher) { s.publisher = p }

// Event is a decoded provider webhook.
type Event struct {
	Name  string
	BotID string
	Code  string
}

// ApplyEvent applies one webhook event. Any bot.* event with a status code overwrites the
// stored status; bot.done also creates the recording. A failed completion is queued for
// retry when an Enqueuer is set. Events without a bot id are ignored.
func (s *Service) ApplyEvent(ctx context.Context, ev Event) error {
	if ev.BotID == "" {
		return nil
	}
	if strings.HasPrefix(ev.Name, "bot.") && ev.Code != "" {
		if err := s.setStatus(ctx, ev.BotID, ev.Code); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
	}
	if ev.Name != EventBotDone {
		return nil
	}
	_, err := s.CompleteBot(ctx, ev.BotID)
	if err == nil || errors.Is(err, ErrUnknownBot) {
		return err
	}
	if s.jobs != nil {
		if qErr := s.jobs.EnqueueBotReconcile(ctx, ev.BotID); qErr != nil {
			s.logger.Error("enqueue bot reconcile failed", zap.String("recall_bot_id", ev.BotID), zap.Error(qErr))
		}
	}
	return err
}

// CompleteBot creates the recording for a finished bot and marks it done. It returns the
// normalized recording whether it was inserted now or already existed.
func (s *Service) CompleteBot(ctx context.Context, recallBotID string) (*models.Recording, error) {
	stored, err := s.bots.GetByRecallID(ctx, recallBotID)
	if err != nil {
		return nil, fmt.Errorf("load bot: %w", err)
	}
	if stored == nil {
		return nil, ErrUnknownBot
	}
	rec, _, err := s.syncBot(ctx, *stored)
	if err != nil {
		return nil, err
	}
	if err := s.setStatus(ctx, recallBotID, models.BotStatusDone); err != nil {
		return rec, fmt.Errorf("mark done: %w", err)
	}
	return rec, nil
}

// syncBot fetches, normalizes and inserts the recording of one stored bot.
func (s *Service) syncBot(ctx context.Context, stored models.Bot) (*models.Recording, bool, error) {
	bot, err := s.provider.GetBot(ctx, stored.RecallBotID)
	if err != nil {
		return nil, false, fmt.Errorf("fetch bot: %w", err)
	}
	rec, ok := s.normalizer.Build(ctx, bot, stored)
	if !ok {
		return nil, false, ErrNotReady
	}
	inserted, err := s.recordings.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("save recording: %w", err)
	}
	if !inserted {
		s.logger.Debug("recording already exists", zap.String("recall_bot_id", stored.RecallBotID))
		return rec, false, nil
	}
	s.logger.Info("recording saved", zap.String("recall_bot_id", stored.RecallBotID), zap.String("host", stored.Host))
	if s.opts.Archive && s.jobs != nil && rec.VideoURL != nil {
		if err := s.jobs.EnqueueRecordingArchive(ctx, stored.RecallBotID); err != nil {
			s.logger.Error("enqueue recording archive failed", zap.String("recall_bot_id", stored.RecallBotID), zap.Error(err))
		}
	}
	return rec, true, nil
}

// setStatus writes a status and broadcasts it if the bot is stored.
func (s *Service) setStatus(ctx context.Context, recallBotID, status string) error {
	b, err := s.bots.UpdateStatus(ctx, recallBotID, status)
	if err != nil {
		return err
	}
	if b == nil {
		s.logger.Warn("status for unknown bot", zap.String("recall_bot_id", recallBotID), zap.String("status", status))
		return nil
	}
	s.publish(ctx, b.Host, recallBotID, status)
	return nil
}

func (s *Service) publish(ctx context.Context, host, recallBotID, status string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBotStatus(ctx, host, recallBotID, status); err != nil {
		s.logger.Warn("publish bot status failed", zap.String("recall_bot_id", recallBotID), zap.Error(err))
	}
}

// Scope bounds a backfill. A zero Since and Limit mean everything.
type Scope struct {
	Since time.Time
	Limit int
}

// SyncReport summarizes a backfill.
type SyncReport struct {
	Synced int      `json:"synced"`
	Total  int      `json:"total"`
	Errors []string `json:"errors"`
	// Pending counts candidates whose recording is not finished yet.
	Pending int `json:"-"`
}

// Backfill creates recordings for done bots that have none. Per-bot failures are recorded
// and the sweep continues; only a failure to list candidates is returned. Candidates left
// without a recording are stamped as checked so the next bounded sweep reaches newer bots.
func (s *Service) Backfill(ctx context.Context, scope Scope) (SyncReport, error) {
	candidates, err := s.bots.ListDoneWithoutRecording(ctx, scope.Since, scope.Limit)
	if err != nil {
		return SyncReport{}, fmt.Errorf("list done bots: %w", err)
	}

	type result struct {
		inserted bool
		err      error
	}
	results := make([]result, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.opts.FanOut)
	for i := range candidates {
		i := i
		g.Go(func() error {
			_, inserted, err := s.syncBot(ctx, candidates[i])
			results[i] = result{inserted: inserted, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report := SyncReport{Total: len(candidates), Errors: []string{}}
	var checked []string
	for i, r := range results {
		switch {
		case errors.Is(r.err, ErrNotReady):
			report.Pending++
			checked = append(checked, candidates[i].RecallBotID)
		case r.err != nil:
			report.Errors = append(report.Errors, fmt.Sprintf("Bot %s: %v", candidates[i].RecallBotID, r.err))
			checked = append(checked, candidates[i].RecallBotID)
		case r.inserted:
			report.Synced++
		}
	}
	if err := s.bots.MarkSyncChecked(ctx, checked, s.now()); err != nil {
		s.logger.Warn("mark bots sync-checked failed", zap.Int("bots", len(checked)), zap.Error(err))
	}
	return report, nil
}

// AutoSync runs a bounded backfill from the watermark. The watermark advances only after a
// sweep that finished every candidate and did not hit the limit. Bots that stay unfinished
// are stamped by Backfill and rotate behind unchecked ones, so a full window of them does
// not keep newer bots from being synced.
func (s *Service) AutoSync(ctx context.Context) error {
	var since time.Time
	if s.watermark != nil {
		mark, err := s.watermark.Get(ctx)
		if err != nil {
			s.logger.Warn("read auto-sync watermark failed", zap.Error(err))
		} else if !mark.IsZero() {
			since = mark.Add(-s.opts.AutoSyncOverlap)
		}
	}

	started := s.now()
	report, err := s.Backfill(ctx, Scope{Since: since, Limit: s.opts.AutoSyncLimit})
	if err != nil {
		return err
	}
	for _, e := range report.Errors {
		s.logger.Warn("auto-sync bot failed", zap.String("error", e))
	}
	if report.Synced > 0 {
		s.logger.Info("auto-sync created recordings", zap.Int("synced", report.Synced), zap.Int("total", report.Total))
	}
	if s.watermark == nil || len(report.Errors) > 0 || report.Pending > 0 || report.Total >= s.opts.AutoSyncLimit {
		return nil
	}
	if err := s.watermark.Set(ctx, started); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

// RefreshStatuses re-reads active bots from the provider concurrently and stores changed
// statuses. A bot whose refresh fails keeps its last-known status. The returned slice has
// the same order as bots.
func (s *Service) RefreshStatuses(ctx context.Context, bots []models.Bot) []models.Bot {
	out := make([]models.Bot, len(bots))
	copy(out, bots)

	var g errgroup.Group
	g.SetLimit(s.opts.FanOut)
	for i := range out {
		if !out[i].Active() {
			continue
		}
		b := &out[i]
		g.Go(func() error {
			detail, err := s.provider.GetBot(ctx, b.RecallBotID)
			if err != nil {
				s.logger.Warn("refresh bot status failed", zap.String("recall_bot_id", b.RecallBotID), zap.Error(err))
				return nil
			}
			latest := detail.LatestStatus()
			if latest == "" || latest == b.Status {
				return nil
			}
			if err := s.setStatus(ctx, b.RecallBotID, latest); err != nil {
				s.logger.Warn("store refreshed status failed", zap.String("recall_bot_id", b.RecallBotID), zap.Error(err))
				return nil
			}
			b.Status = latest
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RefreshBot fetches one bot from the provider and stores its latest status. A provider
// failure is returned; a failed status write is only logged.
func (s *Service) RefreshBot(ctx context.Context, recallBotID string) (*recall.Bot, string, error) {
	detail, err := s.provider.GetBot(ctx, recallBotID)
	if err != nil {
		return nil, "", err
	}
	latest := detail.LatestStatus()
	if latest != "" {
		if err := s.setStatus(ctx, recallBotID, latest); err != nil {
			s.logger.Warn("store bot status failed", zap.String("recall_bot_id", recallBotID), zap.Error(err))
		}
	}
	return detail, latest, nil
}

// EnrichRecordings refreshes presigned video URLs and backfills missing transcripts
// concurrently. Failures keep the stored values. Transcripts found here are persisted;
// refreshed video URLs are not.
func (s *Service) EnrichRecordings(ctx context.Context, recs []models.Recording) []models.Recording {
	out := make([]models.Recording, len(recs))
	copy(out, recs)

	var g errgroup.Group
	g.SetLimit(s.opts.FanOut)
	for i := range out {
		rec := &out[i]
		if rec.RecallBotID == "" {
			continue
		}
		g.Go(func() error {
			s.enrichOne(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) enrichOne(ctx context.Context, rec *models.Recording) {
	if rec.VideoURL != nil {
		bot, err := s.provider.GetBot(ctx, rec.RecallBotID)
		if err != nil {
			s.logger.Debug("refresh video url failed", zap.String("recall_bot_id", rec.RecallBotID), zap.Error(err))
		} else if fresh := bot.VideoURL(); fresh != "" {
			rec.VideoURL = &fresh
		}
	}
	if len(rec.Transcript) > 0 {
		return
	}
	entries, err := s.provider.GetTranscript(ctx, rec.RecallBotID)
	if err != nil {
		s.logger.Debug("backfill transcript failed", zap.String("recall_bot_id", rec.RecallBotID), zap.Error(err))
		return
	}
	lines := normalize.FormatTranscript(entries)
	if len(lines) == 0 {
		return
	}
	if err := s.recordings.UpdateTranscript(ctx, rec.RecallBotID, lines); err != nil {
		s.logger.Warn("persist transcript failed", zap.String("recall_bot_id", rec.RecallBotID), zap.Error(err))
		return
	}
	rec.Transcript = lines
}
