package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/recall"
	"github.com/moglich/opsdash/internal/reconcile"
	"github.com/moglich/opsdash/pkg/queue"
	"github.com/moglich/opsdash/pkg/storage"
)

// JobSource is the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Completer creates the recording of a finished bot.
type Completer interface {
	CompleteBot(ctx context.Context, recallBotID string) (*models.Recording, error)
}

// RecordingStore is the recordings persistence used by archive jobs.
type RecordingStore interface {
	GetByRecallID(ctx context.Context, recallBotID string) (*models.Recording, error)
	SetArchiveKey(ctx context.Context, recallBotID, key string) error
}

// BotFetcher returns the provider's view of a bot; used to get a fresh download URL.
type BotFetcher interface {
	GetBot(ctx context.Context, botID string) (*recall.Bot, error)
}

// Archiver stores recording videos.
type Archiver interface {
	UploadRecording(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
}

// Processor runs background jobs: webhook completion retries and recording archiving.
type Processor struct {
	source     JobSource
	completer  Completer
	recordings RecordingStore
	bots       BotFetcher
	archiver   Archiver // nil disables archiving
	http       *http.Client
	backoff    time.Duration
	logger     *zap.Logger
}

// NewProcessor creates a job processor. archiver may be nil.
func NewProcessor(source JobSource, completer Completer, recordings RecordingStore, bots BotFetcher, archiver Archiver, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source:     source,
		completer:  completer,
		recordings: recordings,
		bots:       bots,
		archiver:   archiver,
		http:       &http.Client{Timeout: 30 * time.Minute},
		backoff:    queue.RetryBackoff,
		logger:     logger,
	}
}

// Process executes one job. A returned error means the job should be retried.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.BotPayload()
	if err != nil {
		p.logger.Warn("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	switch job.Type {
	case queue.JobTypeBotReconcile:
		return p.reconcileBot(ctx, payload.RecallBotID)
	case queue.JobTypeRecordingArchive:
		return p.archiveRecording(ctx, payload.RecallBotID)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) reconcileBot(ctx context.Context, recallBotID string) error {
	rec, err := p.completer.CompleteBot(ctx, recallBotID)
	if errors.Is(err, reconcile.ErrUnknownBot) {
		p.logger.Warn("reconcile job for unknown bot", zap.String("recall_bot_id", recallBotID))
		return nil
	}
	if err != nil {
		return err
	}
	p.logger.Info("bot reconciled", zap.String("recall_bot_id", recallBotID), zap.String("title", rec.Title))
	return nil
}

func (p *Processor) archiveRecording(ctx context.Context, recallBotID string) error {
	if p.archiver == nil {
		p.logger.Debug("archiving disabled, skipping job", zap.String("recall_bot_id", recallBotID))
		return nil
	}
	rec, err := p.recordings.GetByRecallID(ctx, recallBotID)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	if rec == nil {
		p.logger.Warn("archive job for missing recording", zap.String("recall_bot_id", recallBotID))
		return nil
	}
	if rec.ArchiveKey != "" {
		p.logger.Info("recording already archived", zap.String("recall_bot_id", recallBotID))
		return nil
	}

	// Stored URLs are presigned and expire; prefer a fresh one.
	src := ""
	if bot, err := p.bots.GetBot(ctx, recallBotID); err == nil {
		src = bot.VideoURL()
	} else {
		p.logger.Warn("refresh video url failed", zap.String("recall_bot_id", recallBotID), zap.Error(err))
	}
	if src == "" && rec.VideoURL != nil {
		src = *rec.VideoURL
	}
	if src == "" {
		p.logger.Warn("recording has no video to archive", zap.String("recall_bot_id", recallBotID))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	key := storage.RecordingKey(recallBotID)
	if err := p.archiver.UploadRecording(ctx, key, contentType, resp.Body, resp.ContentLength); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.recordings.SetArchiveKey(ctx, recallBotID, key); err != nil {
		p.logger.Error("store archive key failed", zap.Error(err), zap.String("recall_bot_id", recallBotID))
		return fmt.Errorf("update db: %w", err)
	}
	p.logger.Info("recording archived", zap.String("recall_bot_id", recallBotID), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.source.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
