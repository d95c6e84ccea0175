package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moglich/opsdash/config"
	"github.com/moglich/opsdash/internal/bots"
	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/realtime"
	"github.com/moglich/opsdash/internal/recall"
	"github.com/moglich/opsdash/internal/reconcile"
	"github.com/moglich/opsdash/internal/recordings"
	"github.com/moglich/opsdash/pkg/database"
	"github.com/moglich/opsdash/pkg/queue"
	"github.com/moglich/opsdash/pkg/redis"
)

type backfiller interface {
	Backfill(ctx context.Context, scope reconcile.Scope) (reconcile.SyncReport, error)
	RefreshStatuses(ctx context.Context, list []models.Bot) []models.Bot
}

type watermarkResetter interface {
	Reset(ctx context.Context) error
}

type botStore interface {
	ListActive(ctx context.Context, host string) ([]models.Bot, error)
	GetByRecallID(ctx context.Context, recallBotID string) (*models.Bot, error)
}

type providerBots interface {
	ListBots(ctx context.Context) ([]recall.Bot, error)
}

// services is what the commands operate on; tests substitute fakes.
type services struct {
	service   backfiller
	watermark watermarkResetter
	bots      botStore
	provider  providerBots
	close     func()
}

type commandContext struct {
	jsonOutput bool
	open       func(ctx context.Context) (*services, error)
}

func newCommandContext(open func(ctx context.Context) (*services, error)) *commandContext {
	return &commandContext{open: open}
}

func (c *commandContext) withServices(ctx context.Context, fn func(*services) error) error {
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	if rt.close != nil {
		defer rt.close()
	}
	return fn(rt)
}

// openServices connects to Postgres, Redis and the provider the same way the server does.
func openServices(ctx context.Context) (*services, error) {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, err
	}
	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	recallClient := recall.NewClient(recall.Config{
		BaseURL: cfg.Recall.BaseURL,
		APIKey:  cfg.Recall.APIKey,
		BotName: cfg.Recall.BotName,
		Timeout: time.Duration(cfg.Recall.RequestTimeout) * time.Second,
	}, logger)
	botRepo := bots.NewRepository(pool)
	watermark := reconcile.NewRedisWatermark(rdb.Client)

	svc := reconcile.NewService(botRepo, recordings.NewRepository(pool), recallClient, reconcile.Options{
		AutoSyncLimit:   cfg.Sync.AutoSyncLimit,
		AutoSyncOverlap: cfg.Sync.AutoSyncOverlap,
		FanOut:          cfg.Sync.FanOut,
		Archive:         cfg.AWS.RecordingsBucket != "",
	}, logger)
	svc.SetWatermark(watermark)
	svc.SetEnqueuer(queue.NewQueue(rdb.Client, logger))
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	svc.SetPublisher(realtime.NewHub(logger, pubsub, nil))

	return &services{
		service:   svc,
		watermark: watermark,
		bots:      botRepo,
		provider:  recallClient,
		close: func() {
			_ = rdb.Close()
			pool.Close()
			_ = logger.Sync()
		},
	}, nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
