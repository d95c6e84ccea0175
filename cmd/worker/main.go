// Package main runs the background job worker (webhook completion retries, recording archive).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moglich/opsdash/config"
	"github.com/moglich/opsdash/internal/bots"
	"github.com/moglich/opsdash/internal/realtime"
	"github.com/moglich/opsdash/internal/recall"
	"github.com/moglich/opsdash/internal/reconcile"
	"github.com/moglich/opsdash/internal/recordings"
	"github.com/moglich/opsdash/internal/worker"
	"github.com/moglich/opsdash/pkg/database"
	"github.com/moglich/opsdash/pkg/queue"
	"github.com/moglich/opsdash/pkg/redis"
	"github.com/moglich/opsdash/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var archiver worker.Archiver
	if cfg.AWS.RecordingsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		archiver = s3Client
	}

	recallClient := recall.NewClient(recall.Config{
		BaseURL: cfg.Recall.BaseURL,
		APIKey:  cfg.Recall.APIKey,
		BotName: cfg.Recall.BotName,
		Timeout: time.Duration(cfg.Recall.RequestTimeout) * time.Second,
	}, logger)
	recRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	botRepo := bots.NewRepository(pool)
	svc := reconcile.NewService(botRepo, recRepo, recallClient, reconcile.Options{
		AutoSyncLimit:   cfg.Sync.AutoSyncLimit,
		AutoSyncOverlap: cfg.Sync.AutoSyncOverlap,
		FanOut:          cfg.Sync.FanOut,
		Archive:         archiver != nil,
	}, logger)
	svc.SetWatermark(reconcile.NewRedisWatermark(rdb.Client))
	svc.SetEnqueuer(jobQueue)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	svc.SetPublisher(realtime.NewHub(logger, pubsub, nil))

	processor := worker.NewProcessor(jobQueue, svc, recRepo, recallClient, archiver, logger)

	if n, err := jobQueue.DLQLength(ctx); err == nil && n > 0 {
		logger.Warn("dead-letter queue not empty", zap.Int64("jobs", n), zap.String("key", queue.QueueDLQ))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started", zap.Bool("archive", archiver != nil))

	var sweeper *worker.Sweeper
	if cfg.Sync.SweepInterval > 0 {
		sweeper = worker.NewSweeper(svc, botRepo, cfg.Sync.SweepInterval, logger)
		sweeper.Start(workerCtx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if sweeper != nil {
		sweeper.Stop()
	}
	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
