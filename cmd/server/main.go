// Package main runs the operations dashboard HTTP server with the live status feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moglich/opsdash/config"
	"github.com/moglich/opsdash/internal/bots"
	"github.com/moglich/opsdash/internal/calendar"
	"github.com/moglich/opsdash/internal/directory"
	"github.com/moglich/opsdash/internal/middleware"
	"github.com/moglich/opsdash/internal/realtime"
	"github.com/moglich/opsdash/internal/recall"
	"github.com/moglich/opsdash/internal/reconcile"
	"github.com/moglich/opsdash/internal/recordings"
	"github.com/moglich/opsdash/internal/worker"
	"github.com/moglich/opsdash/pkg/database"
	"github.com/moglich/opsdash/pkg/queue"
	"github.com/moglich/opsdash/pkg/redis"
	"github.com/moglich/opsdash/pkg/response"
	"github.com/moglich/opsdash/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	hosts, err := config.LoadHosts(cfg.HostsFile)
	if err != nil {
		logger.Fatal("load hosts", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.RecordingsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("recording archive disabled", zap.Error(err))
			s3Client = nil
		}
	}

	recallClient := recall.NewClient(recall.Config{
		BaseURL: cfg.Recall.BaseURL,
		APIKey:  cfg.Recall.APIKey,
		BotName: cfg.Recall.BotName,
		Timeout: time.Duration(cfg.Recall.RequestTimeout) * time.Second,
	}, logger)

	botRepo := bots.NewRepository(pool)
	recRepo := recordings.NewRepository(pool)
	tokenRepo := calendar.NewTokenRepository(pool)
	dirRepo := directory.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Reconciliation (webhook, auto-sync, explicit sync, status refresh)
	svc := reconcile.NewService(botRepo, recRepo, recallClient, reconcile.Options{
		AutoSyncLimit:   cfg.Sync.AutoSyncLimit,
		AutoSyncOverlap: cfg.Sync.AutoSyncOverlap,
		FanOut:          cfg.Sync.FanOut,
		Archive:         s3Client != nil,
	}, logger)
	svc.SetWatermark(reconcile.NewRedisWatermark(rdb.Client))
	svc.SetEnqueuer(jobQueue)
	svc.SetPublisher(hub)

	var verifier *recordings.Verifier
	if cfg.Recall.WebhookSecret != "" {
		verifier, err = recordings.NewVerifier(cfg.Recall.WebhookSecret)
		if err != nil {
			logger.Fatal("webhook secret", zap.Error(err))
		}
	}

	botHandler := bots.NewHandler(botRepo, recallClient, svc, logger)
	recordingHandler := recordings.NewHandler(recRepo, svc, logger)
	if s3Client != nil {
		recordingHandler.SetPresigner(s3Client)
	}
	webhookHandler := recordings.NewWebhookHandler(svc, verifier, logger)

	// Calendar
	oauthCfg := calendar.NewOAuthConfig(cfg.Google)
	tokenManager := calendar.NewTokenManager(tokenRepo, oauthCfg, logger)
	calendarHandler := calendar.NewHandler(calendar.NewClient(tokenManager, logger), logger)
	oauthHandler := calendar.NewOAuthHandler(oauthCfg, calendar.NewStateSigner(cfg.Google.StateSecret), tokenRepo, cfg.Google.DashboardURL(), logger)
	hostsHandler := calendar.NewHostsHandler(hosts, tokenRepo, logger)

	directoryHandler := directory.NewHandler(dirRepo, logger)

	var archiver worker.Archiver
	if s3Client != nil {
		archiver = s3Client
	}
	processor := worker.NewProcessor(jobQueue, svc, recRepo, recallClient, archiver, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Ping(hctx).Err(); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		rc := api.Group("/recall")
		rc.POST("/bot", botHandler.Create)
		rc.GET("/bot", botHandler.List)
		rc.GET("/bot/:id", botHandler.Get)
		rc.POST("/webhook", webhookHandler.Receive)
		rc.POST("/sync", recordingHandler.Sync)
		rc.GET("/recordings", recordingHandler.List)
		rc.GET("/recordings/:id/archive-url", recordingHandler.ArchiveURL)

		api.GET("/calendar", calendarHandler.Events)
		api.GET("/auth/google", oauthHandler.Start)
		api.GET("/auth/callback", oauthHandler.Callback)
		api.GET("/hosts", hostsHandler.List)

		directoryHandler.Register(api.Group("/directory"))
	}

	known := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		known[h.Name] = true
	}
	router.GET("/ws", realtime.ServeWs(hub, logger, func(host string) bool { return known[host] }))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (webhook retries, recording archive)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var sweeper *worker.Sweeper
	if cfg.Server.RunWorker {
		go processor.Run(workerCtx)
		logger.Info("in-process worker started", zap.Bool("archive", archiver != nil))
		if cfg.Sync.SweepInterval > 0 {
			sweeper = worker.NewSweeper(svc, botRepo, cfg.Sync.SweepInterval, logger)
			sweeper.Start(workerCtx)
		}
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.Int("hosts", len(hosts)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if sweeper != nil {
		sweeper.Stop()
	}
	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
