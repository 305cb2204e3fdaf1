// Package main runs the background worker: scheduled calendar syncs and queued sync/backup jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ontour-app/backend/config"
	"github.com/ontour-app/backend/internal/calendarsync"
	"github.com/ontour-app/backend/internal/events"
	"github.com/ontour-app/backend/internal/organizations"
	"github.com/ontour-app/backend/internal/worker"
	"github.com/ontour-app/backend/pkg/database"
	"github.com/ontour-app/backend/pkg/keyderiv"
	"github.com/ontour-app/backend/pkg/queue"
	"github.com/ontour-app/backend/pkg/redis"
	"github.com/ontour-app/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var backups worker.BackupStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			BackupsBucket:        cfg.AWS.BackupsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled, backup jobs will fail", zap.Error(err))
		} else {
			backups = s3Client
		}
	}

	secret, salt := cfg.CredentialsSecret()
	cipher, err := calendarsync.NewSessionCipher(keyderiv.Session(), secret, salt, 0)
	if err != nil {
		logger.Fatal("credential cipher", zap.Error(err))
	}
	defer keyderiv.Session().Clear()
	if keyID, err := cipher.KeyID(); err == nil {
		logger.Info("credentials key ready", zap.String("key_id", keyID), zap.Time("expires_at", keyderiv.Session().ExpiresAt()))
	}

	eventRepo := events.NewRepository(pool)
	syncService := calendarsync.NewService(
		calendarsync.NewRepository(pool),
		eventRepo,
		organizations.NewRepository(pool),
		calendarsync.DialCalDAV(time.Duration(cfg.CalDAV.TimeoutSec)*time.Second, logger),
		cipher,
		calendarsync.NewRedisLocker(rdb.Client, time.Duration(cfg.Sync.LockTTLSec)*time.Second),
		logger,
	)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewProcessor(syncService, eventRepo, backups, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	var scheduler *worker.Scheduler
	if cfg.Sync.Cron != "" {
		var opts []worker.SchedulerOption
		if cfg.Sync.Inline {
			opts = append(opts, worker.WithInlineSync(syncService))
		}
		scheduler, err = worker.NewScheduler(cfg.Sync.Cron, syncService, jobQueue, logger, opts...)
		if err != nil {
			logger.Fatal("sync scheduler", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("sync scheduler started", zap.String("cron", cfg.Sync.Cron), zap.Bool("inline", cfg.Sync.Inline))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		config.Level = lvl
	}
	logger, _ := config.Build()
	return logger
}
