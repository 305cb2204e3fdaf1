// Package main runs the On Tour API server with graceful shutdown.
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

	"github.com/ontour-app/backend/config"
	"github.com/ontour-app/backend/internal/agencies"
	"github.com/ontour-app/backend/internal/auth"
	"github.com/ontour-app/backend/internal/calendarsync"
	"github.com/ontour-app/backend/internal/contacts"
	"github.com/ontour-app/backend/internal/events"
	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/organizations"
	"github.com/ontour-app/backend/internal/shows"
	"github.com/ontour-app/backend/internal/venues"
	"github.com/ontour-app/backend/pkg/database"
	"github.com/ontour-app/backend/pkg/keyderiv"
	"github.com/ontour-app/backend/pkg/queue"
	"github.com/ontour-app/backend/pkg/redis"
	"github.com/ontour-app/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var backupStore calendarsync.BackupStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			BackupsBucket:        cfg.AWS.BackupsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			backupStore = s3Client
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

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo, logger)

	// Tour data
	agencyRepo := agencies.NewRepository(pool)
	agencyHandler := agencies.NewHandler(agencyRepo, logger)
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)
	showHandler := shows.NewHandler(shows.NewRepository(pool), agencyRepo, eventRepo, logger)
	venueHandler := venues.NewHandler(venues.NewRepository(pool), logger)
	contactHandler := contacts.NewHandler(contacts.NewRepository(pool), logger)

	// Calendar sync
	syncService := calendarsync.NewService(
		calendarsync.NewRepository(pool),
		eventRepo,
		orgRepo,
		calendarsync.DialCalDAV(time.Duration(cfg.CalDAV.TimeoutSec)*time.Second, logger),
		cipher,
		calendarsync.NewRedisLocker(rdb.Client, time.Duration(cfg.Sync.LockTTLSec)*time.Second),
		logger,
	)
	syncHandler := calendarsync.NewHandler(syncService, orgRepo, jobQueue, backupStore, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		dbErr := pool.Ping(c.Request.Context())
		redisErr := rdb.Healthy(c.Request.Context())
		if dbErr != nil || redisErr != nil {
			response.ServiceUnavailable(c, "dependencies unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", authHandler.Me)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Organizations (create, join, list my orgs)
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations", orgHandler.CreateOrganization)
		api.POST("/organizations/join", orgHandler.JoinOrganization)

		// Calendar sync is per user; organization access is checked in the handler.
		syncHandler.RegisterRoutes(api.Group("/calendar-sync"))
	}

	org := api.Group("/orgs/:orgId", middleware.RequireOrgAccess(orgRepo))
	write := middleware.RequireOrgWrite()
	{
		org.GET("/members", orgHandler.ListMembers)
		org.PATCH("/members/:userId", orgHandler.SetMemberRole)

		// Agencies and commission
		org.GET("/agencies", agencyHandler.List)
		org.POST("/agencies", write, agencyHandler.Create)
		org.PATCH("/agencies/:agencyId", write, agencyHandler.Update)
		org.DELETE("/agencies/:agencyId", write, agencyHandler.Delete)
		org.POST("/agencies/presets", write, agencyHandler.LoadPresets)
		org.POST("/agencies/commission/preview", agencyHandler.Preview)

		// Shows
		org.GET("/shows", showHandler.List)
		org.POST("/shows", write, showHandler.Create)
		org.GET("/shows/:showId", showHandler.Get)
		org.PATCH("/shows/:showId", write, showHandler.Update)
		org.DELETE("/shows/:showId", write, showHandler.Delete)
		org.GET("/shows/:showId/commission", showHandler.Commission)

		// Venues
		org.GET("/venues", venueHandler.List)
		org.POST("/venues", write, venueHandler.Create)
		org.GET("/venues/:venueId", venueHandler.Get)
		org.PATCH("/venues/:venueId", write, venueHandler.Update)
		org.DELETE("/venues/:venueId", write, venueHandler.Delete)

		// Contacts
		org.GET("/contacts", contactHandler.List)
		org.POST("/contacts", write, contactHandler.Create)
		org.GET("/contacts/:contactId", contactHandler.Get)
		org.PATCH("/contacts/:contactId", write, contactHandler.Update)
		org.DELETE("/contacts/:contactId", write, contactHandler.Delete)

		// Calendar events
		org.GET("/events", eventHandler.List)
		org.POST("/events", write, eventHandler.Create)
		org.GET("/events/:eventId", eventHandler.Get)
		org.PATCH("/events/:eventId", write, eventHandler.Update)
		org.DELETE("/events/:eventId", write, eventHandler.Delete)
		org.GET("/calendar.ics", eventHandler.Export)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
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
