// Package main runs the membership portal HTTP server with WebSocket and graceful shutdown.
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

	"github.com/membership-portal/backend/config"
	"github.com/membership-portal/backend/internal/activity"
	"github.com/membership-portal/backend/internal/admin"
	"github.com/membership-portal/backend/internal/attendance"
	"github.com/membership-portal/backend/internal/auth"
	"github.com/membership-portal/backend/internal/events"
	"github.com/membership-portal/backend/internal/leaderboard"
	"github.com/membership-portal/backend/internal/middleware"
	"github.com/membership-portal/backend/internal/realtime"
	"github.com/membership-portal/backend/internal/users"
	"github.com/membership-portal/backend/pkg/database"
	"github.com/membership-portal/backend/pkg/queue"
	"github.com/membership-portal/backend/pkg/redis"
	"github.com/membership-portal/backend/pkg/response"
	"github.com/membership-portal/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var pictures users.PictureStore
	if cfg.AWS.AccessKeyID != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			UploadBucket:    cfg.AWS.UploadBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			pictures = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	emailQueue := queue.NewQueue(rdb.Client, queue.QueueEmails, logger)

	userRepo := users.NewRepository(pool)
	activityRepo := activity.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)

	board := leaderboard.NewCache(userRepo, rdb.Client, time.Duration(cfg.Leaderboard.CacheTTLSeconds)*time.Second, logger)
	hub := realtime.NewHub(realtime.NewRedisPubSub(rdb.Client, logger), logger)

	authService := auth.NewService(userRepo, activityRepo, emailQueue, jwtService, logger)
	attendanceService := attendance.NewService(
		attendance.NewPgStore(pool), eventRepo, userRepo, attendanceRepo, logger,
		attendance.WithLeaderboard(board),
		attendance.WithFeed(hub),
	)
	adminService := admin.NewService(admin.NewPgStore(pool), userRepo, board, logger)

	authHandler := auth.NewHandler(authService, logger)
	userHandler := users.NewHandler(userRepo, activityRepo, pictures, board, cfg.AWS.MaxPictureBytes, logger)
	eventHandler := events.NewHandler(eventRepo, logger)
	attendanceHandler := attendance.NewHandler(attendanceService, logger)
	adminHandler := admin.NewHandler(adminService, attendanceService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	v1 := router.Group("/api/v1")

	// Public
	authHandler.RegisterRoutes(v1.Group("/auth"))

	// Members (JWT required)
	api := v1.Group("")
	api.Use(middleware.JWT(jwtService, userRepo, logger))
	userHandler.Register(api)
	eventHandler.RegisterMember(api)
	attendanceHandler.Register(api)

	// Admin
	adminGroup := api.Group("/admin", middleware.RequireAdmin())
	eventHandler.RegisterAdmin(adminGroup)
	adminHandler.Register(adminGroup)

	// Live check-in feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), authService.Authenticate, logger))

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

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
