// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/database"
	"github.com/javajoker/retail-backend/internal/i18n"
	"github.com/javajoker/retail-backend/internal/queue"
	"github.com/javajoker/retail-backend/internal/router"
	"github.com/javajoker/retail-backend/internal/services"
	"github.com/javajoker/retail-backend/internal/tasks"
	"github.com/javajoker/retail-backend/internal/utils"
)

const memoryQueueCapacity = 1024

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}

	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.Fatal("Failed to initialize database: ", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.Fatal("Failed to run migrations: ", err)
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		logrus.Fatal("Failed to initialize i18n: ", err)
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("Object storage unavailable, s3 sources disabled")
		storageService = services.NewStorageServiceWithClient(nil, cfg.AWS.S3Bucket, cfg.Ingestion.LocalArchiveDir, cfg.Ingestion.MaxDocumentSize)
	}

	svc := router.BuildServices(db, cfg, storageService)

	// Notification queue and workers
	notificationQueue, closeQueue := newNotificationQueue(cfg)
	notificationService, err := services.NewNotificationService(db, notificationQueue, services.NewMailer(cfg.Email), cfg.Notification)
	if err != nil {
		logrus.Fatal("Failed to initialize notifications: ", err)
	}
	svc.Order.Subscribe(notificationService)
	svc.Auth.Subscribe(notificationService)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := notificationQueue.Run(workerCtx, notificationService.Handle); err != nil {
			logrus.WithError(err).Error("Notification workers stopped")
		}
	}()

	// Scheduled price-list refresh
	refreshTask := tasks.NewPriceListRefreshTask(svc.Import, cfg.Ingestion.RefreshSchedule, cfg.Ingestion.RefreshWorkers)
	if err := refreshTask.Start(); err != nil {
		logrus.Fatal("Failed to schedule price-list refresh: ", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(db, cfg, svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	refreshTask.Stop()

	// Workers finish their current job; the Redis backend keeps the rest.
	stopWorkers()
	workers.Wait()
	closeQueue()

	logrus.Info("Server exited")
}

func newNotificationQueue(cfg *config.Config) (queue.Queue, func()) {
	opts := queue.Options{
		Workers:     cfg.Notification.Workers,
		MaxAttempts: cfg.Notification.MaxAttempts,
		RetryDelay:  cfg.Notification.RetryDelay,

		EnqueueTimeout: cfg.Notification.EnqueueTimeout,
	}

	if cfg.Notification.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logrus.Fatal("Failed to connect to redis: ", err)
		}

		q := queue.NewRedisQueue(client, cfg.Notification.QueueKey, opts)
		return q, func() {
			q.Close()
			client.Close()
		}
	}

	q := queue.NewMemoryQueue(memoryQueueCapacity, opts)
	return q, func() { q.Close() }
}
