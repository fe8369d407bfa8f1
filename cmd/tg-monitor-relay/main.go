package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tg-monitor-relay-go/internal/config"
	"tg-monitor-relay-go/internal/forward"
	"tg-monitor-relay-go/internal/handlers"
	"tg-monitor-relay-go/internal/matcher"
	"tg-monitor-relay-go/internal/metrics"
	"tg-monitor-relay-go/internal/pipeline"
	"tg-monitor-relay-go/internal/repository"
	"tg-monitor-relay-go/internal/runtime"
	"tg-monitor-relay-go/internal/source"
)

func main() {
	// Configure logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting TG Monitor Relay Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	repo := repository.New(db)
	if err := repo.Migrate(); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}
	if err := repo.EnsureSingletons(); err != nil {
		logrus.Fatalf("Failed to seed control rows: %v", err)
	}

	// Initialize metrics
	mtr := metrics.NewMetrics()

	// Initialize matcher, transport, executor and pipeline
	m := matcher.New(repo)
	transport := forward.NewTelegramTransport(cfg.Telegram.BotToken, cfg.Telegram.RequestTimeout)
	executor := forward.NewExecutor(transport, repo, mtr, cfg.Pipeline.ForwardAttempts, cfg.Telegram.RequestTimeout)
	pipe := pipeline.New(repo, m, executor, mtr, pipeline.Config{
		Destination: cfg.Telegram.DestinationChatID,
		LeaseWindow: cfg.Pipeline.LeaseWindow,
		MaxFailures: cfg.Pipeline.MaxFailures,
		LogSkipped:  cfg.Pipeline.LogSkipped,
	})

	// Initialize source client and backfill reconciler
	client := source.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.SourceChatIDs, cfg.Telegram.RequestTimeout)
	reconciler := pipeline.NewReconciler(client, pipe, repo, mtr, cfg.Telegram.SourceChatIDs, cfg.Pipeline.PageSize)

	// Initialize runtime
	rt := runtime.New(repo, client, pipe, reconciler, m, runtime.Config{
		BackfillIntervalMinutes: cfg.Scheduler.BackfillIntervalMinutes,
		CleanupIntervalHours:    cfg.Scheduler.CleanupIntervalHours,
		MatcherRefreshSeconds:   cfg.Scheduler.MatcherRefreshSeconds,
		EventLogRetentionDays:   cfg.Scheduler.EventLogRetentionDays,
		LedgerRetentionDays:     cfg.Scheduler.LedgerRetentionDays,
	})

	// Initialize HTTP handlers
	h := handlers.NewHandlers(repo, rt, m, mtr, cfg.Admin)

	// Setup HTTP server
	router := setupRouter(h)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start runtime
	if err := rt.Start(); err != nil {
		logrus.Fatalf("Failed to start runtime: %v", err)
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rt.Stop(); err != nil {
		logrus.Errorf("Failed to stop runtime: %v", err)
	}
	rt.Wait()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
}

// initDatabase initializes the database connection
func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logrus.Info("Database initialized successfully")
	return db, nil
}

// setupRouter sets up the HTTP router with middleware
func setupRouter(h *handlers.Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	h.SetupRoutes(router)

	return router
}

// loggerMiddleware adds logging middleware
func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
