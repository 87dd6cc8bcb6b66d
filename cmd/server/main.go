package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/services"
	"kwala.backend/internal/infrastructure/browser"
	"kwala.backend/internal/infrastructure/diagnostics"
	"kwala.backend/internal/infrastructure/jobs"
	"kwala.backend/internal/infrastructure/llm"
	"kwala.backend/internal/infrastructure/notifier"
	"kwala.backend/internal/infrastructure/store"
	"kwala.backend/internal/interfaces/http/handlers"
	"kwala.backend/internal/interfaces/http/middleware"
	"kwala.backend/internal/usecases"
	"kwala.backend/pkg/errtrack"
	"kwala.backend/pkg/jwt"
	"kwala.backend/pkg/logger"
	"kwala.backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openStore  = store.Open
	openSink   = diagnostics.New
	runServer  = func(srv *http.Server) error { return srv.ListenAndServe() }
	// shutdownSignal delivers SIGINT and SIGTERM.
	shutdownSignal = func() <-chan os.Signal {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		return quit
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	defer logger.Sync()
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := errtrack.Init(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logger.Warn(ctx, "Error tracking disabled", zap.Error(err))
	}
	defer errtrack.Flush(2 * time.Second)

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()
	logger.Info(ctx, "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	accounts, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open account store: %w", err)
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			logger.Warn(context.Background(), "Failed to close account store", zap.Error(err))
		}
	}()
	logger.Info(ctx, "Account store ready", zap.String("driver", cfg.Store.Driver))

	sender, err := newCodeSender(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure mail: %w", err)
	}

	sink, err := openSink(ctx, cfg.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to configure diagnostics: %w", err)
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry)
	locker := redis.NewLocker(redis.GetClient(), "kwala:")

	credentialUsecase := usecases.NewCredentialUsecase(accounts, sender, jwtService, cfg.Credentials,
		usecases.WithResendThrottle(locker),
	)
	if err := credentialUsecase.EnsureIndexes(ctx); err != nil {
		logger.Warn(ctx, "Failed to ensure account indexes", zap.Error(err))
	}
	chatUsecase := usecases.NewChatUsecase(llm.NewGroqGenerator(cfg.LLM))
	pipeline := usecases.NewHumanizePipeline(browser.NewChromeLauncher(cfg.Humanize), sink, cfg.Humanize)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	sweepJob := jobs.NewRegistrationSweepJob(credentialUsecase, cfg.Credentials.SweepInterval)
	go sweepJob.Start(runCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r, cfg.Server.AllowedOrigins)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIRoutes(r, routeDeps{
		authHandler:     handlers.NewAuthHandler(credentialUsecase),
		chatHandler:     handlers.NewChatHandler(chatUsecase),
		humanizeHandler: handlers.NewHumanizeHandler(pipeline),
		authMiddleware:  middleware.AuthMiddleware(jwtService),
		humanizeGuard:   humanizeGuard(locker, cfg.Humanize.UserLockTTL),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := shutdownSignal()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-quit:
		case <-runCtx.Done():
			return
		}
		logger.Info(context.Background(), "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "Server shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Kwala backend starting",
		zap.String("port", cfg.Server.Port),
		zap.Int("routes", len(r.Routes())),
	)

	serveErr := runServer(srv)

	sweepJob.Stop()
	cancelRun()
	<-stopped
	if err := pipeline.Cleanup(); err != nil {
		logger.Warn(context.Background(), "Browser cleanup failed", zap.Error(err))
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", serveErr)
	}
	return nil
}

// newCodeSender falls back to logging codes when no SMTP host is configured.
func newCodeSender(cfg *config.Config) (services.CodeSender, error) {
	if cfg.SMTP.Host == "" {
		return notifier.LogSender{}, nil
	}
	sender, err := notifier.NewSMTPSender(cfg.SMTP, cfg.Credentials.CodeTTL)
	if err != nil {
		return nil, err
	}
	return sender, nil
}
