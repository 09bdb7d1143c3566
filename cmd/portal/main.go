package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/helixhealth/helix-portal/internal/accounts"
	"github.com/helixhealth/helix-portal/internal/app"
	"github.com/helixhealth/helix-portal/internal/billing"
	"github.com/helixhealth/helix-portal/internal/files"
	"github.com/helixhealth/helix-portal/internal/mail"
	"github.com/helixhealth/helix-portal/internal/observability"
	"github.com/helixhealth/helix-portal/internal/platform/cache"
	"github.com/helixhealth/helix-portal/internal/platform/db"
	"github.com/helixhealth/helix-portal/internal/session"
	"github.com/helixhealth/helix-portal/internal/shared"
	"github.com/helixhealth/helix-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("init session issuer", slog.Any("error", err))
		os.Exit(1)
	}
	limiter := shared.NewLoginLimiter(redisClient, int64(cfg.LoginAttemptLimit), cfg.LoginAttemptWindow)

	guard, err := files.NewGuard(cfg.UploadsRoot, cfg.InvoicesRoot)
	if err != nil {
		logger.Error("init path guard", slog.Any("error", err))
		os.Exit(1)
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	mailer := jobs.NewQueueMailer(&mail.Composer{}, jobClient)

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	hasher := accounts.NewPasswordHasher(cfg.BcryptCost)
	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, hasher, mailer, auditLogger, cfg.BaseURL, logger)
	accountsHandler := accounts.NewHandler(logger, accountsService, sessions, limiter, metrics)

	filesRepo := files.NewRepository(pool)
	filesService := files.NewService(guard, filesRepo, logger)
	filesHandler := files.NewHandler(logger, filesService)

	gateway := billing.NewGateway(cfg.PaymentBrands, logger)
	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, gateway, filesService, jobClient, auditLogger, logger)
	billingHandler := billing.NewHandler(logger, billingService, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Sessions:        sessions,
		AccountsHandler: accountsHandler,
		FilesHandler:    filesHandler,
		BillingHandler:  billingHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
