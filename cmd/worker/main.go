package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/helixhealth/helix-portal/internal/app"
	"github.com/helixhealth/helix-portal/internal/billing"
	"github.com/helixhealth/helix-portal/internal/files"
	jobmetrics "github.com/helixhealth/helix-portal/internal/jobs"
	"github.com/helixhealth/helix-portal/internal/mail"
	"github.com/helixhealth/helix-portal/internal/platform/db"
	"github.com/helixhealth/helix-portal/jobs"
	"github.com/helixhealth/helix-portal/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	guard, err := files.NewGuard(cfg.UploadsRoot, cfg.InvoicesRoot)
	if err != nil {
		logger.Error("init path guard", slog.Any("error", err))
		os.Exit(1)
	}
	filesService := files.NewService(guard, files.NewRepository(pool), logger)

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	metrics := jobmetrics.NewMetrics(nil)

	emailJob := &jobs.SendEmailJob{
		Sender:  sender,
		Logger:  logger,
		Metrics: metrics,
	}

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	receiptJob := &jobs.GenerateReceiptJob{
		Invoices: billing.NewRepository(pool),
		Renderer: report.NewReceiptGenerator(pdfClient),
		Store:    filesService,
		Logger:   logger,
		Metrics:  metrics,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Email:     emailJob,
		Receipt:   receiptJob,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
