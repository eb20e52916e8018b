package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sbp-ops/sbp-ops/internal/app"
	"github.com/sbp-ops/sbp-ops/internal/invoice"
	jobmetrics "github.com/sbp-ops/sbp-ops/internal/jobs"
	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/stock"
	"github.com/sbp-ops/sbp-ops/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	// The worker publishes nothing to the websocket hub; it runs in its own
	// process, so the services get a nil publisher and only log.
	invoiceService := invoice.NewService(logger, invoice.NewRepository(pool), nil)
	stockService := stock.NewService(logger, stock.NewRepository(pool), nil, nil)

	reminderJob := jobs.NewInvoiceReminderScanJob(invoiceService, logger, metrics)
	lowStockJob := jobs.NewStockLowScanJob(stockService, logger, metrics)

	reminderTask, err := jobs.NewInvoiceReminderScanTask(jobs.ReminderScanPayload{})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask, err := jobs.NewStockLowScanTask(jobs.LowStockScanPayload{})
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceReminderScan, Handler: reminderJob.Handle},
			{Type: jobs.TaskStockLowScan, Handler: lowStockJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 6 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
