package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sbp-ops/sbp-ops/internal/jobs"
)

// ReminderScanner runs the invoice reminder sweep.
type ReminderScanner interface {
	ScanReminders(ctx context.Context) (int, error)
}

// InvoiceReminderScanJob publishes reminder events for invoices whose due
// date has arrived.
type InvoiceReminderScanJob struct {
	Scanner ReminderScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInvoiceReminderScanJob initialises the reminder scan handler.
func NewInvoiceReminderScanJob(scanner ReminderScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceReminderScanJob {
	return &InvoiceReminderScanJob{Scanner: scanner, Logger: logger, Metrics: metrics}
}

// Handle executes the reminder scan.
func (j *InvoiceReminderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("reminder scan: handler not configured")
	}
	var payload ReminderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskInvoiceReminderScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.DryRun {
		logger.Info("dry run, skipping publish")
		return nil
	}

	count, err := j.Scanner.ScanReminders(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddReminders(count)

	logger.Info("completed reminder scan",
		slog.Int("reminders", count),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *InvoiceReminderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceReminderScan))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceReminderScan))
}

func (j *InvoiceReminderScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
