package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sbp-ops/sbp-ops/internal/jobs"
	"github.com/sbp-ops/sbp-ops/internal/shared"
	"github.com/sbp-ops/sbp-ops/internal/stock"
)

// LowStockLister returns the stock rows under the restock threshold.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]stock.Stock, error)
}

// StockLowScanJob logs every stock row sitting at or under the low stock
// threshold so the ops team can plan restocking.
type StockLowScanJob struct {
	Lister  LowStockLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockLowScanJob initialises the low stock scan handler.
func NewStockLowScanJob(lister LowStockLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockLowScanJob {
	return &StockLowScanJob{Lister: lister, Logger: logger, Metrics: metrics}
}

// Handle executes the low stock scan.
func (j *StockLowScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lister == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskStockLowScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	rows, err := j.Lister.LowStock(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetLowStock(len(rows))

	reported := rows
	if payload.Limit > 0 && len(reported) > payload.Limit {
		reported = reported[:payload.Limit]
	}
	for _, s := range reported {
		logger.Warn("stok menipis",
			slog.String("kode", s.Kode),
			slog.String("nama", s.Nama),
			slog.String("lokasi", s.Lokasi),
			slog.Int64("stok_sisa", s.StokSisa),
			slog.String("nilai", shared.FormatRupiah(s.HargaIDR*s.StokSisa)),
		)
	}

	logger.Info("completed low stock scan",
		slog.Int("items", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *StockLowScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockLowScan))
	}
	return slog.Default().With(slog.String("job", TaskStockLowScan))
}

func (j *StockLowScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
