package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/sbp-ops/sbp-ops/internal/stock"
)

type fakeScanner struct {
	count int
	err   error
	calls int
}

func (f *fakeScanner) ScanReminders(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeLister struct {
	rows []stock.Stock
	err  error
}

func (f *fakeLister) LowStock(context.Context) ([]stock.Stock, error) {
	return f.rows, f.err
}

func TestReminderScanRuns(t *testing.T) {
	scanner := &fakeScanner{count: 3}
	job := NewInvoiceReminderScanJob(scanner, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewInvoiceReminderScanTask(ReminderScanPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, scanner.calls)
}

func TestReminderScanDryRunSkipsScanner(t *testing.T) {
	scanner := &fakeScanner{count: 3}
	job := NewInvoiceReminderScanJob(scanner, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewInvoiceReminderScanTask(ReminderScanPayload{DryRun: true})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, scanner.calls)
}

func TestReminderScanPropagatesError(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("db down")}
	job := NewInvoiceReminderScanJob(scanner, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewInvoiceReminderScanTask(ReminderScanPayload{})
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
}

func TestReminderScanBadPayloadSkipsRetry(t *testing.T) {
	job := NewInvoiceReminderScanJob(&fakeScanner{}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task := asynq.NewTask(TaskInvoiceReminderScan, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScanReports(t *testing.T) {
	lister := &fakeLister{rows: []stock.Stock{
		{Kode: "PRD001", Nama: "Semen", Lokasi: "Gudang A", StokSisa: 5, HargaIDR: 65_000},
		{Kode: "PRD002", Nama: "Cat", Lokasi: "Gudang B", StokSisa: 12, HargaIDR: 120_000},
	}}
	job := NewStockLowScanJob(lister, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewStockLowScanTask(LowStockScanPayload{Limit: 1})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
}
