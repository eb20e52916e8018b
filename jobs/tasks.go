package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceReminderScan publishes reminders for invoices coming due.
	TaskInvoiceReminderScan = "invoice:reminder_scan"
	// TaskStockLowScan reports stock rows at or under the low threshold.
	TaskStockLowScan = "stock:low_scan"
)

// ReminderScanPayload configures one reminder scan run.
type ReminderScanPayload struct {
	// DryRun skips publishing and only logs what would be sent.
	DryRun bool `json:"dry_run"`
}

// LowStockScanPayload configures one low stock scan run.
type LowStockScanPayload struct {
	// Limit caps how many rows are reported per run. Zero means all.
	Limit int `json:"limit"`
}

// NewInvoiceReminderScanTask constructs the reminder scan task.
func NewInvoiceReminderScanTask(payload ReminderScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceReminderScan, data), nil
}

// NewStockLowScanTask constructs the low stock scan task.
func NewStockLowScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockLowScan, data), nil
}
