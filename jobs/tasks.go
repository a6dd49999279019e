package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/checkout"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries reconciliation work ahead of housekeeping.
	QueueCritical = "critical"

	// TaskCheckoutReconcile records a partially failed checkout.
	TaskCheckoutReconcile = "checkout:reconcile"
	// TaskInventoryLowStockScan reports products under their minimum stock.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewCheckoutReconcileTask wraps a partial-failure record.
func NewCheckoutReconcileTask(failure checkout.PartialFailure) (*asynq.Task, error) {
	body, err := json.Marshal(failure)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCheckoutReconcile, body, asynq.Queue(QueueCritical), asynq.MaxRetry(10)), nil
}

// LowStockScanPayload scopes the scan; an empty store scans every store.
type LowStockScanPayload struct {
	StoreID string `json:"store_id,omitempty"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(storeID string) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{StoreID: storeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload sets the retention of stored keys.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
