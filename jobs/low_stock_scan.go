package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

// LowStockSource lists active products at or under their minimum stock.
type LowStockSource interface {
	LowStock(ctx context.Context, storeID *uuid.UUID) ([]inventory.Product, error)
}

// LowStockScanJob logs and publishes low-stock counts per store.
type LowStockScanJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle processes TaskInventoryLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("low stock scan: decode: %v: %w", err, asynq.SkipRetry)
		}
	}
	var scope *uuid.UUID
	if payload.StoreID != "" {
		id, err := uuid.Parse(payload.StoreID)
		if err != nil {
			return fmt.Errorf("low stock scan: store id: %v: %w", err, asynq.SkipRetry)
		}
		scope = &id
	}

	tracker := j.Metrics.Track(TaskInventoryLowStockScan)
	defer func() { err = tracker.End(err) }()

	products, err := j.Source.LowStock(ctx, scope)
	if err != nil {
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return err
	}

	perStore := make(map[uuid.UUID]int)
	if scope != nil {
		perStore[*scope] = 0
	}
	for _, p := range products {
		perStore[p.StoreID]++
		attrs := []any{
			slog.String("store_id", p.StoreID.String()),
			slog.String("product_id", p.ID.String()),
			slog.String("name", p.Name),
			slog.Int64("stock_qty", p.StockQty),
		}
		if p.MinStock != nil {
			attrs = append(attrs, slog.Int64("min_stock", *p.MinStock))
		}
		j.logger().Warn("product below minimum stock", attrs...)
	}
	for storeID, count := range perStore {
		j.Metrics.SetLowStock(storeID.String(), count)
	}
	j.logger().Info("completed low stock scan", slog.Int("products", len(products)), slog.Int("stores", len(perStore)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
