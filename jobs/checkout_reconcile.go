package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/checkout"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

// FailureRecorder persists partial checkout failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, failure checkout.PartialFailure) error
}

// CheckoutReconcileJob turns queued partial failures into durable records
// for an operator to resolve.
type CheckoutReconcileJob struct {
	Recorder FailureRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewCheckoutReconcileJob initialises the reconcile handler.
func NewCheckoutReconcileJob(recorder FailureRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *CheckoutReconcileJob {
	return &CheckoutReconcileJob{Recorder: recorder, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCheckoutReconcile tasks.
func (j *CheckoutReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Recorder == nil {
		return errors.New("checkout reconcile: handler not configured")
	}
	var failure checkout.PartialFailure
	if err := json.Unmarshal(t.Payload(), &failure); err != nil {
		return fmt.Errorf("checkout reconcile: decode: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskCheckoutReconcile)
	defer func() { err = tracker.End(err) }()

	if err := j.Recorder.RecordFailure(ctx, failure); err != nil {
		return err
	}
	j.Metrics.AddReconcile(failure.Compensated)

	level := slog.LevelWarn
	if !failure.Compensated {
		level = slog.LevelError
	}
	j.logger().Log(ctx, level, "checkout partial failure recorded",
		slog.String("sale_id", failure.SaleID.String()),
		slog.String("store_id", failure.StoreID.String()),
		slog.String("failed_step", failure.FailedStep),
		slog.Int("line_no", failure.LineNo),
		slog.Bool("compensated", failure.Compensated),
		slog.Int("decremented_lines", len(failure.Decremented)),
	)
	return nil
}

func (j *CheckoutReconcileJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
