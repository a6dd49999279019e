package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/planlimit"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository is the write surface the coordinator needs.
type Repository interface {
	Store(ctx context.Context, storeID uuid.UUID) (inventory.Store, error)
	ProductsByID(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]inventory.Product, error)
	InsertSale(ctx context.Context, sale Sale) error
	InsertSaleItem(ctx context.Context, item SaleItem) error
	DeleteSale(ctx context.Context, saleID uuid.UUID) error
}

// StockGateway decrements one product atomically, rejecting a result below
// zero unless the store allows negative stock.
type StockGateway interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int64, ref string) error
}

// TxRunner is implemented by repositories that can run the header, items
// and decrements in one transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository, StockGateway) error) error
}

// ReconciliationQueue receives partial-failure records.
type ReconciliationQueue interface {
	EnqueueCheckoutReconcile(ctx context.Context, failure PartialFailure) error
}

// EventPublisher announces completed sales.
type EventPublisher interface {
	PublishSaleCompleted(ctx context.Context, sale Sale) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort claims and releases request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, storeID uuid.UUID, key, module string) error
	Delete(ctx context.Context, storeID uuid.UUID, key, module string) error
}

// Config tunes the coordinator.
type Config struct {
	// Atomic runs the write steps in one transaction when the repository
	// implements TxRunner.
	Atomic              bool
	CompensationTimeout time.Duration
}

// Deps groups collaborators; only Repo and Stock are required.
type Deps struct {
	Repo        Repository
	Stock       StockGateway
	Queue       ReconciliationQueue
	Events      EventPublisher
	Audit       AuditPort
	Idempotency IdempotencyPort
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Coordinator orchestrates checkout.
type Coordinator struct {
	repo        Repository
	stock       StockGateway
	tx          TxRunner
	queue       ReconciliationQueue
	events      EventPublisher
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     *observability.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	cfg         Config
	now         func() time.Time
	newID       func() uuid.UUID
}

const idempotencyModule = "checkout"

// NewCoordinator wires a coordinator.
func NewCoordinator(deps Deps, cfg Config) *Coordinator {
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		repo:        deps.Repo,
		stock:       deps.Stock,
		queue:       deps.Queue,
		events:      deps.Events,
		audit:       deps.Audit,
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		logger:      logger.With(slog.String("component", "checkout")),
		tracer:      otel.Tracer("github.com/odyssey-erp/odyssey-pos/internal/checkout"),
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.New,
	}
	if runner, ok := deps.Repo.(TxRunner); ok && cfg.Atomic {
		c.tx = runner
	}
	return c
}

// Checkout validates the cart against fresh product state and persists it
// as a sale. Nothing is retried.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*Sale, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("store.id", req.StoreID.String()),
		attribute.Int("cart.lines", len(req.Items)),
		attribute.Bool("checkout.atomic", c.tx != nil),
	))
	defer span.End()

	sale, err := c.checkout(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		var aborted *TransactionAbortedError
		if errors.As(err, &aborted) {
			c.metrics.RecordCheckout(observability.CheckoutAborted)
		} else {
			c.metrics.RecordCheckout(observability.CheckoutRejected)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("sale.id", sale.ID.String()), attribute.Int64("sale.total_cents", sale.TotalCents))
	c.metrics.RecordCheckout(observability.CheckoutSucceeded)
	return sale, nil
}

func (c *Coordinator) checkout(ctx context.Context, req Request) (*Sale, error) {
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	store, err := c.repo.Store(ctx, req.StoreID)
	if err != nil {
		return nil, classify(err)
	}
	products, err := c.repo.ProductsByID(ctx, req.StoreID, cart.ProductIDs(req.Items))
	if err != nil {
		return nil, classify(err)
	}
	lines, err := cart.Validate(req.Items, products, store.AllowNegativeStock)
	if err != nil {
		var oos *cart.OutOfStockError
		if errors.As(err, &oos) {
			return nil, fmt.Errorf("%w: %w", ErrInsufficientStock, err)
		}
		return nil, err
	}

	claimed := false
	if req.IdempotencyKey != "" && c.idempotency != nil {
		if err := c.idempotency.CheckAndInsert(ctx, req.StoreID, req.IdempotencyKey, idempotencyModule); err != nil {
			return nil, err
		}
		claimed = true
	}

	sale := Sale{
		ID:            c.newID(),
		StoreID:       req.StoreID,
		CreatedAt:     c.now().UTC(),
		TotalCents:    cart.Total(lines),
		PaymentMethod: req.PaymentMethod,
	}
	items := make([]SaleItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, SaleItem{
			ID:             c.newID(),
			SaleID:         sale.ID,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  line.SubtotalCents,
			ProductName:    line.Name,
			Barcode:        line.Barcode,
			LineNo:         i + 1,
		})
	}

	var leftWrites bool
	if c.tx != nil {
		err = c.persistAtomic(ctx, sale, items)
	} else {
		leftWrites, err = c.persistSequential(ctx, sale, items)
	}
	if err != nil {
		if claimed && !leftWrites {
			_ = c.idempotency.Delete(context.WithoutCancel(ctx), req.StoreID, req.IdempotencyKey, idempotencyModule)
		}
		return nil, err
	}

	sale.Items = items
	c.afterCommit(ctx, req, sale)
	return &sale, nil
}

func (c *Coordinator) persistAtomic(ctx context.Context, sale Sale, items []SaleItem) error {
	err := c.tx.WithTx(ctx, func(ctx context.Context, repo Repository, stock StockGateway) error {
		if err := repo.InsertSale(ctx, sale); err != nil {
			return err
		}
		for _, item := range items {
			if err := repo.InsertSaleItem(ctx, item); err != nil {
				return err
			}
			if err := stock.DecrementStock(ctx, item.ProductID, item.Quantity, sale.ID.String()); err != nil {
				return err
			}
		}
		return nil
	})
	return classify(err)
}

// persistSequential writes the header, then each item followed by its
// decrement. leftWrites reports whether anything survived the failure.
func (c *Coordinator) persistSequential(ctx context.Context, sale Sale, items []SaleItem) (leftWrites bool, err error) {
	if err := c.repo.InsertSale(ctx, sale); err != nil {
		return false, classify(err)
	}
	decremented := make([]Decrement, 0, len(items))
	for _, item := range items {
		if err := c.repo.InsertSaleItem(ctx, item); err != nil {
			return c.abort(ctx, sale, StepInsertItem, item.LineNo, decremented, err)
		}
		if err := c.stock.DecrementStock(ctx, item.ProductID, item.Quantity, sale.ID.String()); err != nil {
			return c.abort(ctx, sale, StepDecrementStock, item.LineNo, decremented, err)
		}
		decremented = append(decremented, Decrement{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return true, nil
}

// abort deletes the sale header on a context detached from the caller and
// records the partial failure. Earlier decrements stay applied.
func (c *Coordinator) abort(ctx context.Context, sale Sale, step string, lineNo int, decremented []Decrement, cause error) (bool, error) {
	cause = classify(cause)
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CompensationTimeout)
	defer cancel()

	compensated := true
	if err := c.repo.DeleteSale(cctx, sale.ID); err != nil {
		compensated = false
		c.logger.Error("CRITICAL checkout compensation failed",
			slog.String("sale_id", sale.ID.String()),
			slog.Any("error", err),
		)
	}
	c.metrics.RecordCompensation(compensated)

	failure := PartialFailure{
		SaleID:      sale.ID,
		StoreID:     sale.StoreID,
		FailedStep:  step,
		LineNo:      lineNo,
		Cause:       cause.Error(),
		Compensated: compensated,
		Decremented: decremented,
		OccurredAt:  c.now().UTC(),
	}
	c.logger.Warn("checkout partial failure",
		slog.String("sale_id", sale.ID.String()),
		slog.String("store_id", sale.StoreID.String()),
		slog.String("failed_step", step),
		slog.Int("line_no", lineNo),
		slog.Bool("compensated", compensated),
		slog.Any("decremented", decremented),
		slog.Any("cause", cause),
	)
	if c.queue != nil {
		if err := c.queue.EnqueueCheckoutReconcile(cctx, failure); err != nil {
			c.logger.Error("enqueue checkout reconcile", slog.String("sale_id", sale.ID.String()), slog.Any("error", err))
		}
	}

	leftWrites := !compensated || len(decremented) > 0
	return leftWrites, &TransactionAbortedError{
		SaleID:      sale.ID,
		Step:        step,
		Cause:       cause,
		Compensated: compensated,
		Decremented: decremented,
	}
}

func (c *Coordinator) afterCommit(ctx context.Context, req Request, sale Sale) {
	if c.audit != nil {
		if err := c.audit.Record(ctx, shared.AuditLog{
			StoreID:  sale.StoreID,
			ActorID:  req.ActorID,
			Action:   "checkout:complete",
			Entity:   "sale",
			EntityID: sale.ID.String(),
			Meta: map[string]any{
				"total_cents":    sale.TotalCents,
				"payment_method": string(sale.PaymentMethod),
				"items":          len(sale.Items),
			},
			At: sale.CreatedAt,
		}); err != nil {
			c.logger.Warn("audit checkout", slog.String("sale_id", sale.ID.String()), slog.Any("error", err))
		}
	}
	if c.events != nil {
		if err := c.events.PublishSaleCompleted(ctx, sale); err != nil {
			c.logger.Warn("publish sale completed", slog.String("sale_id", sale.ID.String()), slog.Any("error", err))
		}
	}
}

// classify leaves stock and catalogue errors intact and runs everything
// else through the plan-limit interpreter.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrStoreNotFound),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return err
	}
	return planlimit.Classify(err)
}

// Quote prices items against the latest product state without writing
// anything. The stock check is advisory, as it is for Checkout.
func (c *Coordinator) Quote(ctx context.Context, storeID uuid.UUID, items []cart.Item) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, ErrEmptyCart
	}
	store, err := c.repo.Store(ctx, storeID)
	if err != nil {
		return Quote{}, classify(err)
	}
	products, err := c.repo.ProductsByID(ctx, storeID, cart.ProductIDs(items))
	if err != nil {
		return Quote{}, classify(err)
	}

	basket := cart.New()
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return Quote{}, &cart.UnknownProductError{ProductID: item.ProductID}
		}
		if err := basket.Add(product, item.Quantity); err != nil {
			return Quote{}, err
		}
	}
	if _, err := cart.Validate(basket.Items(), products, store.AllowNegativeStock); err != nil {
		var oos *cart.OutOfStockError
		if errors.As(err, &oos) {
			return Quote{}, fmt.Errorf("%w: %w", ErrInsufficientStock, err)
		}
		return Quote{}, err
	}
	return Quote{StoreID: storeID, Items: basket.Items(), TotalCents: basket.Total()}, nil
}
