package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// PGRepository persists sales in PostgreSQL and delegates product reads and
// stock decrements to the inventory repository.
type PGRepository struct {
	db        db.DBTX
	pool      db.Beginner
	inventory *inventory.Repository
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, inv *inventory.Repository) *PGRepository {
	return &PGRepository{db: pool, pool: pool, inventory: inv}
}

// WithTx runs fn with a repository and gateway bound to one read-committed
// transaction, so a rejected decrement rolls back the header and items.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository, StockGateway) error) error {
	if r.pool == nil {
		return errors.New("checkout: repository is already bound to a transaction")
	}
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		bound := &PGRepository{db: tx, inventory: r.inventory.Bind(tx)}
		return fn(ctx, bound, bound)
	})
}

// Store loads store settings.
func (r *PGRepository) Store(ctx context.Context, storeID uuid.UUID) (inventory.Store, error) {
	return r.inventory.Store(ctx, storeID)
}

// ProductsByID re-reads products.
func (r *PGRepository) ProductsByID(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]inventory.Product, error) {
	return r.inventory.ProductsByID(ctx, storeID, ids)
}

// DecrementStock delegates to the inventory ledger.
func (r *PGRepository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int64, ref string) error {
	return r.inventory.DecrementStock(ctx, productID, qty, ref)
}

// InsertSale writes the header; plan-limit triggers fire here.
func (r *PGRepository) InsertSale(ctx context.Context, sale Sale) error {
	_, err := r.db.Exec(ctx, `INSERT INTO sales (id, store_id, total_cents, payment_method, created_at) VALUES ($1, $2, $3, $4, $5)`,
		sale.ID, sale.StoreID, sale.TotalCents, string(sale.PaymentMethod), sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("checkout: insert sale: %w", err)
	}
	return nil
}

// InsertSaleItem writes one snapshot line.
func (r *PGRepository) InsertSaleItem(ctx context.Context, item SaleItem) error {
	_, err := r.db.Exec(ctx, `INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price_cents, subtotal_cents, product_name, barcode, line_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.SaleID, item.ProductID, item.Quantity, item.UnitPriceCents, item.SubtotalCents, item.ProductName, item.Barcode, item.LineNo)
	if err != nil {
		return fmt.Errorf("checkout: insert sale item: %w", err)
	}
	return nil
}

// DeleteSale removes a header and, by cascade, its items. Deleting a missing
// sale is not an error.
func (r *PGRepository) DeleteSale(ctx context.Context, saleID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sales WHERE id = $1`, saleID); err != nil {
		return fmt.Errorf("checkout: delete sale: %w", err)
	}
	return nil
}

// GetSale loads a hydrated sale within a store.
func (r *PGRepository) GetSale(ctx context.Context, storeID, saleID uuid.UUID) (Sale, error) {
	var s Sale
	var method string
	err := r.db.QueryRow(ctx, `SELECT id, store_id, created_at, total_cents, payment_method FROM sales WHERE id = $1 AND store_id = $2`, saleID, storeID).
		Scan(&s.ID, &s.StoreID, &s.CreatedAt, &s.TotalCents, &method)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, fmt.Errorf("checkout: get sale: %w", err)
	}
	s.PaymentMethod = PaymentMethod(method)
	items, err := r.itemsFor(ctx, []uuid.UUID{s.ID})
	if err != nil {
		return Sale{}, err
	}
	s.Items = items[s.ID]
	return s, nil
}

// ListSales returns a page of sale headers, newest first, and the total count.
func (r *PGRepository) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, int, error) {
	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}
	var method any
	if filter.PaymentMethod != "" {
		method = string(filter.PaymentMethod)
	}
	const where = `WHERE store_id = $1
		AND ($2::timestamptz IS NULL OR created_at >= $2)
		AND ($3::timestamptz IS NULL OR created_at <= $3)
		AND ($4::text IS NULL OR payment_method = $4)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales `+where, filter.StoreID, from, to, method).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("checkout: count sales: %w", err)
	}
	page, perPage := filter.Page, filter.PerPage
	rows, err := r.db.Query(ctx, `SELECT id, store_id, created_at, total_cents, payment_method FROM sales `+where+`
		ORDER BY created_at DESC, id LIMIT $5 OFFSET $6`,
		filter.StoreID, from, to, method, perPage, shared.Offset(page, perPage))
	if err != nil {
		return nil, 0, fmt.Errorf("checkout: list sales: %w", err)
	}
	sales, err := scanSales(rows)
	if err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

// SalesBetween loads every sale of a store in the inclusive window with items.
func (r *PGRepository) SalesBetween(ctx context.Context, storeID uuid.UUID, from, to time.Time) ([]Sale, error) {
	rows, err := r.db.Query(ctx, `SELECT id, store_id, created_at, total_cents, payment_method FROM sales
		WHERE store_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at`, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("checkout: sales between: %w", err)
	}
	sales, err := scanSales(rows)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}
	ids := make([]uuid.UUID, len(sales))
	for i := range sales {
		ids[i] = sales[i].ID
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

// RecordFailure stores a partial-failure record for reconciliation. Repeated
// deliveries for the same sale are ignored.
func (r *PGRepository) RecordFailure(ctx context.Context, f PartialFailure) error {
	decremented, err := json.Marshal(f.Decremented)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO checkout_failures (sale_id, store_id, failed_step, cause, compensated, decremented, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sale_id) DO NOTHING`,
		f.SaleID, f.StoreID, f.FailedStep, f.Cause, f.Compensated, decremented, f.OccurredAt)
	if err != nil {
		return fmt.Errorf("checkout: record failure: %w", err)
	}
	return nil
}

func scanSales(rows pgx.Rows) ([]Sale, error) {
	defer rows.Close()
	sales := []Sale{}
	for rows.Next() {
		var s Sale
		var method string
		if err := rows.Scan(&s.ID, &s.StoreID, &s.CreatedAt, &s.TotalCents, &method); err != nil {
			return nil, err
		}
		s.PaymentMethod = PaymentMethod(method)
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (r *PGRepository) itemsFor(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]SaleItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price_cents, subtotal_cents, product_name, barcode, line_no
		FROM sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("checkout: load items: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]SaleItem, len(saleIDs))
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents, &it.ProductName, &it.Barcode, &it.LineNo); err != nil {
			return nil, err
		}
		out[it.SaleID] = append(out[it.SaleID], it)
	}
	return out, rows.Err()
}
