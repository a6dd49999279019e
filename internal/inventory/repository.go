package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	db   db.DBTX
	pool db.Beginner
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Bind returns a repository whose statements run inside tx.
func (r *Repository) Bind(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProduct(ctx context.Context, storeID, productID uuid.UUID) (Product, Store, error)
	SetStock(ctx context.Context, productID uuid.UUID, qty int64) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

// WithTx executes the callback inside a read-committed transaction. A bound
// repository reuses its enclosing transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, r.Bind(tx))
	})
}

const decrementStockSQL = `
WITH updated AS (
	UPDATE products p
	SET stock_qty = p.stock_qty - $2::bigint, updated_at = NOW()
	FROM stores s
	WHERE p.id = $1 AND s.id = p.store_id
	  AND (p.stock_qty >= $2::bigint OR s.allow_negative_stock)
	RETURNING p.id, p.stock_qty
), movement AS (
	INSERT INTO inventory_movements (product_id, delta, balance_after, reason, ref)
	SELECT id, -($2::bigint), stock_qty, 'SALE', $3 FROM updated
	RETURNING balance_after
)
SELECT balance_after FROM movement`

// DecrementStock subtracts qty from the product in one conditional statement
// and records the movement alongside it. No matching row means the guard
// rejected the decrement or the product does not exist.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int64, ref string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	var balance int64
	err := r.db.QueryRow(ctx, decrementStockSQL, productID, qty, ref).Scan(&balance)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("inventory: decrement %s: %w", productID, err)
	}
	var available int64
	err = r.db.QueryRow(ctx, `SELECT stock_qty FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("inventory: read stock %s: %w", productID, err)
	}
	return &ShortageError{ProductID: productID, Requested: qty, Available: available}
}

// Store loads store settings.
func (r *Repository) Store(ctx context.Context, storeID uuid.UUID) (Store, error) {
	var s Store
	var plan string
	err := r.db.QueryRow(ctx, `SELECT id, name, plan, allow_negative_stock, timezone FROM stores WHERE id = $1`, storeID).
		Scan(&s.ID, &s.Name, &plan, &s.AllowNegativeStock, &s.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, ErrStoreNotFound
	}
	if err != nil {
		return Store{}, fmt.Errorf("inventory: load store: %w", err)
	}
	s.Plan = Plan(plan)
	return s, nil
}

const productColumns = `id, store_id, name, price_cents, cost_cents, stock_qty, min_stock, active, barcode, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.PriceCents, &p.CostCents, &p.StockQty, &p.MinStock, &p.Active, &p.Barcode, &p.UpdatedAt)
	return p, err
}

// ProductsByID re-reads the current state of the given products within a store.
func (r *Repository) ProductsByID(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE store_id = $1 AND id = ANY($2)`, storeID, ids)
	if err != nil {
		return nil, fmt.Errorf("inventory: load products: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// ProductCosts returns the current unit cost of every product in a store;
// unknown cost is 0.
func (r *Repository) ProductCosts(ctx context.Context, storeID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id, COALESCE(cost_cents, 0) FROM products WHERE store_id = $1`, storeID)
	if err != nil {
		return nil, fmt.Errorf("inventory: load costs: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var cost int64
		if err := rows.Scan(&id, &cost); err != nil {
			return nil, err
		}
		out[id] = cost
	}
	return out, rows.Err()
}

// LowStock lists active products at or below their minimum. A nil store
// scans every store.
func (r *Repository) LowStock(ctx context.Context, storeID *uuid.UUID) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE active AND min_stock IS NOT NULL AND stock_qty <= min_stock
		  AND ($1::uuid IS NULL OR store_id = $1)
		ORDER BY store_id, name`, storeID)
	if err != nil {
		return nil, fmt.Errorf("inventory: low stock: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StockCard lists movements for a product, newest first.
func (r *Repository) StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}
	rows, err := r.db.Query(ctx, `SELECT m.id, m.product_id, m.delta, m.balance_after, m.reason, m.ref, m.note, m.actor_id, m.posted_at
		FROM inventory_movements m
		JOIN products p ON p.id = m.product_id
		WHERE m.product_id = $1 AND p.store_id = $2
		  AND ($3::timestamptz IS NULL OR m.posted_at >= $3)
		  AND ($4::timestamptz IS NULL OR m.posted_at <= $4)
		ORDER BY m.posted_at DESC, m.id DESC
		LIMIT $5`, filter.ProductID, filter.StoreID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("inventory: stock card: %w", err)
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var reason string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &m.BalanceAfter, &reason, &m.Ref, &m.Note, &m.ActorID, &m.PostedAt); err != nil {
			return nil, err
		}
		m.Reason = MovementReason(reason)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LockProduct reads the product row FOR UPDATE together with its store.
func (r *Repository) LockProduct(ctx context.Context, storeID, productID uuid.UUID) (Product, Store, error) {
	var p Product
	var s Store
	var plan string
	err := r.db.QueryRow(ctx, `SELECT p.id, p.store_id, p.name, p.price_cents, p.cost_cents, p.stock_qty, p.min_stock, p.active, p.barcode, p.updated_at,
			s.id, s.name, s.plan, s.allow_negative_stock, s.timezone
		FROM products p JOIN stores s ON s.id = p.store_id
		WHERE p.id = $1 AND p.store_id = $2
		FOR UPDATE OF p`, productID, storeID).
		Scan(&p.ID, &p.StoreID, &p.Name, &p.PriceCents, &p.CostCents, &p.StockQty, &p.MinStock, &p.Active, &p.Barcode, &p.UpdatedAt,
			&s.ID, &s.Name, &plan, &s.AllowNegativeStock, &s.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, Store{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, Store{}, fmt.Errorf("inventory: lock product: %w", err)
	}
	s.Plan = Plan(plan)
	return p, s, nil
}

// SetStock overwrites the stock quantity of a locked product.
func (r *Repository) SetStock(ctx context.Context, productID uuid.UUID, qty int64) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET stock_qty = $2, updated_at = NOW() WHERE id = $1`, productID, qty)
	return err
}

// InsertMovement appends a stock card entry.
func (r *Repository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO inventory_movements (product_id, delta, balance_after, reason, ref, note, actor_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		m.ProductID, m.Delta, m.BalanceAfter, string(m.Reason), m.Ref, m.Note, m.ActorID, m.PostedAt).Scan(&m.ID)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return m, nil
}
