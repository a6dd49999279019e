package inventory

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type memoryRepo struct {
	stores    map[uuid.UUID]Store
	products  map[uuid.UUID]Product
	movements []Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stores: make(map[uuid.UUID]Store), products: make(map[uuid.UUID]Product)}
}

func (r *memoryRepo) addProduct(store Store, stock int64, minStock *int64) Product {
	r.stores[store.ID] = store
	p := Product{ID: uuid.New(), StoreID: store.ID, Name: "Kopi Susu", PriceCents: 1800, StockQty: stock, MinStock: minStock, Active: true}
	r.products[p.ID] = p
	return p
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[uuid.UUID]Product, len(r.products))
	for k, v := range r.products {
		snapshot[k] = v
	}
	movements := len(r.movements)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.products = snapshot
		r.movements = r.movements[:movements]
		return err
	}
	return nil
}

func (r *memoryRepo) StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.ProductID == filter.ProductID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) LowStock(ctx context.Context, storeID *uuid.UUID) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if storeID != nil && p.StoreID != *storeID {
			continue
		}
		if p.Active && p.MinStock != nil && p.StockQty <= *p.MinStock {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (tx *memoryTx) LockProduct(ctx context.Context, storeID, productID uuid.UUID) (Product, Store, error) {
	p, ok := tx.repo.products[productID]
	if !ok || p.StoreID != storeID {
		return Product{}, Store{}, ErrProductNotFound
	}
	return p, tx.repo.stores[storeID], nil
}

func (tx *memoryTx) SetStock(ctx context.Context, productID uuid.UUID, qty int64) error {
	p := tx.repo.products[productID]
	p.StockQty = qty
	tx.repo.products[productID] = p
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m, nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, storeID uuid.UUID, key, module string) error {
	scoped := module + ":" + storeID.String() + ":" + key
	if m.keys[scoped] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[scoped] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, storeID uuid.UUID, key, module string) error {
	delete(m.keys, module+":"+storeID.String()+":"+key)
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestPostAdjustmentUpdatesStockAndCard(t *testing.T) {
	repo := newMemoryRepo()
	store := Store{ID: uuid.New(), Plan: PlanStandard}
	product := repo.addProduct(store, 10, nil)
	audit := &recordingAudit{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()

	m, err := svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: 5, Note: "restock"})
	require.NoError(t, err)
	require.Equal(t, int64(15), m.BalanceAfter)
	require.Equal(t, ReasonAdjustment, m.Reason)

	m, err = svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: -3, Note: "breakage"})
	require.NoError(t, err)
	require.Equal(t, int64(12), m.BalanceAfter)
	require.Equal(t, int64(12), repo.products[product.ID].StockQty)

	card, err := svc.StockCard(ctx, StockCardFilter{StoreID: store.ID, ProductID: product.ID})
	require.NoError(t, err)
	require.Len(t, card, 2)
	require.Len(t, audit.logs, 2)
	require.Equal(t, "inventory:adjust", audit.logs[0].Action)
}

func TestNegativeStockGuard(t *testing.T) {
	repo := newMemoryRepo()
	store := Store{ID: uuid.New()}
	product := repo.addProduct(store, 1, nil)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: -2})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Equal(t, int64(1), repo.products[product.ID].StockQty)
	require.Empty(t, repo.movements)
}

func TestNegativeStockAllowedByStore(t *testing.T) {
	repo := newMemoryRepo()
	store := Store{ID: uuid.New(), AllowNegativeStock: true}
	product := repo.addProduct(store, 1, nil)
	svc := NewService(repo, nil, nil)

	m, err := svc.PostAdjustment(context.Background(), AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: -3})
	require.NoError(t, err)
	require.Equal(t, int64(-2), m.BalanceAfter)
}

func TestAdjustmentCodeIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	store := Store{ID: uuid.New()}
	product := repo.addProduct(store, 1, nil)
	idem := &memoryIdempotency{keys: map[string]bool{}}
	svc := NewService(repo, nil, idem)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: 4, Code: "GRN-7"})
	require.NoError(t, err)
	_, err = svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: 4, Code: "GRN-7"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, int64(5), repo.products[product.ID].StockQty)

	// A failed adjustment releases its key so the corrected request can reuse it.
	_, err = svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: -50, Code: "FIX-1"})
	require.ErrorIs(t, err, ErrNegativeStock)
	_, err = svc.PostAdjustment(ctx, AdjustmentInput{StoreID: store.ID, ProductID: product.ID, Delta: -5, Code: "FIX-1"})
	require.NoError(t, err)
}

func TestPostAdjustmentValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, AdjustmentInput{StoreID: uuid.New(), ProductID: uuid.New()})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.PostAdjustment(ctx, AdjustmentInput{StoreID: uuid.New(), ProductID: uuid.New(), Delta: 1})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestLowStockScopesByStore(t *testing.T) {
	repo := newMemoryRepo()
	minStock := int64(3)
	storeA := Store{ID: uuid.New()}
	storeB := Store{ID: uuid.New()}
	low := repo.addProduct(storeA, 2, &minStock)
	repo.addProduct(storeA, 9, &minStock)
	repo.addProduct(storeB, 0, &minStock)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	products, err := svc.LowStock(ctx, storeA.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, low.ID, products[0].ID)

	all, err := svc.LowStock(ctx, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestShortageErrorMatchesSentinel(t *testing.T) {
	err := error(&ShortageError{ProductID: uuid.New(), Requested: 3, Available: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Contains(t, err.Error(), "requested 3, available 1")
}
