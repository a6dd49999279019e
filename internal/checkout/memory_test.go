package checkout

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// memoryStore is a non-transactional store; every call is its own unit of
// atomicity, like a remote data API.
type memoryStore struct {
	mu       sync.Mutex
	stores   map[uuid.UUID]inventory.Store
	products map[uuid.UUID]inventory.Product
	sales    map[uuid.UUID]Sale
	items    map[uuid.UUID][]SaleItem

	failInsertSale  error
	failItemAt      int
	failDecrementAt int
	failDecrement   error
	failDelete      error
	onDecrement     func()
	decrementCalls  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		stores:   make(map[uuid.UUID]inventory.Store),
		products: make(map[uuid.UUID]inventory.Product),
		sales:    make(map[uuid.UUID]Sale),
		items:    make(map[uuid.UUID][]SaleItem),
	}
}

func (m *memoryStore) addStore(plan inventory.Plan, allowNegative bool) inventory.Store {
	s := inventory.Store{ID: uuid.New(), Name: "Warung Sinar", Plan: plan, AllowNegativeStock: allowNegative, Timezone: "Asia/Jakarta"}
	m.stores[s.ID] = s
	return s
}

func (m *memoryStore) addProduct(storeID uuid.UUID, price, stock int64) inventory.Product {
	p := inventory.Product{ID: uuid.New(), StoreID: storeID, Name: "Item", PriceCents: price, StockQty: stock, Active: true}
	m.products[p.ID] = p
	return p
}

func (m *memoryStore) stock(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockQty
}

func (m *memoryStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *memoryStore) Store(ctx context.Context, storeID uuid.UUID) (inventory.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[storeID]
	if !ok {
		return inventory.Store{}, inventory.ErrStoreNotFound
	}
	return s, nil
}

func (m *memoryStore) ProductsByID(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]inventory.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]inventory.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok && p.StoreID == storeID {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryStore) InsertSale(ctx context.Context, sale Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertSale != nil {
		return m.failInsertSale
	}
	m.sales[sale.ID] = sale
	return nil
}

func (m *memoryStore) InsertSaleItem(ctx context.Context, item SaleItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failItemAt == item.LineNo {
		return errors.New("sale_items: connection reset")
	}
	m.items[item.SaleID] = append(m.items[item.SaleID], item)
	return nil
}

func (m *memoryStore) DeleteSale(ctx context.Context, saleID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.sales, saleID)
	delete(m.items, saleID)
	return nil
}

func (m *memoryStore) DecrementStock(ctx context.Context, productID uuid.UUID, qty int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrementCalls++
	if m.onDecrement != nil {
		m.onDecrement()
	}
	if m.failDecrementAt == m.decrementCalls {
		return m.failDecrement
	}
	p, ok := m.products[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	if p.StockQty < qty && !m.stores[p.StoreID].AllowNegativeStock {
		return &inventory.ShortageError{ProductID: productID, Requested: qty, Available: p.StockQty}
	}
	p.StockQty -= qty
	m.products[productID] = p
	return nil
}

func (m *memoryStore) GetSale(ctx context.Context, storeID, saleID uuid.UUID) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok || s.StoreID != storeID {
		return Sale{}, ErrSaleNotFound
	}
	s.Items = append([]SaleItem(nil), m.items[saleID]...)
	return s, nil
}

func (m *memoryStore) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sale
	for _, s := range m.sales {
		if s.StoreID == filter.StoreID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

// txStore adds all-or-nothing transactions on top of memoryStore.
type txStore struct {
	*memoryStore
}

func (t *txStore) WithTx(ctx context.Context, fn func(context.Context, Repository, StockGateway) error) error {
	t.mu.Lock()
	products := make(map[uuid.UUID]inventory.Product, len(t.products))
	for k, v := range t.products {
		products[k] = v
	}
	sales := make(map[uuid.UUID]Sale, len(t.sales))
	for k, v := range t.sales {
		sales[k] = v
	}
	items := make(map[uuid.UUID][]SaleItem, len(t.items))
	for k, v := range t.items {
		items[k] = v
	}
	t.mu.Unlock()

	if err := fn(ctx, t.memoryStore, t.memoryStore); err != nil {
		t.mu.Lock()
		t.products, t.sales, t.items = products, sales, items
		t.mu.Unlock()
		return err
	}
	return nil
}

type memoryQueue struct {
	mu       sync.Mutex
	failures []PartialFailure
}

func (q *memoryQueue) EnqueueCheckoutReconcile(ctx context.Context, f PartialFailure) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures = append(q.failures, f)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, storeID uuid.UUID, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scoped := module + ":" + storeID.String() + ":" + key
	if m.keys[scoped] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[scoped] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, storeID uuid.UUID, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+storeID.String()+":"+key)
	return nil
}

type recordingEvents struct {
	mu    sync.Mutex
	sales []Sale
}

func (r *recordingEvents) PublishSaleCompleted(ctx context.Context, sale Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales = append(r.sales, sale)
	return nil
}
