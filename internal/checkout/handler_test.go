package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func newHandlerRouter(store *memoryStore) http.Handler {
	coord := newTestCoordinator(store, store, &memoryQueue{}, newMemoryIdempotency())
	h := NewHandler(discardLogger(), NewService(coord, store))
	r := chi.NewRouter()
	r.Route("/api/v1", h.MountRoutes)
	return r
}

func postCheckout(t *testing.T, router http.Handler, storeID uuid.UUID, body string) (*httptest.ResponseRecorder, httpx.ProblemDetail) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(shared.ContextWithStore(context.Background(), storeID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var problem httpx.ProblemDetail
	if rec.Code >= 400 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	}
	return rec, problem
}

func TestHandlerCheckoutCreatesSale(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanStandard, false)
	p := store.addProduct(s.ID, 1250, 3)
	router := newHandlerRouter(store)

	rec, _ := postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":2}],"payment_method":"cash"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var sale Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	assert.Equal(t, int64(2500), sale.TotalCents)
	assert.Equal(t, PaymentCash, sale.PaymentMethod)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+sale.ID.String(), nil)
	get = get.WithContext(shared.ContextWithStore(context.Background(), s.ID))
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, get)
	require.Equal(t, http.StatusOK, getRec.Code)

	list := httptest.NewRequest(http.MethodGet, "/api/v1/sales?page=1", nil)
	list = list.WithContext(shared.ContextWithStore(context.Background(), s.ID))
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, list)
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), `"total":1`)
}

func TestHandlerCheckoutInsufficientStock(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanStandard, false)
	p := store.addProduct(s.ID, 1000, 1)
	router := newHandlerRouter(store)

	rec, problem := postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":2}],"payment_method":"card"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", problem.Code)
	assert.Equal(t, p.ID.String(), problem.Meta["product_id"])
	assert.EqualValues(t, 2, problem.Meta["requested"])
	assert.EqualValues(t, 1, problem.Meta["available"])
}

func TestHandlerCheckoutAborted(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanStandard, false)
	p := store.addProduct(s.ID, 1000, 5)
	store.failDecrementAt = 1
	store.failDecrement = errors.New("boom")
	router := newHandlerRouter(store)

	rec, problem := postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":1}],"payment_method":"cash"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "TRANSACTION_ABORTED", problem.Code)
	assert.Equal(t, true, problem.Meta["reconcile"])
	assert.Equal(t, true, problem.Meta["compensated"])
	assert.NotEmpty(t, problem.Meta["sale_id"])
}

func TestHandlerCheckoutPlanLimit(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanTrial, false)
	p := store.addProduct(s.ID, 1000, 5)
	store.failInsertSale = &pgconn.PgError{Code: "PL001", Message: "TRIAL_SALES_LIMIT"}
	router := newHandlerRouter(store)

	rec, problem := postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":1}],"payment_method":"instant_transfer"}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "TRIAL_SALES_LIMIT", problem.Code)
	assert.NotEmpty(t, problem.Meta["hint"])
}

func TestHandlerCheckoutValidation(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanStandard, false)
	router := newHandlerRouter(store)

	rec, problem := postCheckout(t, router, s.ID, `{"items":[],"payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", problem.Code)

	rec, problem = postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+uuid.NewString()+`","quantity":1}],"payment_method":"voucher"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", problem.Code)
}

func TestHandlerCheckoutRejectsQuantityAboveCap(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanStandard, true)
	p := store.addProduct(s.ID, 4, 0)
	router := newHandlerRouter(store)

	rec, problem := postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":4611686018427387905}],"payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", problem.Code)

	rec, problem = postCheckout(t, router, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":1000000},{"product_id":"`+p.ID.String()+`","quantity":1}],"payment_method":"cash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_CART", problem.Code)
	assert.Zero(t, store.saleCount())
}

func TestHandlerGatewayQuantityRejectionIsInvalidCart(t *testing.T) {
	mem := newMemoryStore()
	s := mem.addStore(inventory.PlanStandard, false)
	p := mem.addProduct(s.ID, 1000, 5)
	mem.failDecrementAt = 1
	mem.failDecrement = inventory.ErrInvalidQuantity
	store := &txStore{memoryStore: mem}
	coord := NewCoordinator(Deps{Repo: store, Stock: store, Logger: discardLogger()}, Config{Atomic: true})
	r := chi.NewRouter()
	r.Route("/api/v1", NewHandler(discardLogger(), NewService(coord, mem)).MountRoutes)

	rec, problem := postCheckout(t, r, s.ID, `{"items":[{"product_id":"`+p.ID.String()+`","quantity":1}],"payment_method":"cash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_CART", problem.Code)
	assert.Zero(t, mem.saleCount())
}

func TestHandlerQuote(t *testing.T) {
	store := newMemoryStore()
	s := store.addStore(inventory.PlanStandard, false)
	p := store.addProduct(s.ID, 1250, 3)
	router := newHandlerRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", strings.NewReader(`{"items":[{"product_id":"`+p.ID.String()+`","quantity":2}]}`))
	req = req.WithContext(shared.ContextWithStore(context.Background(), s.ID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, int64(2500), quote.TotalCents)
	assert.Zero(t, store.saleCount())
}
