package reports

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/checkout"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func newReportRouter(store inventory.Store, sales []checkout.Sale) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(stubSales{sales: sales}, stubCatalog{store: store}))
	r := chi.NewRouter()
	r.Route("/api/v1/reports", h.MountRoutes)
	return r
}

func getReport(router http.Handler, storeID uuid.UUID, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if storeID != uuid.Nil {
		req = req.WithContext(shared.ContextWithStore(context.Background(), storeID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPeriodReport(t *testing.T) {
	store := inventory.Store{ID: uuid.New(), Timezone: "UTC"}
	product := uuid.New()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	router := newReportRouter(store, []checkout.Sale{sale(at, checkout.PaymentCash, item(product, 1, 900))})

	rec := getReport(router, store.ID, "/api/v1/reports/period?from=2024-05-01&to=2024-05-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalCents int64 `json:"total_cents"`
		Count      int   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 900, body.TotalCents)
	assert.Equal(t, 1, body.Count)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	store := inventory.Store{ID: uuid.New()}
	router := newReportRouter(store, nil)

	rec := getReport(router, uuid.Nil, "/api/v1/reports/period?from=2024-05-01&to=2024-05-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "STORE_REQUIRED")

	rec = getReport(router, store.ID, "/api/v1/reports/period?from=2024-05-02&to=2024-05-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_WINDOW")

	rec = getReport(router, store.ID, "/api/v1/reports/daily?from=2024-01-01&to=2024-12-31")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "WINDOW_TOO_LARGE")

	rec = getReport(router, uuid.New(), "/api/v1/reports/daily?from=2024-05-01&to=2024-05-02")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDailyReport(t *testing.T) {
	store := inventory.Store{ID: uuid.New(), Timezone: "UTC"}
	router := newReportRouter(store, nil)

	rec := getReport(router, store.ID, "/api/v1/reports/daily?from=2024-05-01&to=2024-05-03")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []DaySummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, "2024-05-03", body.Data[2].Date)
}
