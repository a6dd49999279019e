package checkout

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/planlimit"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// IdempotencyHeader carries the optional client request key.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for checkout and sales.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs checkout handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers checkout routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/checkout", h.handleCheckout)
	r.Post("/cart/quote", h.handleQuote)
	r.Get("/sales", h.handleListSales)
	r.Get("/sales/{id}", h.handleGetSale)
}

type checkoutItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int64  `json:"quantity" validate:"required,min=1,max=1000000"`
}

type checkoutRequest struct {
	Items         []checkoutItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string         `json:"payment_method" validate:"required,oneof=cash card instant_transfer"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "MALFORMED_BODY", Detail: err.Error()})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Checkout(r.Context(), Request{
		StoreID:        storeID,
		Items:          toCartItems(req.Items),
		PaymentMethod:  PaymentMethod(req.PaymentMethod),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
		ActorID:        shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

type quoteRequest struct {
	Items []checkoutItem `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "MALFORMED_BODY", Detail: err.Error()})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	quote, err := h.service.Quote(r.Context(), storeID, toCartItems(req.Items))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func toCartItems(in []checkoutItem) []cart.Item {
	items := make([]cart.Item, 0, len(in))
	for _, it := range in {
		items = append(items, cart.Item{ProductID: uuid.MustParse(it.ProductID), Quantity: it.Quantity})
	}
	return items
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := SaleFilter{StoreID: storeID, PaymentMethod: PaymentMethod(q.Get("payment_method"))}
	filter.Page, filter.PerPage = shared.PageRequest(q.Get("page"), q.Get("per_page"))
	if q.Get("from") != "" || q.Get("to") != "" {
		window, err := shared.ParseWindow(q.Get("from"), q.Get("to"))
		if err != nil {
			httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "INVALID_WINDOW", Detail: err.Error()})
			return
		}
		filter.From, filter.To = window.From, window.To
	}
	sales, page, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sales, "pagination": page})
}

func (h *Handler) handleGetSale(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	saleID, ok := httpx.PathUUID(w, chi.URLParam(r, "id"), "sale id")
	if !ok {
		return
	}
	sale, err := h.service.GetSale(r.Context(), storeID, saleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var (
		aborted  *TransactionAbortedError
		oos      *cart.OutOfStockError
		shortage *inventory.ShortageError
		limit    *planlimit.LimitError
		inactive *cart.InactiveProductError
		unknown  *cart.UnknownProductError
		persist  *planlimit.PersistenceError
	)
	switch {
	case errors.As(err, &aborted):
		h.logger.Error("checkout aborted", slog.String("sale_id", aborted.SaleID.String()), slog.Any("error", err))
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Status: http.StatusInternalServerError,
			Title:  "Transaction Aborted",
			Code:   "TRANSACTION_ABORTED",
			Detail: "checkout failed after partial writes; verify inventory before retrying",
			Meta: map[string]any{
				"sale_id":     aborted.SaleID.String(),
				"failed_step": aborted.Step,
				"compensated": aborted.Compensated,
				"decremented": aborted.Decremented,
				"reconcile":   true,
			},
		})
	case errors.As(err, &oos):
		httpx.WriteProblem(w, stockProblem(oos.ProductID, oos.Requested, oos.Available))
	case errors.As(err, &shortage):
		httpx.WriteProblem(w, stockProblem(shortage.ProductID, shortage.Requested, shortage.Available))
	case errors.As(err, &limit):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Status: http.StatusPaymentRequired,
			Title:  "Plan Limit Reached",
			Code:   string(limit.Kind),
			Detail: limit.Hint,
			Meta:   map[string]any{"hint": limit.Hint},
		})
	case errors.As(err, &inactive):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusUnprocessableEntity, Code: "INACTIVE_PRODUCT", Detail: err.Error(), Meta: map[string]any{"product_id": inactive.ProductID.String()}})
	case errors.As(err, &unknown):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusUnprocessableEntity, Code: "UNKNOWN_PRODUCT", Detail: err.Error(), Meta: map[string]any{"product_id": unknown.ProductID.String()}})
	case errors.Is(err, ErrEmptyCart), errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, ErrInvalidPaymentMethod):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusUnprocessableEntity, Code: "INVALID_CART", Detail: err.Error()})
	case errors.Is(err, ErrInsufficientStock):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "INSUFFICIENT_STOCK", Detail: err.Error()})
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "IDEMPOTENCY_CONFLICT", Detail: err.Error()})
	case errors.Is(err, ErrSaleNotFound):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusNotFound, Code: "SALE_NOT_FOUND", Detail: err.Error()})
	case errors.Is(err, inventory.ErrStoreNotFound):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusNotFound, Code: "STORE_NOT_FOUND", Detail: err.Error()})
	case errors.As(err, &persist):
		h.logger.Error("checkout persistence failure", slog.Any("error", err))
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusServiceUnavailable, Code: "PERSISTENCE_ERROR", Detail: "the data store rejected the request"})
	default:
		h.logger.Error("checkout request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func stockProblem(productID uuid.UUID, requested, available int64) httpx.ProblemDetail {
	return httpx.ProblemDetail{
		Status: http.StatusConflict,
		Title:  "Insufficient Stock",
		Code:   "INSUFFICIENT_STOCK",
		Detail: "requested quantity exceeds available stock",
		Meta: map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
			"available":  available,
		},
	}
}
