package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/adjustments", h.handleAdjustment)
	r.Get("/products/{id}/movements", h.handleStockCard)
	r.Get("/low-stock", h.handleLowStock)
}

type adjustmentRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Delta     int64  `json:"delta" validate:"required"`
	Code      string `json:"code" validate:"max=64"`
	Note      string `json:"note" validate:"max=255"`
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "MALFORMED_BODY", Detail: err.Error()})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		StoreID:   storeID,
		ProductID: uuid.MustParse(req.ProductID),
		Delta:     req.Delta,
		Code:      req.Code,
		Note:      req.Note,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	productID, ok := httpx.PathUUID(w, chi.URLParam(r, "id"), "product id")
	if !ok {
		return
	}
	filter := StockCardFilter{StoreID: storeID, ProductID: productID}
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		window, err := shared.ParseWindow(q.Get("from"), q.Get("to"))
		if err != nil {
			httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "INVALID_WINDOW", Detail: err.Error()})
			return
		}
		filter.From, filter.To = window.From, window.To
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	products, err := h.service.LowStock(r.Context(), storeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": products})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusNotFound, Code: "PRODUCT_NOT_FOUND", Detail: err.Error()})
	case errors.Is(err, ErrNegativeStock):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "NEGATIVE_STOCK", Detail: err.Error()})
	case errors.Is(err, ErrInvalidQuantity):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusUnprocessableEntity, Code: "INVALID_QUANTITY", Detail: err.Error()})
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "IDEMPOTENCY_CONFLICT", Detail: err.Error()})
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
