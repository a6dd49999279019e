package reports

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// maxDailyDays bounds daily reports to a quarter.
const maxDailyDays = 93

// Handler wires report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/period", h.handlePeriod)
	r.Get("/daily", h.handleDaily)
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) (shared.Window, bool) {
	q := r.URL.Query()
	window, err := shared.ParseWindow(q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "INVALID_WINDOW", Detail: err.Error()})
		return shared.Window{}, false
	}
	return window, true
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Period(r.Context(), storeID, window)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	if window.To.Sub(window.From).Hours() > maxDailyDays*24 {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "WINDOW_TOO_LARGE", Detail: "daily reports cover at most 93 days"})
		return
	}
	days, err := h.service.Daily(r.Context(), storeID, window)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": days})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, inventory.ErrStoreNotFound) {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusNotFound, Code: "STORE_NOT_FOUND", Detail: err.Error()})
		return
	}
	h.logger.Error("report request failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
