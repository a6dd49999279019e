package cashsession

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler exposes cash session endpoints.
type Handler struct {
	logger    *slog.Logger
	manager   *Manager
	validator *validator.Validate
}

// NewHandler constructs cash session handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{logger: logger, manager: manager, validator: validator.New()}
}

// MountRoutes registers cash session routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleOpen)
	r.Get("/current", h.handleCurrent)
	r.Post("/{id}/close", h.handleClose)
}

type openRequest struct {
	OpeningAmountCents *int64 `json:"opening_amount_cents" validate:"required,min=0"`
}

type closeRequest struct {
	CountedAmountCents *int64 `json:"counted_amount_cents" validate:"omitempty,min=0"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "MALFORMED_BODY", Detail: err.Error()})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	session, err := h.manager.Open(r.Context(), storeID, *req.OpeningAmountCents, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	storeID, ok := httpx.RequireStore(w, r)
	if !ok {
		return
	}
	session, err := h.manager.Current(r.Context(), storeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if _, ok := httpx.RequireStore(w, r); !ok {
		return
	}
	sessionID, ok := httpx.PathUUID(w, chi.URLParam(r, "id"), "session id")
	if !ok {
		return
	}
	var req closeRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Code: "MALFORMED_BODY", Detail: err.Error()})
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.manager.Close(r.Context(), sessionID, req.CountedAmountCents, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionAlreadyOpen):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "CASH_SESSION_ALREADY_OPEN", Detail: err.Error()})
	case errors.Is(err, ErrNoOpenSession):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "NO_OPEN_CASH_SESSION", Detail: err.Error()})
	case errors.Is(err, ErrSessionBusy):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusConflict, Code: "CASH_SESSION_BUSY", Detail: err.Error()})
	case errors.Is(err, ErrInvalidAmount):
		httpx.WriteProblem(w, httpx.ProblemDetail{Status: http.StatusUnprocessableEntity, Code: "INVALID_AMOUNT", Detail: err.Error()})
	default:
		h.logger.Error("cash session request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
