package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/petcare/internal/platform/httpx"
	"github.com/odyssey-erp/petcare/internal/shared"
)

// Handler wires HTTP endpoints for the product ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.getProduct)
	r.Get("/{id}/movements", h.listMovements)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "get product failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	movements, err := h.service.Movements(r.Context(), id, shared.NewWindow(limit, offset))
	if err != nil {
		h.fail(w, "list movements failed", id, err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": movements})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, id int64, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Int64("product_id", id), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
