package suppliers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/petcare/internal/platform/httpx"
	"github.com/odyssey-erp/petcare/internal/shared"
)

// Handler exposes the supplier registry over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/catalog", h.Catalog)
	r.Put("/{id}/catalog/{productID}", h.UpsertCatalogItem)
}

type listResponse struct {
	Items  []Supplier `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filters := ListFilters{
		Search:  q.Get("search"),
		Status:  Status(q.Get("status")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
		Window:  shared.NewWindow(limit, offset),
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list suppliers failed", 0, err)
		return
	}
	if items == nil {
		items = []Supplier{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: total, Limit: filters.Window.Limit, Offset: filters.Window.Offset})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sup, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get supplier failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create supplier failed", 0, err)
		return
	}
	h.logger.Info("supplier created", slog.Int64("supplier_id", created.ID))
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update supplier failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete supplier failed", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Catalog(r.Context(), id)
	if err != nil {
		h.fail(w, "supplier catalog failed", id, err)
		return
	}
	if items == nil {
		items = []CatalogItem{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "derived": !h.service.CatalogEnabled()})
}

func (h *Handler) UpsertCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CatalogInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpsertCatalogItem(r.Context(), id, productID, in)
	if err != nil {
		h.fail(w, "upsert catalog item failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, id int64, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Int64("supplier_id", id), slog.Any("error", err))
	} else {
		h.logger.Warn(msg, slog.Int64("supplier_id", id), slog.String("reason", err.Error()))
	}
	httpx.RespondError(w, err)
}
