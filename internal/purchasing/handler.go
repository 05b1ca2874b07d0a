package purchasing

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/petcare/internal/platform/httpx"
	"github.com/odyssey-erp/petcare/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler exposes the purchase order engine over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/status", h.changeStatus)
}

// MountReportRoutes registers purchasing reports.
func (h *Handler) MountReportRoutes(r chi.Router) {
	r.Get("/supplier-purchases", h.supplierSummary)
}

type orderRequest struct {
	Number     string      `json:"number"`
	SupplierID int64       `json:"supplier_id"`
	Date       string      `json:"date"`
	Note       string      `json:"note"`
	Lines      []LineInput `json:"lines"`
}

func (req orderRequest) toInput() (OrderInput, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return OrderInput{}, err
	}
	return OrderInput{Number: req.Number, SupplierID: req.SupplierID, Date: date, Note: req.Note, Lines: req.Lines}, nil
}

type statusRequest struct {
	Status string `json:"status"`
}

type listResponse struct {
	Items  []PurchaseOrder `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Create(r.Context(), in, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		h.fail(w, "create purchase order failed", 0, err)
		return
	}
	h.logger.Info("purchase order created", slog.Int64("purchase_order_id", po.ID), slog.String("number", po.Number))
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update purchase order failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.ChangeStatus(r.Context(), id, Status(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		h.fail(w, "change purchase order status failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete purchase order failed", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchase order failed", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list purchase orders failed", 0, err)
		return
	}
	if items == nil {
		items = []PurchaseOrder{}
	}
	window := shared.NewWindow(filter.Window.Limit, filter.Window.Offset)
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: total, Limit: window.Limit, Offset: window.Offset})
}

func (h *Handler) supplierSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseOptionalDate("from", q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseOptionalDate("to", q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.SupplierSummary(r.Context(), SummaryFilter{From: from, To: to})
	if err != nil {
		h.fail(w, "supplier purchase summary failed", 0, err)
		return
	}
	if rows == nil {
		rows = []SupplierSummary{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	if v := q.Get("supplier_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return ListFilter{}, fmt.Errorf("%w: invalid supplier_id", shared.ErrValidation)
		}
		filter.SupplierID = id
	}
	var err error
	if filter.From, err = parseOptionalDate("from", q.Get("from")); err != nil {
		return ListFilter{}, err
	}
	if filter.To, err = parseOptionalDate("to", q.Get("to")); err != nil {
		return ListFilter{}, err
	}
	filter.Status = Status(strings.ToUpper(q.Get("status")))
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter.Window = shared.Window{Limit: limit, Offset: offset}
	return filter, nil
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", shared.ErrValidation, field)
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrValidation, field)
	}
	return t, nil
}

func parseOptionalDate(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return parseDate(field, raw)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, id int64, err error) {
	if IsRejected(err) {
		h.logger.Warn(msg, slog.Int64("purchase_order_id", id), slog.String("reason", err.Error()))
	} else {
		h.logger.Error(msg, slog.Int64("purchase_order_id", id), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
