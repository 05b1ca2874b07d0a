package purchasing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *fixture) {
	t.Helper()
	f := newFixture(t, Config{})
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r := chi.NewRouter()
	r.Route("/api/purchase-orders", h.MountRoutes)
	r.Route("/api/reports", h.MountReportRoutes)
	return r, f
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"supplier_id":1,"date":"2024-03-10","lines":[{"product_id":10,"quantity":"5","unit_cost":"1000"}]}`

func TestHandlerCreateAndCancel(t *testing.T) {
	r, f := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/purchase-orders", createBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var po PurchaseOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &po))
	requireDec(t, "5950", po.TotalWithTax)
	requireDec(t, "15", f.repo.stock(10))

	rec = do(r, http.MethodPost, "/api/purchase-orders", createBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(r, http.MethodPost, "/api/purchase-orders/1/status", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireDec(t, "10", f.repo.stock(10))

	rec = do(r, http.MethodPost, "/api/purchase-orders/1/status", `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

	rec = do(r, http.MethodGet, "/api/purchase-orders?status=CANCELLED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(r, http.MethodDelete, "/api/purchase-orders/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(r, http.MethodGet, "/api/purchase-orders/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerStatusMapping(t *testing.T) {
	r, f := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/purchase-orders", `{"supplier_id":1,"date":"2024-03-10","lines":[{"product_id":404,"quantity":"1","unit_cost":"1"}]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodPost, "/api/purchase-orders", `{"supplier_id":1,"date":"10/03/2024","lines":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/purchase-orders", `{"supplier_id":1,"date":"2024-03-10","lines":[],"extra":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/api/purchase-orders?from=2024-02-01&to=2024-01-01", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.repo.commitErr = errors.New("disk full")
	rec = do(r, http.MethodPost, "/api/purchase-orders", createBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "disk full")
}

func TestHandlerUpdateAndSummary(t *testing.T) {
	r, f := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/purchase-orders", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodPut, "/api/purchase-orders/1", `{"supplier_id":1,"date":"2024-03-11","lines":[{"product_id":10,"quantity":"1","unit_cost":"1000"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireDec(t, "11", f.repo.stock(10))

	rec = do(r, http.MethodGet, "/api/reports/supplier-purchases?from=2024-03-01&to=2024-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []SupplierSummary `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	requireDec(t, "1190", body.Items[0].TotalWithTax)
}
