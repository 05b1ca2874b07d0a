package inventory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHandlerProductRoutes(t *testing.T) {
	store := newMemoryStore(product(1, "2"))
	require.NoError(t, NewLedger(store, LedgerConfig{}).ApplyAll(context.Background(),
		[]StockDelta{{ProductID: 1, Amount: qty("3")}}, Reference{Module: RefModulePurchase, ID: 9, Reason: ReasonPurchaseCreate}))

	r := chi.NewRouter()
	r.Route("/api/products", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(store)).MountRoutes)

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/api/products/1", http.StatusOK, `"stock":"5"`},
		{"/api/products/1/movements", http.StatusOK, `"reason":"PURCHASE_CREATE"`},
		{"/api/products/2", http.StatusNotFound, ""},
		{"/api/products/abc/movements", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, tc.status, rr.Code, tc.path)
		if tc.body != "" {
			require.Contains(t, rr.Body.String(), tc.body, tc.path)
		}
	}
}
