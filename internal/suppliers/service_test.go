package suppliers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/petcare/internal/shared"
)

type memoryRepo struct {
	suppliers map[int64]Supplier
	orders    map[int64][]shared.Dependent
	catalog   map[int64][]CatalogItem
	derived   map[int64][]CatalogItem
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers: map[int64]Supplier{},
		orders:    map[int64][]shared.Dependent{},
		catalog:   map[int64][]CatalogItem{},
		derived:   map[int64][]CatalogItem{},
	}
}

func (r *memoryRepo) List(_ context.Context, filters ListFilters) ([]Supplier, int, error) {
	var out []Supplier
	for _, s := range r.suppliers {
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(s.LegalName), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, nil
}

func (r *memoryRepo) FindByTaxDocument(_ context.Context, doc string) (Supplier, error) {
	for _, s := range r.suppliers {
		if s.TaxDocument == doc {
			return s, nil
		}
	}
	return Supplier{}, ErrSupplierNotFound
}

func (r *memoryRepo) Create(_ context.Context, s Supplier) (Supplier, error) {
	r.nextID++
	s.ID = r.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	r.suppliers[s.ID] = s
	return s, nil
}

func (r *memoryRepo) Update(_ context.Context, s Supplier) (Supplier, error) {
	if _, ok := r.suppliers[s.ID]; !ok {
		return Supplier{}, ErrSupplierNotFound
	}
	r.suppliers[s.ID] = s
	return s, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) LockSupplier(ctx context.Context, id int64) (Supplier, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) ListDependents(_ context.Context, supplierID int64) ([]shared.Dependent, error) {
	return r.orders[supplierID], nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(r.suppliers, id)
	return nil
}

func (r *memoryRepo) Catalog(_ context.Context, supplierID int64) ([]CatalogItem, error) {
	return r.catalog[supplierID], nil
}

func (r *memoryRepo) DerivedCatalog(_ context.Context, supplierID int64) ([]CatalogItem, error) {
	return r.derived[supplierID], nil
}

func (r *memoryRepo) UpsertCatalogItem(_ context.Context, item CatalogItem) (CatalogItem, error) {
	items := r.catalog[item.SupplierID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i] = item
			return item, nil
		}
	}
	r.catalog[item.SupplierID] = append(items, item)
	return item, nil
}

type countingCache struct{ bumps int }

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
}

func TestCreateRejectsDuplicateTaxDocument(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, Config{})
	ctx := context.Background()

	first, err := svc.Create(ctx, Input{LegalName: "Acme Pet Foods", TaxDocument: " 900123-4 "})
	require.NoError(t, err)
	require.Equal(t, "900123-4", first.TaxDocument)
	require.Equal(t, StatusActive, first.Status)

	_, err = svc.Create(ctx, Input{LegalName: "Other", TaxDocument: "900123-4"})
	require.ErrorIs(t, err, ErrDuplicateTaxDocument)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateKeepsOwnTaxDocument(t *testing.T) {
	cache := &countingCache{}
	svc := NewService(newMemoryRepo(), nil, cache, Config{})
	ctx := context.Background()

	a, err := svc.Create(ctx, Input{LegalName: "A", TaxDocument: "111"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{LegalName: "B", TaxDocument: "222"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, Input{LegalName: "A Renamed", TaxDocument: "111", Status: StatusInactive})
	require.NoError(t, err)
	require.Equal(t, "A Renamed", updated.LegalName)
	require.Equal(t, 1, cache.bumps)

	_, err = svc.Update(ctx, a.ID, Input{LegalName: "A", TaxDocument: "222"})
	require.ErrorIs(t, err, ErrDuplicateTaxDocument)

	_, err = svc.Update(ctx, 99, Input{LegalName: "X", TaxDocument: "333"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, Config{})
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{LegalName: "  ", TaxDocument: "1"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, Input{LegalName: "A", TaxDocument: "1", Email: "not-an-email"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, Input{LegalName: "A", TaxDocument: "1", Status: "PAUSED"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteGuardListsReferencingOrders(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, Config{})
	ctx := context.Background()

	sup, err := svc.Create(ctx, Input{LegalName: "A", TaxDocument: "1"})
	require.NoError(t, err)
	repo.orders[sup.ID] = []shared.Dependent{{Kind: "purchase_order", ID: 7, Label: "PO-7", Status: "CANCELLED"}}

	err = svc.Delete(ctx, sup.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	var deps *shared.DependentsError
	require.ErrorAs(t, err, &deps)
	require.Len(t, deps.Dependents, 1)
	require.Equal(t, int64(7), deps.Dependents[0].ID)
	_, err = svc.Get(ctx, sup.ID)
	require.NoError(t, err)

	delete(repo.orders, sup.ID)
	require.NoError(t, svc.Delete(ctx, sup.ID))
	_, err = svc.Get(ctx, sup.ID)
	require.ErrorIs(t, err, ErrSupplierNotFound)

	require.ErrorIs(t, svc.Delete(ctx, sup.ID), shared.ErrNotFound)
}

func TestCatalogFollowsFeatureFlag(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	off := NewService(repo, nil, nil, Config{})
	sup, err := off.Create(ctx, Input{LegalName: "A", TaxDocument: "1"})
	require.NoError(t, err)
	repo.derived[sup.ID] = []CatalogItem{{SupplierID: sup.ID, ProductID: 3, LastCost: decimal.NewFromInt(900)}}

	items, err := off.Catalog(ctx, sup.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = off.UpsertCatalogItem(ctx, sup.ID, 3, CatalogInput{LastCost: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrCatalogDisabled)

	on := NewService(repo, nil, nil, Config{CatalogEnabled: true})
	items, err = on.Catalog(ctx, sup.ID)
	require.NoError(t, err)
	require.Empty(t, items)
	_, err = on.UpsertCatalogItem(ctx, sup.ID, 3, CatalogInput{SupplierSKU: "AC-3", LastCost: decimal.NewFromInt(950)})
	require.NoError(t, err)
	items, err = on.Catalog(ctx, sup.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "AC-3", items[0].SupplierSKU)

	_, err = on.UpsertCatalogItem(ctx, sup.ID, 3, CatalogInput{LastCost: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = on.Catalog(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteHandlerReturnsDependents(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, Config{})
	sup, err := svc.Create(context.Background(), Input{LegalName: "A", TaxDocument: "1"})
	require.NoError(t, err)
	repo.orders[sup.ID] = []shared.Dependent{{Kind: "purchase_order", ID: 5, Label: "PO-5", Status: "EFFECTIVE"}}

	r := chi.NewRouter()
	NewHandler(discardLogger(), svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/1", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), `"dependents"`)
	require.Contains(t, rec.Body.String(), `"PO-5"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"legal_name":"B","tax_document":"1"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
