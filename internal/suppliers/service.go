package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/petcare/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached reports that embed supplier data.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Config groups feature switches read at startup.
type Config struct {
	CatalogEnabled bool
}

// Service implements the supplier registry.
type Service struct {
	repo     Repository
	audit    AuditPort
	cache    Invalidator
	validate *validator.Validate
	cfg      Config
}

// NewService constructs the registry. audit and cache may be nil.
func NewService(repo Repository, audit AuditPort, cache Invalidator, cfg Config) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, validate: shared.NewValidator(), cfg: cfg}
}

// CatalogEnabled reports whether the supplier_products table is in use.
func (s *Service) CatalogEnabled() bool {
	return s.cfg.CatalogEnabled
}

// List returns a page of suppliers and the total match count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	if filters.Status != "" && filters.Status != StatusActive && filters.Status != StatusInactive {
		return nil, 0, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filters.Status)
	}
	filters.Window = shared.NewWindow(filters.Window.Limit, filters.Window.Offset)
	return s.repo.List(ctx, filters)
}

// Get returns a supplier by id.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create registers a supplier with a unique tax document.
func (s *Service) Create(ctx context.Context, in Input) (Supplier, error) {
	sup, err := s.normalise(in)
	if err != nil {
		return Supplier{}, err
	}
	if err := s.ensureTaxDocumentFree(ctx, sup.TaxDocument, 0); err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.Create(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, "SUPPLIER_CREATE", created.ID, map[string]any{"tax_document": created.TaxDocument})
	return created, nil
}

// Update replaces the writable fields of a supplier.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier id", shared.ErrValidation)
	}
	sup, err := s.normalise(in)
	if err != nil {
		return Supplier{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Supplier{}, err
	}
	if err := s.ensureTaxDocumentFree(ctx, sup.TaxDocument, id); err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	updated, err := s.repo.Update(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, "SUPPLIER_UPDATE", id, map[string]any{"status": string(updated.Status)})
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a supplier that no purchase order references. A blocked
// delete returns *shared.DependentsError listing the referencing orders.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid supplier id", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockSupplier(ctx, id); err != nil {
			return err
		}
		deps, err := tx.ListDependents(ctx, id)
		if err != nil {
			return err
		}
		if len(deps) > 0 {
			return &shared.DependentsError{Resource: "supplier", ResourceID: id, Dependents: deps}
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "SUPPLIER_DELETE", id, nil)
	return nil
}

// Catalog lists what a supplier provides. Without the catalog table the list
// is derived from past purchase lines.
func (s *Service) Catalog(ctx context.Context, supplierID int64) ([]CatalogItem, error) {
	if _, err := s.Get(ctx, supplierID); err != nil {
		return nil, err
	}
	if s.cfg.CatalogEnabled {
		return s.repo.Catalog(ctx, supplierID)
	}
	return s.repo.DerivedCatalog(ctx, supplierID)
}

// UpsertCatalogItem records the supplier's code and last cost for a product.
func (s *Service) UpsertCatalogItem(ctx context.Context, supplierID, productID int64, in CatalogInput) (CatalogItem, error) {
	if !s.cfg.CatalogEnabled {
		return CatalogItem{}, ErrCatalogDisabled
	}
	if productID <= 0 {
		return CatalogItem{}, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	if err := s.validate.Struct(in); err != nil {
		return CatalogItem{}, shared.ValidationProblem(err)
	}
	if _, err := s.Get(ctx, supplierID); err != nil {
		return CatalogItem{}, err
	}
	item, err := s.repo.UpsertCatalogItem(ctx, CatalogItem{
		SupplierID:  supplierID,
		ProductID:   productID,
		SupplierSKU: strings.TrimSpace(in.SupplierSKU),
		LastCost:    in.LastCost,
	})
	if err != nil {
		return CatalogItem{}, err
	}
	s.record(ctx, "SUPPLIER_CATALOG_UPSERT", supplierID, map[string]any{"product_id": productID, "last_cost": in.LastCost.String()})
	return item, nil
}

func (s *Service) normalise(in Input) (Supplier, error) {
	in.LegalName = strings.TrimSpace(in.LegalName)
	in.TaxDocument = strings.TrimSpace(in.TaxDocument)
	in.Email = strings.TrimSpace(in.Email)
	if in.Status == "" {
		in.Status = StatusActive
	}
	if err := s.validate.Struct(in); err != nil {
		return Supplier{}, shared.ValidationProblem(err)
	}
	return Supplier{
		LegalName:   in.LegalName,
		TaxDocument: in.TaxDocument,
		Email:       in.Email,
		Phone:       strings.TrimSpace(in.Phone),
		Address:     strings.TrimSpace(in.Address),
		Status:      in.Status,
	}, nil
}

// ensureTaxDocumentFree rejects a tax document held by any supplier other than selfID.
func (s *Service) ensureTaxDocumentFree(ctx context.Context, taxDocument string, selfID int64) error {
	existing, err := s.repo.FindByTaxDocument(ctx, taxDocument)
	switch {
	case errors.Is(err, ErrSupplierNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: held by supplier %d", ErrDuplicateTaxDocument, existing.ID)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "supplier",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}
