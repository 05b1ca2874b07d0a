package suppliers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/petcare/internal/shared"
)

// Status marks whether a supplier can receive new purchase orders.
type Status string

const (
	// StatusActive suppliers accept new orders.
	StatusActive Status = "ACTIVE"
	// StatusInactive suppliers are kept for history only.
	StatusInactive Status = "INACTIVE"
)

// Supplier represents a supplier entity.
type Supplier struct {
	ID          int64     `json:"id"`
	LegalName   string    `json:"legal_name"`
	TaxDocument string    `json:"tax_document"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input is the writable part of a supplier.
type Input struct {
	LegalName   string `json:"legal_name" validate:"required,max=200"`
	TaxDocument string `json:"tax_document" validate:"required,max=40"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=40"`
	Address     string `json:"address" validate:"omitempty,max=500"`
	Status      Status `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// ListFilters narrows the supplier listing.
type ListFilters struct {
	Search  string
	Status  Status
	SortBy  string
	SortDir string
	Window  shared.Window
}

// CatalogItem is a product a supplier provides.
type CatalogItem struct {
	SupplierID  int64           `json:"supplier_id"`
	ProductID   int64           `json:"product_id"`
	ProductSKU  string          `json:"product_sku"`
	ProductName string          `json:"product_name"`
	SupplierSKU string          `json:"supplier_sku"`
	LastCost    decimal.Decimal `json:"last_cost"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CatalogInput updates one supplier catalog entry.
type CatalogInput struct {
	SupplierSKU string          `json:"supplier_sku" validate:"omitempty,max=60"`
	LastCost    decimal.Decimal `json:"last_cost" validate:"gte=0"`
}

var (
	// ErrSupplierNotFound indicates the supplier does not exist.
	ErrSupplierNotFound = fmt.Errorf("suppliers: supplier %w", shared.ErrNotFound)
	// ErrDuplicateTaxDocument is returned when another supplier holds the tax document.
	ErrDuplicateTaxDocument = fmt.Errorf("suppliers: tax document already registered: %w", shared.ErrConflict)
	// ErrCatalogDisabled is returned by catalog writes while the feature is off.
	ErrCatalogDisabled = fmt.Errorf("suppliers: supplier catalog is not enabled: %w", shared.ErrValidation)
	// ErrUnknownProduct is returned when a catalog entry names a missing product.
	ErrUnknownProduct = fmt.Errorf("suppliers: product %w", shared.ErrNotFound)
)
