package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/petcare/internal/shared"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	// StatusEffective orders have their stock applied.
	StatusEffective Status = "EFFECTIVE"
	// StatusCancelled orders have had their stock reversed. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s names a known state.
func (s Status) Valid() bool {
	return s == StatusEffective || s == StatusCancelled
}

// PurchaseOrder is a recorded supplier purchase with its lines.
type PurchaseOrder struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SupplierID   int64           `json:"supplier_id"`
	Date         time.Time       `json:"date"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	TotalWithTax decimal.Decimal `json:"total_with_tax"`
	Status       Status          `json:"status"`
	Note         string          `json:"note"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	Lines        []LineItem      `json:"lines,omitempty"`
}

// LineItem is one priced product line of an order.
type LineItem struct {
	ID                 int64           `json:"id"`
	PurchaseOrderID    int64           `json:"purchase_order_id"`
	LineNumber         int             `json:"line_number"`
	ProductID          int64           `json:"product_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	UnitTax            decimal.Decimal `json:"unit_tax"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	SubtotalWithTax    decimal.Decimal `json:"subtotal_with_tax"`
	UnitOfMeasure      string          `json:"unit_of_measure"`
	ConversionFactor   decimal.Decimal `json:"conversion_factor"`
	ConvertedQuantity  decimal.Decimal `json:"converted_quantity"`
	SuggestedSalePrice decimal.Decimal `json:"suggested_sale_price"`
}

// LineInput is a requested line before pricing.
type LineInput struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

// OrderInput carries the fields of create and update.
type OrderInput struct {
	Number     string      `json:"number" validate:"omitempty,max=40"`
	SupplierID int64       `json:"supplier_id" validate:"gt=0"`
	Date       time.Time   `json:"date" validate:"required"`
	Note       string      `json:"note" validate:"omitempty,max=500"`
	Lines      []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// ListFilter narrows order listings. Zero fields do not filter.
type ListFilter struct {
	SupplierID int64
	From       time.Time
	To         time.Time
	Status     Status
	Window     shared.Window
}

// SummaryFilter bounds the supplier purchase summary. Zero dates are open.
type SummaryFilter struct {
	From time.Time
	To   time.Time
}

// SupplierSummary aggregates effective purchases of one supplier.
type SupplierSummary struct {
	SupplierID   int64           `json:"supplier_id"`
	LegalName    string          `json:"legal_name"`
	TaxDocument  string          `json:"tax_document"`
	OrderCount   int64           `json:"order_count"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	TotalWithTax decimal.Decimal `json:"total_with_tax"`
}

var (
	// ErrOrderNotFound indicates the purchase order does not exist.
	ErrOrderNotFound = fmt.Errorf("purchasing: purchase order %w", shared.ErrNotFound)
	// ErrAlreadyCancelled is returned for any write to a cancelled order.
	ErrAlreadyCancelled = fmt.Errorf("purchasing: purchase order is cancelled: %w", shared.ErrInvalidTransition)
	// ErrDuplicateProduct rejects two lines for the same product in one order.
	ErrDuplicateProduct = fmt.Errorf("purchasing: product listed twice: %w", shared.ErrValidation)
	// ErrInactiveSupplier rejects new orders for inactive suppliers.
	ErrInactiveSupplier = fmt.Errorf("purchasing: supplier is inactive: %w", shared.ErrValidation)
	// ErrDuplicateNumber is returned when the order number is taken.
	ErrDuplicateNumber = fmt.Errorf("purchasing: purchase order number already used: %w", shared.ErrConflict)
)
