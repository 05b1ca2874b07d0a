package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/petcare/internal/shared"
)

// Product carries the ledger fields the purchasing core reads.
type Product struct {
	ID               int64           `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Stock            decimal.Decimal `json:"stock"`
	Cost             decimal.Decimal `json:"cost"`
	MarginPercent    decimal.Decimal `json:"margin_percent"`
	TaxApplicable    bool            `json:"tax_applicable"`
	TaxPercent       decimal.Decimal `json:"tax_percent"`
	UnitOfMeasure    string          `json:"unit_of_measure"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// StockDelta is a signed stock adjustment for one product.
type StockDelta struct {
	ProductID int64
	Amount    decimal.Decimal
}

// Negate returns the delta that exactly undoes d.
func (d StockDelta) Negate() StockDelta {
	return StockDelta{ProductID: d.ProductID, Amount: d.Amount.Neg()}
}

// Reason explains why a movement happened.
type Reason string

const (
	// ReasonPurchaseCreate is applied when an order is recorded.
	ReasonPurchaseCreate Reason = "PURCHASE_CREATE"
	// ReasonPurchaseUpdateReversal undoes the previous lines of an edited order.
	ReasonPurchaseUpdateReversal Reason = "PURCHASE_UPDATE_REVERSAL"
	// ReasonPurchaseUpdate applies the replacement lines of an edited order.
	ReasonPurchaseUpdate Reason = "PURCHASE_UPDATE"
	// ReasonPurchaseCancel undoes a cancelled order.
	ReasonPurchaseCancel Reason = "PURCHASE_CANCEL"
	// ReasonPurchaseDelete undoes an effective order that is being removed.
	ReasonPurchaseDelete Reason = "PURCHASE_DELETE"
)

// RefModulePurchase tags movements originating from purchase orders.
const RefModulePurchase = "PURCHASE"

// Reference ties a movement to the document that caused it.
type Reference struct {
	Module  string
	ID      int64
	Reason  Reason
	TraceID uuid.UUID
}

// Movement is one journal row of the stock card.
type Movement struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	Delta        decimal.Decimal `json:"delta"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RefModule    string          `json:"ref_module"`
	RefID        int64           `json:"ref_id"`
	Reason       Reason          `json:"reason"`
	TraceID      uuid.UUID       `json:"trace_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MovementFilter narrows the stock card listing.
type MovementFilter struct {
	ProductID int64
	Window    shared.Window
}

var (
	// ErrProductNotFound indicates the ledger has no such product.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
	// ErrNegativeStock is returned when a delta would drive stock below zero.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrConflict)
	// ErrZeroDelta indicates a delta with no effect.
	ErrZeroDelta = errors.New("inventory: stock delta must be non zero")
)
