package purchasing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/petcare/internal/inventory"
	"github.com/odyssey-erp/petcare/internal/pricing"
	"github.com/odyssey-erp/petcare/internal/shared"
)

// ProductReader resolves the ledger fields a line copies.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (inventory.Product, error)
}

// Totals are the header aggregates of a set of lines.
type Totals struct {
	Subtotal     decimal.Decimal
	TaxTotal     decimal.Decimal
	TotalWithTax decimal.Decimal
}

// BuildLine validates one requested line against the ledger and prices it.
// pending holds the lines already built for the same order. It has no side
// effects; the returned delta is applied by the caller.
func BuildLine(ctx context.Context, ledger ProductReader, in LineInput, lineNumber int, pending []LineItem) (LineItem, inventory.StockDelta, error) {
	if in.ProductID <= 0 {
		return LineItem{}, inventory.StockDelta{}, fmt.Errorf("line %d: %w: product id must be positive", lineNumber, shared.ErrValidation)
	}
	if !in.Quantity.IsPositive() {
		return LineItem{}, inventory.StockDelta{}, fmt.Errorf("line %d: %w: quantity must be positive", lineNumber, shared.ErrValidation)
	}
	if in.UnitCost.IsNegative() {
		return LineItem{}, inventory.StockDelta{}, fmt.Errorf("line %d: %w: unit cost must not be negative", lineNumber, shared.ErrValidation)
	}
	for _, p := range pending {
		if p.ProductID == in.ProductID {
			return LineItem{}, inventory.StockDelta{}, fmt.Errorf("line %d: %w: product %d already on line %d", lineNumber, ErrDuplicateProduct, in.ProductID, p.LineNumber)
		}
	}

	product, err := ledger.GetProduct(ctx, in.ProductID)
	if err != nil {
		return LineItem{}, inventory.StockDelta{}, fmt.Errorf("line %d: %w", lineNumber, err)
	}

	priced := pricing.Calculate(pricing.Input{
		UnitCost:      in.UnitCost,
		Quantity:      in.Quantity,
		TaxApplicable: product.TaxApplicable,
		TaxPercent:    product.TaxPercent,
		MarginPercent: product.MarginPercent,
	})
	line := LineItem{
		LineNumber:         lineNumber,
		ProductID:          product.ID,
		Quantity:           in.Quantity,
		UnitCost:           in.UnitCost,
		UnitTax:            priced.UnitTax,
		Subtotal:           priced.Subtotal,
		SubtotalWithTax:    priced.SubtotalWithTax,
		UnitOfMeasure:      product.UnitOfMeasure,
		ConversionFactor:   product.ConversionFactor,
		ConvertedQuantity:  pricing.ConvertedQuantity(in.Quantity, product.ConversionFactor),
		SuggestedSalePrice: priced.SuggestedSalePrice,
	}
	return line, inventory.StockDelta{ProductID: product.ID, Amount: in.Quantity}, nil
}

// BuildLines builds every requested line in order, stopping at the first error.
func BuildLines(ctx context.Context, ledger ProductReader, inputs []LineInput) ([]LineItem, []inventory.StockDelta, Totals, error) {
	if len(inputs) == 0 {
		return nil, nil, Totals{}, fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	lines := make([]LineItem, 0, len(inputs))
	deltas := make([]inventory.StockDelta, 0, len(inputs))
	for i, in := range inputs {
		line, delta, err := BuildLine(ctx, ledger, in, i+1, lines)
		if err != nil {
			return nil, nil, Totals{}, err
		}
		lines = append(lines, line)
		deltas = append(deltas, delta)
	}
	return lines, deltas, SumLines(lines), nil
}

// SumLines recomputes the header totals from lines.
func SumLines(lines []LineItem) Totals {
	t := Totals{Subtotal: decimal.Zero, TaxTotal: decimal.Zero, TotalWithTax: decimal.Zero}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.TotalWithTax = t.TotalWithTax.Add(l.SubtotalWithTax)
	}
	t.TaxTotal = t.TotalWithTax.Sub(t.Subtotal)
	return t
}

// ReversalDeltas returns the deltas that undo the stock effect of lines.
func ReversalDeltas(lines []LineItem) []inventory.StockDelta {
	out := make([]inventory.StockDelta, 0, len(lines))
	for _, l := range lines {
		out = append(out, inventory.StockDelta{ProductID: l.ProductID, Amount: l.Quantity}.Negate())
	}
	return out
}
