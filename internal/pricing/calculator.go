// Package pricing derives per-line tax, subtotals and the suggested resale
// price of a purchase line. All functions are pure.
package pricing

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money is rounded to.
const MoneyPlaces = 2

// Input carries the line and product attributes a calculation needs.
type Input struct {
	UnitCost      decimal.Decimal
	Quantity      decimal.Decimal
	TaxApplicable bool
	TaxPercent    decimal.Decimal
	MarginPercent decimal.Decimal
}

// Result holds the derived line amounts.
type Result struct {
	UnitTax            decimal.Decimal
	Subtotal           decimal.Decimal
	SubtotalWithTax    decimal.Decimal
	SuggestedSalePrice decimal.Decimal
}

// Calculate prices one purchase line. Inputs are assumed validated.
func Calculate(in Input) Result {
	unitTax := decimal.Zero
	if in.TaxApplicable {
		unitTax = percentOf(in.UnitCost, in.TaxPercent)
	}
	subtotal := in.UnitCost.Mul(in.Quantity)
	return Result{
		UnitTax:            unitTax,
		Subtotal:           subtotal,
		SubtotalWithTax:    subtotal.Add(unitTax.Mul(in.Quantity)),
		SuggestedSalePrice: in.UnitCost.Add(in.UnitCost.Mul(in.MarginPercent).Shift(-2)).Round(MoneyPlaces),
	}
}

// ConvertedQuantity expresses quantity in base units.
func ConvertedQuantity(quantity, factor decimal.Decimal) decimal.Decimal {
	return quantity.Mul(factor)
}

// percentOf returns round2(amount × percent / 100).
func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Shift(-2).Round(MoneyPlaces)
}
