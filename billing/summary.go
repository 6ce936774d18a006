/*
summary.go - Subtotal, tax, and discount computation

PURPOSE:
  Turns a document's line items plus tax/discount percentages into a
  FinancialSummary. Pure and deterministic, no I/O.

INVARIANTS:
  - subtotal = sum(quantity * rate) over all items (order irrelevant)
  - taxAmount = subtotal * taxPct / 100
  - discountAmount = subtotal * discountPct / 100
  - total = subtotal + taxAmount - discountAmount, and must be >= 0

ROUNDING:
  All arithmetic stays in full-precision decimals. Rounding happens only
  at the presentation boundary, so remaining-balance arithmetic never
  accumulates drift across partial payments.

BOUNDARY VALIDATION:
  Out-of-domain input is rejected, never silently coerced or clamped.
  A negative total is a data-entry error, not a valid state.
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FinancialSummary is the derived financial picture of one document.
// It is never stored; it is recomputed from items at read time.
type FinancialSummary struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxPercentage      decimal.Decimal `json:"tax_percentage"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Total              decimal.Decimal `json:"total"`
}

// ComputeSummary computes the financial summary for a set of line items.
// Rejects items with quantity <= 0 or rate < 0 and percentages outside
// [0,100]; a combination producing a negative total is also rejected.
func ComputeSummary(items []LineItem, taxPct, discountPct decimal.Decimal) (FinancialSummary, error) {
	if err := validatePercent("tax_percentage", taxPct); err != nil {
		return FinancialSummary{}, err
	}
	if err := validatePercent("discount_percentage", discountPct); err != nil {
		return FinancialSummary{}, err
	}

	subtotal := decimal.Zero
	for i, item := range items {
		if !item.Quantity.IsPositive() {
			return FinancialSummary{}, &ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "must be greater than zero",
			}
		}
		if item.Rate.IsNegative() {
			return FinancialSummary{}, &ValidationError{
				Field:   fmt.Sprintf("items[%d].rate", i),
				Message: "must not be negative",
			}
		}
		subtotal = subtotal.Add(item.Amount())
	}

	taxAmount := subtotal.Mul(taxPct).Div(hundred)
	discountAmount := subtotal.Mul(discountPct).Div(hundred)
	total := subtotal.Add(taxAmount).Sub(discountAmount)

	if total.IsNegative() {
		return FinancialSummary{}, &ValidationError{
			Field:   "total",
			Message: "computed total is negative",
		}
	}

	return FinancialSummary{
		Subtotal:           subtotal,
		TaxPercentage:      taxPct,
		DiscountPercentage: discountPct,
		TaxAmount:          taxAmount,
		DiscountAmount:     discountAmount,
		Total:              total,
	}, nil
}

func validatePercent(field string, pct decimal.Decimal) error {
	if pct.IsNegative() {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	if pct.GreaterThan(hundred) {
		return &ValidationError{Field: field, Message: "must not exceed 100"}
	}
	return nil
}
