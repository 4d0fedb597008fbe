package domain

import "github.com/shopspring/decimal"

type Amounts struct {
	Subtotal    decimal.Decimal
	CGST        decimal.Decimal
	SGST        decimal.Decimal
	IGST        decimal.Decimal
	TotalAmount decimal.Decimal
}

// ValidateAmounts enforces non-negative amounts, the intra/inter-state tax split and the PO cap.
// A total equal to the PO total is accepted.
func ValidateAmounts(a Amounts, poTotal decimal.Decimal) error {
	for _, v := range []decimal.Decimal{a.Subtotal, a.CGST, a.SGST, a.IGST} {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
	}
	if !a.TotalAmount.IsPositive() {
		return ErrInvalidTotal
	}

	intraState := a.CGST.IsPositive() || a.SGST.IsPositive()
	if intraState && a.IGST.IsPositive() {
		return ErrTaxConflict
	}

	if a.TotalAmount.GreaterThan(poTotal) {
		return ErrExceedsPO
	}
	return nil
}
