// Package core holds the domain model shared by every layer: users,
// categories, expenses, incomes and sessions, plus amount parsing and the
// error taxonomy.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a money amount.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds half-up
// past the second decimal place. Zero and non-numeric input are rejected;
// sign is preserved (the ledger view takes the absolute value of expenses).
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Validationf("missing amount")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Validationf("amount %q is not numeric", s)
	}
	d = d.Round(2)
	if d.IsZero() {
		return decimal.Zero, Validationf("amount cannot be zero")
	}
	return d, nil
}
