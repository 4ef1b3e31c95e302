package core

import "github.com/shopspring/decimal"

// Summary aggregates a user's ledger. Balance is the income total minus the
// absolute value of every expense, matching what the client renders.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Summarize computes ledger totals. It is a pure function of its inputs, so
// repeated calls without mutation yield the same value.
func Summarize(incomes []Income, expenses []Expense) Summary {
	income := decimal.Zero
	for _, i := range incomes {
		income = income.Add(i.Amount)
	}
	spent := decimal.Zero
	for _, e := range expenses {
		spent = spent.Add(e.Amount.Abs())
	}
	return Summary{
		Income:  income,
		Expense: spent,
		Balance: income.Sub(spent),
	}
}
