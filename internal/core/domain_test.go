package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return d
}

func TestExpenseValidate(t *testing.T) {
	valid := Expense{
		CategoryID:  2,
		Amount:      decimal.NewFromInt(50),
		Date:        NewDate(2024, 8, 12),
		Description: "Groceries",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Expense)
	}{
		{"zero amount", func(e *Expense) { e.Amount = decimal.Zero }},
		{"zero date", func(e *Expense) { e.Date = Date{} }},
		{"empty description", func(e *Expense) { e.Description = "  " }},
		{"missing category", func(e *Expense) { e.CategoryID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestIncomeValidate(t *testing.T) {
	valid := Income{
		CategoryID: 1,
		Amount:     mustAmount(t, "1200"),
		StartDate:  NewDate(2024, 8, 1),
		EndDate:    NewDate(2024, 8, 31),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid income rejected: %v", err)
	}

	inverted := valid
	inverted.StartDate, inverted.EndDate = inverted.EndDate, inverted.StartDate
	if err := inverted.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted dates, got %v", err)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, 8, 12)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-08-12"` {
		t.Fatalf("marshal = %s, want %q", b, "2024-08-12")
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip mismatch: %v != %v", back, d)
	}

	var bad Date
	if err := json.Unmarshal([]byte(`"12/08/2024"`), &bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad layout, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	incomes := []Income{
		{Amount: mustAmount(t, "1200")},
		{Amount: mustAmount(t, "300.50")},
	}
	expenses := []Expense{
		{Amount: mustAmount(t, "50")},
		{Amount: mustAmount(t, "-20.25")}, // negative rows count at absolute value
	}

	got := Summarize(incomes, expenses)
	if got.Income.String() != "1500.5" {
		t.Fatalf("income = %s", got.Income)
	}
	if got.Expense.String() != "70.25" {
		t.Fatalf("expense = %s", got.Expense)
	}
	if got.Balance.String() != "1430.25" {
		t.Fatalf("balance = %s", got.Balance)
	}

	// Computing twice without mutation yields the same value.
	again := Summarize(incomes, expenses)
	if !again.Balance.Equal(got.Balance) {
		t.Fatalf("summary not idempotent: %s != %s", again.Balance, got.Balance)
	}

	empty := Summarize(nil, nil)
	if !empty.Balance.IsZero() {
		t.Fatalf("empty ledger balance = %s, want 0", empty.Balance)
	}
}
