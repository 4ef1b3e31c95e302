package http

import (
	"strings"

	"fintrack/internal/core"
)

// Request bodies are typed per endpoint so required fields are enumerated in
// one place instead of being discovered handler-by-handler.

// amountField accepts a monetary amount sent as either a JSON number or a
// string. Clients send both.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*a = amountField(s)
	return nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req registerRequest) Validate() error {
	if strings.TrimSpace(req.Username) == "" {
		return core.Validationf("missing field %q", "username")
	}
	if strings.TrimSpace(req.Email) == "" {
		return core.Validationf("missing field %q", "email")
	}
	if req.Password == "" {
		return core.Validationf("missing field %q", "password")
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type addExpenseRequest struct {
	Amount      amountField `json:"amount"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
	CategoryID  int64       `json:"category_id"`
}

// toExpense validates the body and builds the domain row for userID.
func (req addExpenseRequest) toExpense(userID int64) (core.Expense, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
	}
	return e, e.Validate()
}

type editExpenseRequest struct {
	ExpenseID   int64       `json:"expense_id"`
	CategoryID  int64       `json:"category_id"`
	Amount      amountField `json:"amount"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
}

func (req editExpenseRequest) toExpense(userID int64) (core.Expense, error) {
	if req.ExpenseID <= 0 {
		return core.Expense{}, core.Validationf("missing field %q", "expense_id")
	}
	e, err := addExpenseRequest{
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}.toExpense(userID)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = req.ExpenseID
	return e, nil
}

type addIncomeRequest struct {
	Description string      `json:"description"`
	CategoryID  int64       `json:"category_id"`
	Amount      amountField `json:"amount"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
}

func (req addIncomeRequest) toIncome(userID int64) (core.Income, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Income{}, err
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.Income{}, err
	}
	end, err := core.ParseDate(req.EndDate)
	if err != nil {
		return core.Income{}, err
	}
	i := core.Income{
		UserID:      userID,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		StartDate:   start,
		EndDate:     end,
		Description: strings.TrimSpace(req.Description),
	}
	return i, i.Validate()
}

type deleteRequest struct {
	ID int64 `json:"id"`
}

func (req deleteRequest) Validate() error {
	if req.ID <= 0 {
		return core.Validationf("missing field %q", "id")
	}
	return nil
}
