package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Date is a calendar day without a time component. It marshals as
	// "2006-01-02" on the JSON surface and is stored the same way.
	Date struct {
		time.Time
	}

	User struct {
		ID           int64     `json:"user_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Category struct {
		ID     int64  `json:"category_id"`
		UserID int64  `json:"user_id"`
		Name   string `json:"category_name"`
	}

	Expense struct {
		ID          int64           `json:"expense_id"`
		UserID      int64           `json:"user_id"`
		CategoryID  int64           `json:"category_id"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Income keeps the legacy "budget" naming on the wire: the table and the
	// JSON surface predate the income feature and clients depend on them.
	Income struct {
		ID          int64           `json:"budget_id"`
		UserID      int64           `json:"user_id"`
		CategoryID  int64           `json:"category_id"`
		Amount      decimal.Decimal `json:"amount"`
		StartDate   Date            `json:"start_date"`
		EndDate     Date            `json:"end_date"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Session is server-tracked proof of authentication. The ID is the opaque
	// token held by the client cookie.
	Session struct {
		ID        string    `json:"session_id"`
		UserID    int64     `json:"user_id"`
		ExpiresAt time.Time `json:"expires_at"`
		CreatedAt time.Time `json:"created_at"`
	}
)

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, Validationf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Validationf("date cannot be empty")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateAmount(e.Amount); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return Validationf("empty description")
	}
	if len(e.Description) > 200 {
		return Validationf("description too long (max 200 characters)")
	}
	if e.CategoryID <= 0 {
		return Validationf("missing category")
	}
	return nil
}

func (i Income) Validate() error {
	if err := validateAmount(i.Amount); err != nil {
		return err
	}
	if err := i.StartDate.Validate(); err != nil {
		return err
	}
	if err := i.EndDate.Validate(); err != nil {
		return err
	}
	if i.EndDate.Before(i.StartDate.Time) {
		return Validationf("end date before start date")
	}
	if len(i.Description) > 200 {
		return Validationf("description too long (max 200 characters)")
	}
	if i.CategoryID <= 0 {
		return Validationf("missing category")
	}
	return nil
}

func validateAmount(a decimal.Decimal) error {
	if a.IsZero() {
		return Validationf("amount cannot be zero")
	}
	return nil
}
