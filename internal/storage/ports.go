// Package storage defines the persistence ports and the backend factory.
// Implementations live in the sqlite and postgres subpackages.
package storage

import (
	"context"

	"fintrack/internal/core"
)

// TxKind discriminates ledger rows across the two transaction tables.
type TxKind string

const (
	KindExpense TxKind = "expense"
	KindIncome  TxKind = "income"
)

// Export bookkeeping states for the ledger-export worker.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportError   = "error"
)

type UserStore interface {
	// CreateUserWithCategories inserts the user and seeds the default
	// category rows in one transaction. A duplicate username yields
	// core.ErrConflict and nothing is written.
	CreateUserWithCategories(ctx context.Context, u core.User, categories []string) (core.User, error)
	FindUserByUsername(ctx context.Context, username string) (core.User, error)
	FindUserByID(ctx context.Context, id int64) (core.User, error)
}

type CategoryStore interface {
	CategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error)
	// CategoryBelongsToUser reports whether the category row is owned by the
	// user; transactions may only reference the owner's categories.
	CategoryBelongsToUser(ctx context.Context, categoryID, userID int64) (bool, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ExpensesByUser(ctx context.Context, userID int64) ([]core.Expense, error)
	// UpdateExpense overwrites the mutable fields of the row identified by
	// e.ID, scoped to e.UserID. A miss is core.ErrNotFound.
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id, userID int64) error
}

type IncomeStore interface {
	CreateIncome(ctx context.Context, i core.Income) (core.Income, error)
	IncomesByUser(ctx context.Context, userID int64) ([]core.Income, error)
	DeleteIncome(ctx context.Context, id, userID int64) error
}

// SessionStore is the injected session persistence: get/set/destroy by key.
// Expiry is enforced in the query so callers never see stale sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s core.Session) error
	SessionByID(ctx context.Context, id string) (core.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// ExportRow is a denormalized ledger row ready for the spreadsheet.
type ExportRow struct {
	Kind        TxKind
	ID          int64
	Date        string
	Username    string
	Description string
	Amount      string
	Category    string
}

// ExportItem identifies a row awaiting export.
type ExportItem struct {
	Kind TxKind
	ID   int64
}

// ExportStore tracks which ledger rows still need to reach the export target.
type ExportStore interface {
	PendingExports(ctx context.Context, limit int) ([]ExportItem, error)
	ExportRowByID(ctx context.Context, kind TxKind, id int64) (ExportRow, error)
	MarkExported(ctx context.Context, kind TxKind, id int64) error
	MarkExportError(ctx context.Context, kind TxKind, id int64) error
}

// Store is the full persistence surface a backend must provide.
type Store interface {
	UserStore
	CategoryStore
	ExpenseStore
	IncomeStore
	SessionStore
	ExportStore

	Close() error
}
