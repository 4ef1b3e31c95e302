// Package sqlite implements the storage ports on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Repository struct {
	db *sql.DB
}

var _ storage.Store = (*Repository)(nil)

// Open opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for tests.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// isUniqueViolation detects a UNIQUE constraint failure from the driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *Repository) CreateUserWithCategories(ctx context.Context, u core.User, categories []string) (core.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, fmt.Errorf("begin registration tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		u.Username, u.Email, u.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}

	for _, name := range categories {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO categories (user_id, category_name) VALUES (?, ?)",
			id, name,
		); err != nil {
			return core.User{}, fmt.Errorf("seed category %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.User{}, fmt.Errorf("commit registration tx: %w", err)
	}

	return r.FindUserByID(ctx, id)
}

func (r *Repository) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT user_id, username, email, password_hash, created_at FROM users WHERE username = ?",
		username,
	)
	return scanUser(row)
}

func (r *Repository) FindUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT user_id, username, email, password_hash, created_at FROM users WHERE user_id = ?",
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *Repository) CategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT category_id, user_id, category_name FROM categories WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *Repository) CategoryBelongsToUser(ctx context.Context, categoryID, userID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE category_id = ? AND user_id = ?",
		categoryID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category ownership: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO expenses (user_id, category_id, amount, date, description) VALUES (?, ?, ?, ?, ?)",
		e.UserID, e.CategoryID, e.Amount.String(), e.Date.String(), e.Description,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense insert id: %w", err)
	}
	return r.expenseByID(ctx, id)
}

func (r *Repository) expenseByID(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT expense_id, user_id, category_id, amount, date, description, created_at FROM expenses WHERE expense_id = ?",
		id,
	)
	e, err := scanExpense(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return e, err
}

func scanExpense(scan func(...any) error) (core.Expense, error) {
	var (
		e            core.Expense
		amount, date string
	)
	if err := scan(&e.ID, &e.UserID, &e.CategoryID, &amount, &date, &e.Description, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return e, nil
}

func (r *Repository) ExpensesByUser(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT expense_id, user_id, category_id, amount, date, description, created_at FROM expenses WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET category_id = ?, amount = ?, date = ?, description = ?, export_status = ? WHERE expense_id = ? AND user_id = ?",
		e.CategoryID, e.Amount.String(), e.Date.String(), e.Description, storage.ExportPending, e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res, "expense", e.ID)
}

func (r *Repository) DeleteExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE expense_id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res, "expense", id)
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO budgets (user_id, category_id, amount, start_date, end_date, description) VALUES (?, ?, ?, ?, ?, ?)",
		i.UserID, i.CategoryID, i.Amount.String(), i.StartDate.String(), i.EndDate.String(), i.Description,
	)
	if err != nil {
		return core.Income{}, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Income{}, fmt.Errorf("budget insert id: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		"SELECT budget_id, user_id, category_id, amount, start_date, end_date, description, created_at FROM budgets WHERE budget_id = ?",
		id,
	)
	return scanIncome(row.Scan)
}

func scanIncome(scan func(...any) error) (core.Income, error) {
	var (
		i                  core.Income
		amount, start, end string
	)
	if err := scan(&i.ID, &i.UserID, &i.CategoryID, &amount, &start, &end, &i.Description, &i.CreatedAt); err != nil {
		return core.Income{}, err
	}
	var err error
	if i.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Income{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if i.StartDate, err = core.ParseDate(start); err != nil {
		return core.Income{}, fmt.Errorf("parse stored start date %q: %w", start, err)
	}
	if i.EndDate, err = core.ParseDate(end); err != nil {
		return core.Income{}, fmt.Errorf("parse stored end date %q: %w", end, err)
	}
	return i, nil
}

func (r *Repository) IncomesByUser(ctx context.Context, userID int64) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT budget_id, user_id, category_id, amount, start_date, end_date, description, created_at FROM budgets WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var incomes []core.Income
	for rows.Next() {
		i, err := scanIncome(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		incomes = append(incomes, i)
	}
	return incomes, rows.Err()
}

func (r *Repository) DeleteIncome(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM budgets WHERE budget_id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(res, "budget", id)
}

func (r *Repository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (session_id, user_id, expires_at) VALUES (?, ?, ?)",
		s.ID, s.UserID, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repository) SessionByID(ctx context.Context, id string) (core.Session, error) {
	// Expiry is compared against a bound parameter so both sides share the
	// driver's timestamp encoding.
	row := r.db.QueryRowContext(ctx,
		"SELECT session_id, user_id, expires_at, created_at FROM sessions WHERE session_id = ? AND expires_at > ?",
		id, time.Now(),
	)
	var s core.Session
	err := row.Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions rows affected: %w", err)
	}
	return n, nil
}

func (r *Repository) PendingExports(ctx context.Context, limit int) ([]storage.ExportItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id FROM (
			SELECT 'expense' AS kind, expense_id AS id, created_at FROM expenses WHERE export_status = ?
			UNION ALL
			SELECT 'income' AS kind, budget_id AS id, created_at FROM budgets WHERE export_status = ?
		) ORDER BY created_at LIMIT ?`,
		storage.ExportPending, storage.ExportPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending exports: %w", err)
	}
	defer rows.Close()

	var items []storage.ExportItem
	for rows.Next() {
		var it storage.ExportItem
		if err := rows.Scan(&it.Kind, &it.ID); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) ExportRowByID(ctx context.Context, kind storage.TxKind, id int64) (storage.ExportRow, error) {
	var (
		row *sql.Row
		out = storage.ExportRow{Kind: kind, ID: id}
	)
	switch kind {
	case storage.KindExpense:
		row = r.db.QueryRowContext(ctx, `
			SELECT e.date, u.username, e.description, e.amount, c.category_name
			FROM expenses e
			JOIN users u ON u.user_id = e.user_id
			JOIN categories c ON c.category_id = e.category_id
			WHERE e.expense_id = ?`, id)
	case storage.KindIncome:
		row = r.db.QueryRowContext(ctx, `
			SELECT b.start_date, u.username, b.description, b.amount, c.category_name
			FROM budgets b
			JOIN users u ON u.user_id = b.user_id
			JOIN categories c ON c.category_id = b.category_id
			WHERE b.budget_id = ?`, id)
	default:
		return storage.ExportRow{}, fmt.Errorf("unknown export kind %q", kind)
	}

	err := row.Scan(&out.Date, &out.Username, &out.Description, &out.Amount, &out.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ExportRow{}, fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return storage.ExportRow{}, fmt.Errorf("scan export row: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkExported(ctx context.Context, kind storage.TxKind, id int64) error {
	return r.setExportStatus(ctx, kind, id, storage.ExportDone)
}

func (r *Repository) MarkExportError(ctx context.Context, kind storage.TxKind, id int64) error {
	return r.setExportStatus(ctx, kind, id, storage.ExportError)
}

func (r *Repository) setExportStatus(ctx context.Context, kind storage.TxKind, id int64, status string) error {
	var query string
	switch kind {
	case storage.KindExpense:
		query = "UPDATE expenses SET export_status = ? WHERE expense_id = ?"
	case storage.KindIncome:
		query = "UPDATE budgets SET export_status = ? WHERE budget_id = ?"
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set export status: %w", err)
	}
	return requireRow(res, string(kind), id)
}
