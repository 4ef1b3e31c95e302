// Package postgres implements the storage ports on jackc/pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Repository)(nil)

// Open connects to the database at url and applies migrations.
func Open(ctx context.Context, url string) (*Repository, error) {
	if err := runMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// isUniqueViolation reports a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repository) CreateUserWithCategories(ctx context.Context, u core.User, categories []string) (core.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return core.User{}, fmt.Errorf("begin registration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING user_id",
		u.Username, u.Email, u.PasswordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	for _, name := range categories {
		if _, err := tx.Exec(ctx,
			"INSERT INTO categories (user_id, category_name) VALUES ($1, $2)",
			id, name,
		); err != nil {
			return core.User{}, fmt.Errorf("seed category %q: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return core.User{}, fmt.Errorf("commit registration tx: %w", err)
	}
	return r.FindUserByID(ctx, id)
}

func (r *Repository) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.findUser(ctx,
		"SELECT user_id, username, email, password_hash, created_at FROM users WHERE username = $1",
		username,
	)
}

func (r *Repository) FindUserByID(ctx context.Context, id int64) (core.User, error) {
	return r.findUser(ctx,
		"SELECT user_id, username, email, password_hash, created_at FROM users WHERE user_id = $1",
		id,
	)
}

func (r *Repository) findUser(ctx context.Context, query string, arg any) (core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *Repository) CategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT category_id, user_id, category_name FROM categories WHERE user_id = $1",
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
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM categories WHERE category_id = $1 AND user_id = $2",
		categoryID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category ownership: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, category_id, amount, date, description)
		VALUES ($1, $2, $3::numeric, $4::date, $5)
		RETURNING expense_id, user_id, category_id, amount::text, date::text, description, created_at`,
		e.UserID, e.CategoryID, e.Amount.String(), e.Date.String(), e.Description,
	)
	out, err := scanExpense(row.Scan)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return out, nil
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
	rows, err := r.pool.Query(ctx, `
		SELECT expense_id, user_id, category_id, amount::text, date::text, description, created_at
		FROM expenses WHERE user_id = $1`,
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
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses
		SET category_id = $1, amount = $2::numeric, date = $3::date, description = $4, export_status = $5
		WHERE expense_id = $6 AND user_id = $7`,
		e.CategoryID, e.Amount.String(), e.Date.String(), e.Description, storage.ExportPending, e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(tag, "expense", e.ID)
}

func (r *Repository) DeleteExpense(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM expenses WHERE expense_id = $1 AND user_id = $2",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(tag, "expense", id)
}

func requireRow(tag pgconn.CommandTag, what string, id int64) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO budgets (user_id, category_id, amount, start_date, end_date, description)
		VALUES ($1, $2, $3::numeric, $4::date, $5::date, $6)
		RETURNING budget_id, user_id, category_id, amount::text, start_date::text, end_date::text, description, created_at`,
		i.UserID, i.CategoryID, i.Amount.String(), i.StartDate.String(), i.EndDate.String(), i.Description,
	)
	out, err := scanIncome(row.Scan)
	if err != nil {
		return core.Income{}, fmt.Errorf("insert budget: %w", err)
	}
	return out, nil
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
	rows, err := r.pool.Query(ctx, `
		SELECT budget_id, user_id, category_id, amount::text, start_date::text, end_date::text, description, created_at
		FROM budgets WHERE user_id = $1`,
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
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM budgets WHERE budget_id = $1 AND user_id = $2",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return requireRow(tag, "budget", id)
}

func (r *Repository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO sessions (session_id, user_id, expires_at) VALUES ($1, $2, $3)",
		s.ID, s.UserID, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repository) SessionByID(ctx context.Context, id string) (core.Session, error) {
	var s core.Session
	err := r.pool.QueryRow(ctx,
		"SELECT session_id, user_id, expires_at, created_at FROM sessions WHERE session_id = $1 AND expires_at > now()",
		id,
	).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE session_id = $1", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) PendingExports(ctx context.Context, limit int) ([]storage.ExportItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, id FROM (
			SELECT 'expense' AS kind, expense_id AS id, created_at FROM expenses WHERE export_status = $1
			UNION ALL
			SELECT 'income' AS kind, budget_id AS id, created_at FROM budgets WHERE export_status = $1
		) pending ORDER BY created_at LIMIT $2`,
		storage.ExportPending, limit,
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
	out := storage.ExportRow{Kind: kind, ID: id}

	var row pgx.Row
	switch kind {
	case storage.KindExpense:
		row = r.pool.QueryRow(ctx, `
			SELECT e.date::text, u.username, e.description, e.amount::text, c.category_name
			FROM expenses e
			JOIN users u ON u.user_id = e.user_id
			JOIN categories c ON c.category_id = e.category_id
			WHERE e.expense_id = $1`, id)
	case storage.KindIncome:
		row = r.pool.QueryRow(ctx, `
			SELECT b.start_date::text, u.username, b.description, b.amount::text, c.category_name
			FROM budgets b
			JOIN users u ON u.user_id = b.user_id
			JOIN categories c ON c.category_id = b.category_id
			WHERE b.budget_id = $1`, id)
	default:
		return storage.ExportRow{}, fmt.Errorf("unknown export kind %q", kind)
	}

	err := row.Scan(&out.Date, &out.Username, &out.Description, &out.Amount, &out.Category)
	if errors.Is(err, pgx.ErrNoRows) {
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
		query = "UPDATE expenses SET export_status = $1 WHERE expense_id = $2"
	case storage.KindIncome:
		query = "UPDATE budgets SET export_status = $1 WHERE budget_id = $2"
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}
	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set export status: %w", err)
	}
	return requireRow(tag, string(kind), id)
}
