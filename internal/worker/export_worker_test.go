package worker_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/export/memory"
	"fintrack/internal/storage"
	"fintrack/internal/storage/sqlite"
	"fintrack/internal/worker"
)

type fixture struct {
	repo    *sqlite.Repository
	writer  *memory.Writer
	worker  *worker.ExportWorker
	expense core.Expense
	income  core.Income
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	user, err := repo.CreateUserWithCategories(ctx, core.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
	}, []string{"Food", "Salary"})
	require.NoError(t, err)

	cats, err := repo.CategoriesByUser(ctx, user.ID)
	require.NoError(t, err)

	expense, err := repo.CreateExpense(ctx, core.Expense{
		UserID: user.ID, CategoryID: cats[0].ID,
		Amount: decimal.RequireFromString("25.00"),
		Date:   core.NewDate(2024, 5, 1), Description: "Lunch",
	})
	require.NoError(t, err)

	income, err := repo.CreateIncome(ctx, core.Income{
		UserID: user.ID, CategoryID: cats[1].ID,
		Amount:    decimal.RequireFromString("2000"),
		StartDate: core.NewDate(2024, 5, 1), EndDate: core.NewDate(2024, 5, 31),
		Description: "Salary",
	})
	require.NoError(t, err)

	writer := memory.New()
	return &fixture{
		repo:    repo,
		writer:  writer,
		worker:  worker.NewExportWorker(repo, writer, 10),
		expense: expense,
		income:  income,
	}
}

func TestHandleExportMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := events.NewExportMessage(string(storage.KindExpense), f.expense.ID)
	require.NoError(t, f.worker.HandleExportMessage(ctx, msg))

	rows := f.writer.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Username)
	assert.Equal(t, "Lunch", rows[0].Description)
	assert.Equal(t, "Food", rows[0].Category)

	// The expense is no longer pending; the income still is.
	items, err := f.repo.PendingExports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, storage.KindIncome, items[0].Kind)
}

func TestHandleExportMessageUnknownRow(t *testing.T) {
	f := newFixture(t)

	msg := events.NewExportMessage(string(storage.KindExpense), 9999)
	assert.Error(t, f.worker.HandleExportMessage(context.Background(), msg))
	assert.Empty(t, f.writer.Rows())
}

func TestStartupCheckDrainsBacklog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.worker.StartupCheck(ctx))

	assert.Len(t, f.writer.Rows(), 2)
	items, err := f.repo.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAppendFailureMarksErrorAndSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writer.FailNext = true
	require.NoError(t, f.worker.ProcessPending(ctx))

	// One append failed and was marked error; the other row went through.
	assert.Len(t, f.writer.Rows(), 1)
	items, err := f.repo.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items, "failed row must leave pending state")
}
