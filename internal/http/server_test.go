package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage/sqlite"
)

type testApp struct {
	t      *testing.T
	ts     *httptest.Server
	repo   *sqlite.Repository
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)

	logger := log.New(log.Config{Level: slog.LevelError})
	sessions := session.NewManager(repo, 24*time.Hour, false, logger)
	authSvc := auth.NewService(repo, logger)

	srv := apphttp.NewServer(":0", repo, authSvc, sessions, nil, logger)
	ts := httptest.NewServer(srv.Handler)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
		repo.Close()
	})

	return &testApp{
		t:      t,
		ts:     ts,
		repo:   repo,
		client: &http.Client{Jar: jar},
	}
}

// do sends a JSON request and decodes the JSON response body into a map.
func (a *testApp) do(method, path string, body any) (int, map[string]any) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func (a *testApp) register(username string) {
	a.t.Helper()
	status, _ := a.do(http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "s3cret",
	})
	require.Equal(a.t, http.StatusCreated, status)
}

func (a *testApp) login(username string) {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": "s3cret",
	})
	require.Equal(a.t, http.StatusOK, status)
	require.Equal(a.t, "/expenses/view", body["redirect"])
}

func (a *testApp) firstCategoryID() int64 {
	a.t.Helper()
	status, body := a.do(http.MethodGet, "/categories", nil)
	require.Equal(a.t, http.StatusOK, status)
	cats := body["categories"].([]any)
	require.NotEmpty(a.t, cats)
	return int64(cats[0].(map[string]any)["category_id"].(float64))
}

func TestRegister(t *testing.T) {
	app := newTestApp(t)

	status, body := app.do(http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "s3cret",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User and default categories registered successfully", body["message"])

	// Exactly the 13 default categories were seeded.
	app.login("alice")
	status, body = app.do(http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["categories"].([]any), 13)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	app := newTestApp(t)

	status, body := app.do(http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid input data", body["message"])

	app.register("alice")
	status, body = app.do(http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username already exists", body["message"])
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")

	status1, body1 := app.do(http.MethodPost, "/auth/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	status2, body2 := app.do(http.MethodPost, "/auth/login", map[string]string{
		"username": "ghost", "password": "s3cret",
	})
	assert.Equal(t, http.StatusUnauthorized, status1)
	assert.Equal(t, http.StatusUnauthorized, status2)
	assert.Equal(t, body1, body2)
}

func TestAuthStatusAndLogout(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")

	status, body := app.do(http.MethodGet, "/auth/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["isLoggedIn"])

	app.login("alice")
	status, body = app.do(http.MethodGet, "/auth/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isLoggedIn"])

	status, _ = app.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, status)

	// The session is gone: protected routes reject, status reports out.
	status, body = app.do(http.MethodGet, "/auth/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["isLoggedIn"])

	status, body = app.do(http.MethodGet, "/expenses/view", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body["message"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/expenses/view"},
		{http.MethodPost, "/expenses/add"},
		{http.MethodGet, "/incomes/view"},
		{http.MethodPost, "/incomes/add"},
		{http.MethodGet, "/summary"},
		{http.MethodGet, "/categories"},
	} {
		status, body := app.do(route.method, route.path, map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, status, "%s %s", route.method, route.path)
		assert.Equal(t, "Unauthorized", body["message"])
	}
}

func TestExpenseLifecycle(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")
	app.login("alice")
	catID := app.firstCategoryID()

	status, body := app.do(http.MethodPost, "/expenses/add", map[string]any{
		"amount": 50.25, "date": "2024-01-15", "description": "Groceries", "category_id": catID,
	})
	require.Equal(t, http.StatusCreated, status)
	expense := body["expense"].(map[string]any)
	expenseID := int64(expense["expense_id"].(float64))
	assert.Equal(t, "Groceries", expense["description"])
	assert.Equal(t, "2024-01-15", expense["date"])

	status, body = app.do(http.MethodGet, "/expenses/view", nil)
	require.Equal(t, http.StatusOK, status)
	expenses := body["expenses"].([]any)
	require.Len(t, expenses, 1)

	status, body = app.do(http.MethodPut, "/expenses/edit", map[string]any{
		"expense_id": expenseID, "category_id": catID,
		"amount": "60.00", "date": "2024-01-16", "description": "More groceries",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Expense updated successfully", body["message"])

	status, body = app.do(http.MethodGet, "/expenses/view", nil)
	require.Equal(t, http.StatusOK, status)
	updated := body["expenses"].([]any)[0].(map[string]any)
	assert.Equal(t, "More groceries", updated["description"])

	status, body = app.do(http.MethodDelete, "/expenses/delete", map[string]any{"id": expenseID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Expense deleted successfully", body["message"])

	status, body = app.do(http.MethodGet, "/expenses/view", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["expenses"])
}

func TestExpenseValidation(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")
	app.login("alice")
	catID := app.firstCategoryID()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing amount", map[string]any{"date": "2024-01-01", "description": "x", "category_id": catID}},
		{"zero amount", map[string]any{"amount": 0, "date": "2024-01-01", "description": "x", "category_id": catID}},
		{"bad amount", map[string]any{"amount": "abc", "date": "2024-01-01", "description": "x", "category_id": catID}},
		{"bad date", map[string]any{"amount": 5, "date": "01/15/2024", "description": "x", "category_id": catID}},
		{"missing description", map[string]any{"amount": 5, "date": "2024-01-01", "category_id": catID}},
		{"missing category", map[string]any{"amount": 5, "date": "2024-01-01", "description": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := app.do(http.MethodPost, "/expenses/add", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Invalid input data", body["message"])
		})
	}
}

func TestExpenseOwnershipEnforced(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")
	app.login("alice")
	aliceCat := app.firstCategoryID()

	status, body := app.do(http.MethodPost, "/expenses/add", map[string]any{
		"amount": 10, "date": "2024-01-01", "description": "Coffee", "category_id": aliceCat,
	})
	require.Equal(t, http.StatusCreated, status)
	expenseID := int64(body["expense"].(map[string]any)["expense_id"].(float64))

	// Switch to a second user on the same server.
	app2 := app
	status, _ = app2.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	app2.register("bob")
	app2.login("bob")
	bobCat := app2.firstCategoryID()

	status, body = app2.do(http.MethodGet, "/expenses/view", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["expenses"], "no cross-user data leak")

	status, _ = app2.do(http.MethodPut, "/expenses/edit", map[string]any{
		"expense_id": expenseID, "category_id": bobCat,
		"amount": 99, "date": "2024-01-02", "description": "hijack",
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = app2.do(http.MethodDelete, "/expenses/delete", map[string]any{"id": expenseID})
	assert.Equal(t, http.StatusNotFound, status)

	// Referencing another user's category is a validation failure.
	status, _ = app2.do(http.MethodPost, "/expenses/add", map[string]any{
		"amount": 5, "date": "2024-01-03", "description": "wrong cat", "category_id": aliceCat,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIncomeLifecycleAndSummary(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")
	app.login("alice")
	catID := app.firstCategoryID()

	status, body := app.do(http.MethodPost, "/incomes/add", map[string]any{
		"amount": "1500.50", "start_date": "2024-01-01", "end_date": "2024-01-31",
		"description": "Salary", "category_id": catID,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Budget added successfully", body["message"])
	budget := body["budget"].(map[string]any)
	budgetID := int64(budget["budget_id"].(float64))

	status, body = app.do(http.MethodPost, "/expenses/add", map[string]any{
		"amount": 70.25, "date": "2024-01-10", "description": "Utilities", "category_id": catID,
	})
	require.Equal(t, http.StatusCreated, status)

	status, body = app.do(http.MethodGet, "/incomes/view", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["budgets"].([]any), 1)

	status, body = app.do(http.MethodGet, "/summary", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1500.5", body["income"])
	assert.Equal(t, "70.25", body["expense"])
	assert.Equal(t, "1430.25", body["balance"])

	// Summary reads are idempotent.
	status, again := app.do(http.MethodGet, "/summary", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, body, again)

	status, body = app.do(http.MethodDelete, "/incomes/delete", map[string]any{"id": budgetID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Income deleted successfully", body["message"])
}

func TestEndDateBeforeStartDateRejected(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")
	app.login("alice")
	catID := app.firstCategoryID()

	status, _ := app.do(http.MethodPost, "/incomes/add", map[string]any{
		"amount": 100, "start_date": "2024-02-01", "end_date": "2024-01-01",
		"description": "Backwards", "category_id": catID,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := app.client.Get(app.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.client.Get(app.ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
}

func TestDescriptionWithMarkupIsStoredAsData(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")
	app.login("alice")
	catID := app.firstCategoryID()

	hostile := `<script>alert("pwn")</script>`
	status, body := app.do(http.MethodPost, "/expenses/add", map[string]any{
		"amount": 5, "date": "2024-01-01", "description": hostile, "category_id": catID,
	})
	require.Equal(t, http.StatusCreated, status)

	// The markup comes back verbatim as JSON data; rendering it safely is the
	// client's job, which builds list items with textContent.
	status, body = app.do(http.MethodGet, "/expenses/view", nil)
	require.Equal(t, http.StatusOK, status)
	got := body["expenses"].([]any)[0].(map[string]any)
	assert.Equal(t, hostile, got["description"])
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)
	status, body := app.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not found", body["message"])
}
