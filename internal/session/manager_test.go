package session_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage/sqlite"
)

func newManager(t *testing.T, ttl time.Duration) (*session.Manager, *sqlite.Repository, core.User) {
	t.Helper()
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	user, err := repo.CreateUserWithCategories(context.Background(), core.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
	}, []string{"Food"})
	require.NoError(t, err)

	logger := log.New(log.Config{Level: slog.LevelError})
	return session.NewManager(repo, ttl, false, logger), repo, user
}

func requestWithCookie(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: value})
	}
	return r
}

func TestCreateSetsCookieAndPersists(t *testing.T) {
	m, _, user := newManager(t, time.Hour)
	w := httptest.NewRecorder()

	sess, err := m.Create(context.Background(), w, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, session.CookieName, cookie.Name)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)

	got, err := m.Resolve(requestWithCookie(sess.ID))
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
}

func TestResolveFailures(t *testing.T) {
	m, _, _ := newManager(t, time.Hour)

	_, err := m.Resolve(requestWithCookie(""))
	assert.ErrorIs(t, err, core.ErrAuth)

	_, err = m.Resolve(requestWithCookie("unknown-token"))
	assert.ErrorIs(t, err, core.ErrAuth)
}

func TestExpiredSessionRejected(t *testing.T) {
	m, repo, user := newManager(t, time.Hour)

	require.NoError(t, repo.CreateSession(context.Background(), core.Session{
		ID: "stale", UserID: user.ID, ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := m.Resolve(requestWithCookie("stale"))
	assert.ErrorIs(t, err, core.ErrAuth)
}

func TestDestroyInvalidatesAndClearsCookie(t *testing.T) {
	m, _, user := newManager(t, time.Hour)

	w := httptest.NewRecorder()
	sess, err := m.Create(context.Background(), w, user.ID)
	require.NoError(t, err)

	w2 := httptest.NewRecorder()
	require.NoError(t, m.Destroy(context.Background(), w2, requestWithCookie(sess.ID)))

	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, err = m.Resolve(requestWithCookie(sess.ID))
	assert.ErrorIs(t, err, core.ErrAuth)

	// Destroying again is not an error.
	assert.NoError(t, m.Destroy(context.Background(), httptest.NewRecorder(), requestWithCookie(sess.ID)))
}

func TestRequireMiddleware(t *testing.T) {
	m, _, user := newManager(t, time.Hour)

	var gotUserID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := session.UserID(r.Context())
		require.True(t, ok)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	})
	handler := m.Require(next)

	// Without a session: 401 JSON, next never runs.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithCookie(""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, w.Body.String())

	// With a valid session the user id lands in the context.
	wc := httptest.NewRecorder()
	sess, err := m.Create(context.Background(), wc, user.ID)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithCookie(sess.ID))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, gotUserID)
}
