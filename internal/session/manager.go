// Package session manages cookie-backed sessions over an injected store.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// CookieName is the session cookie issued on login.
const CookieName = "session_id"

// Manager owns session lifecycle: creation on login, validation per request,
// destruction on logout, and periodic expiry sweeps. TTL is explicit
// configuration, not store policy.
type Manager struct {
	store        storage.SessionStore
	ttl          time.Duration
	secureCookie bool
	logger       *log.Logger
}

func NewManager(store storage.SessionStore, ttl time.Duration, secureCookie bool, logger *log.Logger) *Manager {
	return &Manager{
		store:        store,
		ttl:          ttl,
		secureCookie: secureCookie,
		logger:       logger.WithComponent(log.ComponentSession),
	}
}

// Create starts a session for the user and sets the cookie on w.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, userID int64) (core.Session, error) {
	s := core.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return core.Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.DebugContext(ctx, "Session created",
		log.FieldSessionID, s.ID,
		log.FieldUserID, userID,
		"expires_at", s.ExpiresAt)
	return s, nil
}

// Resolve returns the valid, unexpired session carried by the request, or
// core.ErrAuth when there is none.
func (m *Manager) Resolve(r *http.Request) (core.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return core.Session{}, core.ErrAuth
	}

	s, err := m.store.SessionByID(r.Context(), cookie.Value)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, core.ErrAuth
	}
	if err != nil {
		return core.Session{}, err
	}
	return s, nil
}

// Destroy removes the request's session, if any, and clears the cookie.
// Destroying an absent session is not an error.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		if err := m.store.DeleteSession(ctx, cookie.Value); err != nil {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CleanupLoop deletes expired sessions every interval until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.store.DeleteExpiredSessions(ctx)
			if err != nil {
				m.logger.ErrorContext(ctx, "Expired session sweep failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				m.logger.InfoContext(ctx, "Expired sessions removed", "count", n)
			}
		}
	}
}
