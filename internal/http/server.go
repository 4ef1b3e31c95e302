// Package http wires the REST surface: routing, middleware, and handlers.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage"
	appweb "fintrack/web"
)

// ExportPublisher announces freshly written ledger rows to the export queue.
// A nil publisher disables the pipeline.
type ExportPublisher interface {
	PublishExport(ctx context.Context, kind string, id int64) error
}

type Server struct {
	http.Server

	store     storage.Store
	auth      *auth.Service
	sessions  *session.Manager
	publisher ExportPublisher
	logger    *log.Logger

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// publisher may be nil when the export pipeline is disabled.
func NewServer(addr string, store storage.Store, authSvc *auth.Service, sessions *session.Manager, publisher ExportPublisher, logger *log.Logger) *Server {
	s := &Server{
		store:       store,
		auth:        authSvc,
		sessions:    sessions,
		publisher:   publisher,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(),
	}

	r := mux.NewRouter()
	r.Use(s.withRequestLogging, withSecurityHeaders)
	r.NotFoundHandler = s.withRequestLogging(http.HandlerFunc(handleNotFound))
	r.MethodNotAllowedHandler = s.withRequestLogging(http.HandlerFunc(handleNotFound))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	ar := r.PathPrefix("/auth").Subrouter()
	ar.Handle("/register", s.withRateLimit(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	ar.Handle("/login", s.withRateLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	ar.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	ar.HandleFunc("/status", s.handleAuthStatus).Methods(http.MethodGet)

	er := r.PathPrefix("/expenses").Subrouter()
	er.Use(mux.MiddlewareFunc(sessions.Require))
	er.HandleFunc("/add", s.handleAddExpense).Methods(http.MethodPost)
	er.HandleFunc("/view", s.handleViewExpenses).Methods(http.MethodGet)
	er.HandleFunc("/edit", s.handleEditExpense).Methods(http.MethodPut)
	er.HandleFunc("/delete", s.handleDeleteExpense).Methods(http.MethodDelete)

	ir := r.PathPrefix("/incomes").Subrouter()
	ir.Use(mux.MiddlewareFunc(sessions.Require))
	ir.HandleFunc("/add", s.handleAddIncome).Methods(http.MethodPost)
	ir.HandleFunc("/view", s.handleViewIncomes).Methods(http.MethodGet)
	ir.HandleFunc("/delete", s.handleDeleteIncome).Methods(http.MethodDelete)

	r.Handle("/categories", sessions.Require(http.HandlerFunc(s.handleCategories))).Methods(http.MethodGet)
	r.Handle("/summary", sessions.Require(http.HandlerFunc(s.handleSummary))).Methods(http.MethodGet)

	// Embedded front-end
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.FileServer(http.FS(sub))
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", cacheControl(static)))
		r.Handle("/", static).Methods(http.MethodGet)
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	s.Server = http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter sweep and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func cacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports readiness once the store answers a trivial query.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.PendingExports(r.Context(), 1); err != nil {
		respondMessage(w, http.StatusServiceUnavailable, "storage not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respondMessage(w, http.StatusNotFound, "Not found")
}
