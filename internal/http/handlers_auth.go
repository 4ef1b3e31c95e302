package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error registering user")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, err, "Error registering user")
		return
	}

	_, err := s.auth.Register(r.Context(), auth.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, err, "Error registering user")
		return
	}

	respondMessage(w, http.StatusCreated, "User and default categories registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error finding user")
		return
	}

	user, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, r, err, "Error finding user")
		return
	}

	if _, err := s.sessions.Create(r.Context(), w, user.ID); err != nil {
		respondError(w, r, err, "Error saving session")
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Login successful",
		log.FieldUserID, user.ID, log.FieldUsername, user.Username)
	respondJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful",
		"redirect": "/expenses/view",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), w, r); err != nil {
		respondError(w, r, err, "Error logging out")
		return
	}
	respondMessage(w, http.StatusOK, "Logout successful")
}

// handleAuthStatus always answers 200; isLoggedIn carries the verdict.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Resolve(r); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"message":    "User not logged in",
			"isLoggedIn": false,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "User verified",
		"isLoggedIn": true,
	})
}
