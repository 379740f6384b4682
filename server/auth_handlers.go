package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Zemacs/openpaper/auth"
	"github.com/Zemacs/openpaper/docstore"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user, err := s.store.CreateUser(r.Context(), req.Email, hash)
	if err != nil {
		// Unique email constraint is the only plausible failure here.
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	s.track("account_registered", user.ID, nil)
	s.issueSession(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.UserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.issueSession(w, r, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": claims.UserID,
		"email":   claims.Email,
	})
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, code int, user *docstore.User) {
	token, err := auth.GenerateToken(s.cfg.JWTSecret, &auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
	}, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	auth.SetTokenCookie(w, token, int(s.cfg.TokenTTL.Seconds()), secure)
	writeJSON(w, code, sessionResponse{UserID: user.ID, Email: user.Email, Token: token})
}

func (s *Server) track(event, userID string, props map[string]any) {
	if s.tracker != nil {
		s.tracker.Track(event, userID, props)
	}
}
