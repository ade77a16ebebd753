package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/login for both staff and patient demo accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		BadRequest(w, "username and password are required")
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(r.Context(), "login:"+req.Username, 10, loginWindow)
		if err == nil && !allowed {
			RateLimit(w, "too many login attempts")
			return
		}
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		Unauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "login failed", "error", err)
		InternalError(w, "login failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r)

	profile, err := h.auth.Me(r.Context(), p.Subject, p.Role, p.WorkerID, p.PersonID)
	if errors.Is(err, domain.ErrNotFound) {
		Unauthorized(w, "account no longer active")
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "profile lookup failed", "error", err)
		InternalError(w, "profile lookup failed")
		return
	}

	WriteJSON(w, http.StatusOK, profile)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
