package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

const (
	verifyAttemptLimit  = 5
	verifyAttemptWindow = time.Minute
	loginWindow         = time.Minute
)

type verifyTOTPRequest struct {
	PersonID    int64  `json:"person_id"`
	EncounterID int64  `json:"encounter_id"`
	Code        string `json:"code"`
}

// ProvisionTOTP handles POST /api/people/{person_id}/totp/init.
func (h *Handler) ProvisionTOTP(w http.ResponseWriter, r *http.Request) {
	personID, ok := pathID(r, "person_id")
	if !ok {
		BadRequest(w, "invalid person id")
		return
	}
	p := GetPrincipal(r)

	result, err := h.totp.Provision(r.Context(), personID, workerID(p))
	if errors.Is(err, domain.ErrNotFound) {
		NotFound(w, "person not found")
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "provisioning failed", "person_id", personID, "error", err)
		InternalError(w, "provisioning failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// VerifyTOTP handles POST /api/verify-totp.
func (h *Handler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.PersonID <= 0 || req.EncounterID <= 0 || req.Code == "" {
		BadRequest(w, "person_id, encounter_id and code are required")
		return
	}

	if h.limiter != nil {
		key := fmt.Sprintf("verify:%d", req.PersonID)
		allowed, err := h.limiter.Allow(r.Context(), key, verifyAttemptLimit, verifyAttemptWindow)
		if err == nil && !allowed {
			RateLimit(w, "too many verification attempts")
			return
		}
	}

	p := GetPrincipal(r)
	result, err := h.totp.VerifyCode(r.Context(), req.PersonID, req.EncounterID, req.Code, workerID(p))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "person not found")
	case errors.Is(err, domain.ErrEncounterMismatch):
		BadRequest(w, "invalid encounter")
	case errors.Is(err, domain.ErrNotProvisioned):
		BadRequest(w, "totp not provisioned")
	case errors.Is(err, domain.ErrInvalidCode):
		BadRequest(w, "invalid code")
	case errors.Is(err, domain.ErrReplayDetected):
		Conflict(w, "code already used")
	case err != nil:
		logger.ErrorContext(r.Context(), "verification failed", "person_id", req.PersonID, "error", err)
		InternalError(w, "verification failed")
	default:
		WriteJSON(w, http.StatusOK, result)
	}
}

func workerID(p *Principal) int64 {
	if p != nil && p.WorkerID != nil {
		return *p.WorkerID
	}
	return 0
}
