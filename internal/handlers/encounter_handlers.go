package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/internal/service"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

type submitEncounterResponse struct {
	EncounterID  int64                  `json:"encounter_id"`
	Status       domain.EncounterStatus `json:"status"`
	RAG          string                 `json:"rag"`
	OverallScore *int                   `json:"overall_score,omitempty"`
	VerifiedAt   *time.Time             `json:"verified_at,omitempty"`
	SubmittedAt  *time.Time             `json:"submitted_at,omitempty"`
}

type startEncounterRequest struct {
	PersonID        int64      `json:"person_id"`
	CampID          *int64     `json:"camp_id,omitempty"`
	ClientCreatedAt *time.Time `json:"client_created_at,omitempty"`
}

// StartEncounter handles POST /api/encounters/start.
func (h *Handler) StartEncounter(w http.ResponseWriter, r *http.Request) {
	var req startEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.PersonID <= 0 {
		BadRequest(w, "person_id is required")
		return
	}

	p := GetPrincipal(r)
	encounter, err := h.encounters.Start(r.Context(), req.PersonID, req.CampID, workerID(p), req.ClientCreatedAt)
	if errors.Is(err, domain.ErrNotFound) {
		NotFound(w, "person not found")
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "start encounter failed", "person_id", req.PersonID, "error", err)
		InternalError(w, "could not start encounter")
		return
	}

	WriteJSON(w, http.StatusCreated, encounter)
}

// SubmitEncounter handles POST /api/encounters/{encounter_id}/submit.
func (h *Handler) SubmitEncounter(w http.ResponseWriter, r *http.Request) {
	encounterID, ok := pathID(r, "encounter_id")
	if !ok {
		BadRequest(w, "invalid encounter id")
		return
	}

	var req service.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	p := GetPrincipal(r)
	encounter, err := h.encounters.Submit(r.Context(), encounterID, &req, workerID(p))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "encounter not found")
	case errors.Is(err, domain.ErrAlreadySubmitted):
		Conflict(w, "encounter already submitted")
	case errors.Is(err, domain.ErrTokenInvalid):
		WriteError(w, http.StatusBadRequest, "invalid verification token", CodeInvalidToken)
	case errors.Is(err, domain.ErrTokenExpired):
		WriteError(w, http.StatusBadRequest, "verification token expired", CodeExpiredToken)
	case err != nil:
		logger.ErrorContext(r.Context(), "submit encounter failed", "encounter_id", encounterID, "error", err)
		InternalError(w, "could not submit encounter")
	default:
		WriteJSON(w, http.StatusOK, submitEncounterResponse{
			EncounterID:  encounter.ID,
			Status:       encounter.Status,
			RAG:          req.Derived.RAG,
			OverallScore: req.Derived.OverallScore,
			VerifiedAt:   encounter.VerifiedAt,
			SubmittedAt:  encounter.SubmittedAt,
		})
	}
}
