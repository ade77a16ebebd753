package handlers

import (
	"errors"
	"net/http"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

// Queue handles GET /api/queue?rag=RED|AMBER|GREEN.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	rag := r.URL.Query().Get("rag")
	switch rag {
	case "", "RED", "AMBER", "GREEN":
	default:
		BadRequest(w, "invalid rag filter")
		return
	}

	items, err := h.encounters.Queue(r.Context(), rag)
	if err != nil {
		logger.ErrorContext(r.Context(), "queue listing failed", "error", err)
		InternalError(w, "could not list queue")
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// Unverified handles GET /api/encounters/unverified.
func (h *Handler) Unverified(w http.ResponseWriter, r *http.Request) {
	items, err := h.encounters.Unverified(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "unverified listing failed", "error", err)
		InternalError(w, "could not list unverified encounters")
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// ApproveEncounter handles POST /api/encounters/{encounter_id}/approve.
func (h *Handler) ApproveEncounter(w http.ResponseWriter, r *http.Request) {
	h.reviewEncounter(w, r, true)
}

// RejectEncounter handles POST /api/encounters/{encounter_id}/reject.
func (h *Handler) RejectEncounter(w http.ResponseWriter, r *http.Request) {
	h.reviewEncounter(w, r, false)
}

func (h *Handler) reviewEncounter(w http.ResponseWriter, r *http.Request, approve bool) {
	encounterID, ok := pathID(r, "encounter_id")
	if !ok {
		BadRequest(w, "invalid encounter id")
		return
	}

	p := GetPrincipal(r)
	var err error
	if approve {
		err = h.encounters.Approve(r.Context(), encounterID, workerID(p))
	} else {
		err = h.encounters.Reject(r.Context(), encounterID, workerID(p))
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "encounter not found")
	case errors.Is(err, domain.ErrNotUnverified):
		Conflict(w, "encounter is not awaiting review")
	case err != nil:
		logger.ErrorContext(r.Context(), "encounter review failed", "encounter_id", encounterID, "error", err)
		InternalError(w, "could not review encounter")
	default:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
