package domain

import "time"

type EncounterStatus string

const (
	EncounterDraft      EncounterStatus = "DRAFT"
	EncounterVerified   EncounterStatus = "VERIFIED"
	EncounterUnverified EncounterStatus = "UNVERIFIED"
	EncounterRejected   EncounterStatus = "REJECTED"
)

// Encounter is one screening visit for one person. It starts in DRAFT and is
// submitted exactly once, landing in VERIFIED (a valid verification token was
// consumed) or UNVERIFIED (offline path). Clinician review may later move
// UNVERIFIED to VERIFIED or REJECTED. No other transitions exist.
type Encounter struct {
	ID                int64           `json:"id"`
	PersonID          int64           `json:"person_id"`
	CampID            *int64          `json:"camp_id,omitempty"`
	StartedByWorkerID int64           `json:"started_by_worker_id"`
	Status            EncounterStatus `json:"status"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
	ClientCreatedAt   *time.Time      `json:"client_created_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// QueueItem is a clinician work-queue row: an encounter joined with its
// person and derived result.
type QueueItem struct {
	EncounterID int64           `json:"encounter_id"`
	PersonID    int64           `json:"person_id"`
	PersonName  string          `json:"person_name"`
	RAG         string          `json:"rag"`
	Status      EncounterStatus `json:"status"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
}
