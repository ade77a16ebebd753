package domain

import "time"

// AuditEntry is an append-only record of a sensitive action.
type AuditEntry struct {
	ID            int64          `json:"id"`
	ActorWorkerID *int64         `json:"actor_worker_id,omitempty"`
	ActorPersonID *int64         `json:"actor_person_id,omitempty"`
	Action        string         `json:"action"`
	Entity        string         `json:"entity"`
	EntityID      int64          `json:"entity_id,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
