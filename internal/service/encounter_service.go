package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/internal/repository"
	"github.com/ruralhealth/screening-api/pkg/events"
	"github.com/ruralhealth/screening-api/pkg/logger"
)

const queueLimit = 200

// SubmitInput is the full screening record sent when an encounter is closed.
type SubmitInput struct {
	VerificationToken *string              `json:"verification_token,omitempty"`
	Vitals            domain.Vitals        `json:"vitals"`
	Tests             domain.Tests         `json:"tests"`
	Derived           domain.DerivedResult `json:"derived"`
}

type EncounterService struct {
	encounters repository.EncounterRepository
	people     repository.PersonRepository
	audit      repository.AuditRepository
	publisher  events.Publisher
	now        func() time.Time
}

func NewEncounterService(
	encounters repository.EncounterRepository,
	people repository.PersonRepository,
	audit repository.AuditRepository,
	publisher events.Publisher,
) *EncounterService {
	return &EncounterService{
		encounters: encounters,
		people:     people,
		audit:      audit,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Start opens a DRAFT encounter for a registered person.
func (s *EncounterService) Start(ctx context.Context, personID int64, campID *int64, workerID int64, clientCreatedAt *time.Time) (*domain.Encounter, error) {
	person, err := s.people.FindByID(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("look up person: %w", err)
	}
	if person == nil {
		return nil, domain.ErrNotFound
	}

	encounter, err := s.encounters.Create(ctx, personID, campID, workerID, clientCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create encounter: %w", err)
	}

	s.writeAudit(ctx, workerID, "encounter.start", encounter.ID, nil)
	s.publish(ctx, events.EncounterStarted, events.EncounterStartedEvent{
		EncounterID: encounter.ID,
		PersonID:    personID,
		WorkerID:    workerID,
		StartedAt:   encounter.CreatedAt,
	})
	return encounter, nil
}

// Submit closes a DRAFT encounter exactly once. A valid verification token
// lands it in VERIFIED; no token lands it in UNVERIFIED for clinician review.
// Averages and BMI are recomputed here regardless of what the client sent.
func (s *EncounterService) Submit(ctx context.Context, encounterID int64, in *SubmitInput, workerID int64) (*domain.Encounter, error) {
	in.Vitals.ComputeDerivedVitals()

	now := s.now()
	encounter, err := s.encounters.Submit(ctx, encounterID, in.VerificationToken, &in.Vitals, &in.Tests, &in.Derived, now)
	if err != nil {
		return nil, err
	}

	s.writeAudit(ctx, workerID, "encounter.submit", encounterID, map[string]any{
		"status": string(encounter.Status),
		"rag":    in.Derived.RAG,
	})
	s.publish(ctx, events.EncounterSubmitted, events.EncounterSubmittedEvent{
		EncounterID: encounter.ID,
		PersonID:    encounter.PersonID,
		Status:      string(encounter.Status),
		RAG:         in.Derived.RAG,
		SubmittedAt: now,
	})
	return encounter, nil
}

// Approve promotes an UNVERIFIED encounter to VERIFIED after review.
func (s *EncounterService) Approve(ctx context.Context, encounterID, workerID int64) error {
	return s.review(ctx, encounterID, workerID, true)
}

// Reject closes an UNVERIFIED encounter as REJECTED.
func (s *EncounterService) Reject(ctx context.Context, encounterID, workerID int64) error {
	return s.review(ctx, encounterID, workerID, false)
}

func (s *EncounterService) review(ctx context.Context, encounterID, workerID int64, approve bool) error {
	now := s.now()

	var err error
	action, outcome, subject := "encounter.reject", "REJECTED", events.EncounterRejected
	if approve {
		action, outcome, subject = "encounter.approve", "VERIFIED", events.EncounterApproved
		err = s.encounters.Approve(ctx, encounterID, now)
	} else {
		err = s.encounters.Reject(ctx, encounterID)
	}
	if err != nil {
		return err
	}

	s.writeAudit(ctx, workerID, action, encounterID, nil)
	s.publish(ctx, subject, events.EncounterReviewedEvent{
		EncounterID: encounterID,
		WorkerID:    workerID,
		Outcome:     outcome,
		ReviewedAt:  now,
	})
	return nil
}

// Queue lists submitted encounters, optionally filtered by triage color.
func (s *EncounterService) Queue(ctx context.Context, rag string) ([]domain.QueueItem, error) {
	items, err := s.encounters.ListByRAG(ctx, rag, queueLimit)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	if items == nil {
		items = []domain.QueueItem{}
	}
	return items, nil
}

// Unverified lists encounters awaiting clinician review.
func (s *EncounterService) Unverified(ctx context.Context) ([]domain.QueueItem, error) {
	items, err := s.encounters.ListUnverified(ctx, queueLimit)
	if err != nil {
		return nil, fmt.Errorf("list unverified: %w", err)
	}
	if items == nil {
		items = []domain.QueueItem{}
	}
	return items, nil
}

func (s *EncounterService) writeAudit(ctx context.Context, workerID int64, action string, entityID int64, meta map[string]any) {
	err := s.audit.Insert(ctx, domain.AuditEntry{
		ActorWorkerID: &workerID,
		Action:        action,
		Entity:        "encounter",
		EntityID:      entityID,
		Meta:          meta,
	})
	if err != nil {
		logger.ErrorContext(ctx, "audit write failed", "action", action, "error", err)
	}
}

func (s *EncounterService) publish(ctx context.Context, subject string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "event publish failed", "subject", subject, "error", err)
	}
}
