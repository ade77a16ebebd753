package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruralhealth/screening-api/internal/domain"
)

// EncounterRepository owns the encounter lifecycle and its clinical record.
type EncounterRepository interface {
	Create(ctx context.Context, personID int64, campID *int64, workerID int64, clientCreatedAt *time.Time) (*domain.Encounter, error)
	// FindByID returns the encounter, or nil if no such encounter exists.
	FindByID(ctx context.Context, id int64) (*domain.Encounter, error)
	// Submit performs the one-way DRAFT transition in a single transaction:
	// optional token consumption, status update and clinical writes either
	// all land or none do. Returns domain.ErrAlreadySubmitted if the
	// encounter is not in DRAFT, domain.ErrTokenInvalid /
	// domain.ErrTokenExpired if a token was supplied but cannot be redeemed.
	Submit(ctx context.Context, id int64, token *string, vitals *domain.Vitals, tests *domain.Tests, derived *domain.DerivedResult, now time.Time) (*domain.Encounter, error)
	// Approve moves UNVERIFIED to VERIFIED; Reject moves UNVERIFIED to
	// REJECTED. Both return domain.ErrNotUnverified on any other status.
	Approve(ctx context.Context, id int64, now time.Time) error
	Reject(ctx context.Context, id int64) error
	ListByRAG(ctx context.Context, rag string, limit int) ([]domain.QueueItem, error)
	ListUnverified(ctx context.Context, limit int) ([]domain.QueueItem, error)
}

type EncounterRepoImpl struct{ pool *pgxpool.Pool }

func NewEncounterRepo(pool *pgxpool.Pool) *EncounterRepoImpl { return &EncounterRepoImpl{pool: pool} }

const encounterColumns = `id, person_id, camp_id, started_by_worker_id, status, verified_at, submitted_at, client_created_at, created_at, updated_at`

func scanEncounter(row pgx.Row) (*domain.Encounter, error) {
	var e domain.Encounter
	err := row.Scan(&e.ID, &e.PersonID, &e.CampID, &e.StartedByWorkerID, &e.Status,
		&e.VerifiedAt, &e.SubmittedAt, &e.ClientCreatedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EncounterRepoImpl) Create(ctx context.Context, personID int64, campID *int64, workerID int64, clientCreatedAt *time.Time) (*domain.Encounter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanEncounter(r.pool.QueryRow(ctx, `
INSERT INTO encounters (person_id, camp_id, started_by_worker_id, status, client_created_at)
VALUES ($1, $2, $3, 'DRAFT', $4)
RETURNING `+encounterColumns, personID, campID, workerID, clientCreatedAt))
}

func (r *EncounterRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Encounter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	e, err := scanEncounter(r.pool.QueryRow(ctx, `
SELECT `+encounterColumns+` FROM encounters WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EncounterRepoImpl) Submit(ctx context.Context, id int64, token *string, vitals *domain.Vitals, tests *domain.Tests, derived *domain.DerivedResult, now time.Time) (*domain.Encounter, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the encounter row so concurrent submissions serialize here.
	var status domain.EncounterStatus
	err = tx.QueryRow(ctx, `
SELECT status FROM encounters WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if status != domain.EncounterDraft {
		return nil, domain.ErrAlreadySubmitted
	}

	newStatus := domain.EncounterUnverified
	var verifiedAt *time.Time

	if token != nil {
		var (
			tokenID     int64
			encounterID int64
			expiresAt   time.Time
			used        bool
		)
		err = tx.QueryRow(ctx, `
SELECT id, encounter_id, expires_at, used
FROM verification_tokens
WHERE token = $1
FOR UPDATE`, *token).Scan(&tokenID, &encounterID, &expiresAt, &used)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		if err != nil {
			return nil, err
		}
		if used || encounterID != id {
			return nil, domain.ErrTokenInvalid
		}
		if expiresAt.Before(now) {
			return nil, domain.ErrTokenExpired
		}

		if _, err = tx.Exec(ctx, `
UPDATE verification_tokens SET used = true WHERE id = $1`, tokenID); err != nil {
			return nil, err
		}
		newStatus = domain.EncounterVerified
		verifiedAt = &now
	}

	enc, err := scanEncounter(tx.QueryRow(ctx, `
UPDATE encounters
SET status = $2, verified_at = $3, submitted_at = $4, updated_at = now()
WHERE id = $1
RETURNING `+encounterColumns, id, newStatus, verifiedAt, now))
	if err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `
INSERT INTO vitals (encounter_id, sbp1, dbp1, sbp2, dbp2, sbp_avg, dbp_avg, hr, spo2, temp, weight, height, bmi, waist, symptoms_json, risk_json, consent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		id, vitals.SBP1, vitals.DBP1, vitals.SBP2, vitals.DBP2, vitals.SBPAvg, vitals.DBPAvg,
		vitals.HR, vitals.SpO2, vitals.Temp, vitals.Weight, vitals.Height, vitals.BMI, vitals.Waist,
		vitals.Symptoms, vitals.Risk, vitals.Consent); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `
INSERT INTO tests (encounter_id, glucose_type, glucose_value, hb, urine_dip_json)
VALUES ($1, $2, $3, $4, $5)`,
		id, tests.GlucoseType, tests.GlucoseValue, tests.Hb, tests.UrineDip); err != nil {
		return nil, err
	}

	if _, err = tx.Exec(ctx, `
INSERT INTO derived_results (encounter_id, rag, flags_json, next_step, followup_date, domain_scores_json, overall_score)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, derived.RAG, derived.Flags, derived.NextStep, derived.FollowupDate,
		derived.DomainScores, derived.OverallScore); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return enc, nil
}

func (r *EncounterRepoImpl) Approve(ctx context.Context, id int64, now time.Time) error {
	return r.review(ctx, id, domain.EncounterVerified, &now)
}

func (r *EncounterRepoImpl) Reject(ctx context.Context, id int64) error {
	return r.review(ctx, id, domain.EncounterRejected, nil)
}

func (r *EncounterRepoImpl) review(ctx context.Context, id int64, to domain.EncounterStatus, verifiedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
UPDATE encounters
SET status = $2, verified_at = COALESCE($3, verified_at), updated_at = now()
WHERE id = $1 AND status = 'UNVERIFIED'
`, id, to, verifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing encounter from one in the wrong state.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM encounters WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrNotUnverified
}

const queueQuery = `
SELECT e.id, p.id, p.full_name, d.rag, e.status, e.submitted_at
FROM encounters e
JOIN people p ON p.id = e.person_id
JOIN derived_results d ON d.encounter_id = e.id
`

// ListByRAG lists submitted encounters, newest first. An empty rag matches
// every triage color.
func (r *EncounterRepoImpl) ListByRAG(ctx context.Context, rag string, limit int) ([]domain.QueueItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, queueQuery+`
WHERE ($1 = '' OR d.rag = $1) AND e.status IN ('VERIFIED', 'UNVERIFIED')
ORDER BY e.submitted_at DESC
LIMIT $2`, rag, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueue(rows)
}

func (r *EncounterRepoImpl) ListUnverified(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, queueQuery+`
WHERE e.status = 'UNVERIFIED'
ORDER BY e.submitted_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueue(rows)
}

func scanQueue(rows pgx.Rows) ([]domain.QueueItem, error) {
	var items []domain.QueueItem
	for rows.Next() {
		var it domain.QueueItem
		if err := rows.Scan(&it.EncounterID, &it.PersonID, &it.PersonName, &it.RAG, &it.Status, &it.SubmittedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
