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

// VerifyRepository owns TOTP secret rows and verification tokens.
type VerifyRepository interface {
	// GetSecret returns a person's secret row, or nil if never provisioned.
	GetSecret(ctx context.Context, personID int64) (*domain.TOTPSecret, error)
	// CreateSecret inserts a freshly provisioned secret with the replay
	// watermark at zero.
	CreateSecret(ctx context.Context, personID int64, encrypted []byte) error
	// MarkProvisioned re-marks provisioning done on an existing secret.
	MarkProvisioned(ctx context.Context, personID int64) error
	// RecordVerification advances the person's replay watermark to timestep
	// and issues a verification token for the encounter, atomically. Returns
	// domain.ErrReplayDetected if the watermark is already at or past
	// timestep; in that case nothing is written.
	RecordVerification(ctx context.Context, personID, timestep, encounterID int64, token string, expiresAt time.Time) error
}

type VerifyRepoImpl struct{ pool *pgxpool.Pool }

func NewVerifyRepo(pool *pgxpool.Pool) *VerifyRepoImpl { return &VerifyRepoImpl{pool: pool} }

func (r *VerifyRepoImpl) GetSecret(ctx context.Context, personID int64) (*domain.TOTPSecret, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.TOTPSecret
	err := r.pool.QueryRow(ctx, `
SELECT person_id, secret_encrypted, provisioning_done, last_verified_timestep, created_at, updated_at
FROM totp_secrets
WHERE person_id = $1
`, personID).Scan(&s.PersonID, &s.SecretEncrypted, &s.ProvisioningDone, &s.LastVerifiedTimestep, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *VerifyRepoImpl) CreateSecret(ctx context.Context, personID int64, encrypted []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
INSERT INTO totp_secrets (person_id, secret_encrypted, provisioning_done, last_verified_timestep)
VALUES ($1, $2, true, 0)
`, personID, encrypted)
	return err
}

func (r *VerifyRepoImpl) MarkProvisioned(ctx context.Context, personID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
UPDATE totp_secrets
SET provisioning_done = true, updated_at = now()
WHERE person_id = $1
`, personID)
	return err
}

func (r *VerifyRepoImpl) RecordVerification(ctx context.Context, personID, timestep, encounterID int64, token string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Compare-and-set on the watermark: two racing verifications for the same
	// person at the same step cannot both pass.
	tag, err := tx.Exec(ctx, `
UPDATE totp_secrets
SET last_verified_timestep = $2, updated_at = now()
WHERE person_id = $1 AND last_verified_timestep < $2
`, personID, timestep)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReplayDetected
	}

	_, err = tx.Exec(ctx, `
INSERT INTO verification_tokens (encounter_id, token, expires_at, used)
VALUES ($1, $2, $3, false)
`, encounterID, token, expiresAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
