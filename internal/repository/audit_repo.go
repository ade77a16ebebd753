package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruralhealth/screening-api/internal/domain"
)

// AuditRepository appends to the immutable audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, entry domain.AuditEntry) error
}

type AuditRepoImpl struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepoImpl { return &AuditRepoImpl{pool: pool} }

func (r *AuditRepoImpl) Insert(ctx context.Context, entry domain.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO audit_logs (actor_worker_id, actor_person_id, action, entity, entity_id, meta_json)
VALUES ($1, $2, $3, $4, $5, $6)
`, entry.ActorWorkerID, entry.ActorPersonID, entry.Action, entry.Entity, entry.EntityID, meta)
	return err
}
