package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruralhealth/screening-api/internal/domain"
)

// WorkerRepository reads staff accounts for login and principal resolution.
type WorkerRepository interface {
	// FindByUsername returns an active worker, or nil if none matches.
	FindByUsername(ctx context.Context, username string) (*domain.Worker, error)
	FindByID(ctx context.Context, id int64) (*domain.Worker, error)
}

type WorkerRepoImpl struct{ pool *pgxpool.Pool }

func NewWorkerRepo(pool *pgxpool.Pool) *WorkerRepoImpl { return &WorkerRepoImpl{pool: pool} }

const workerColumns = `id, username, password_hash, role, COALESCE(display_name, ''), COALESCE(phone, ''), is_active, created_at, updated_at`

func (r *WorkerRepoImpl) FindByUsername(ctx context.Context, username string) (*domain.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var w domain.Worker
	err := r.pool.QueryRow(ctx, `
SELECT `+workerColumns+`
FROM workers
WHERE username = $1 AND is_active = true
`, username).Scan(&w.ID, &w.Username, &w.PasswordHash, &w.Role, &w.DisplayName, &w.Phone, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WorkerRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var w domain.Worker
	err := r.pool.QueryRow(ctx, `
SELECT `+workerColumns+`
FROM workers
WHERE id = $1
`, id).Scan(&w.ID, &w.Username, &w.PasswordHash, &w.Role, &w.DisplayName, &w.Phone, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
