package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruralhealth/screening-api/internal/domain"
)

// PersonRepository reads the resident registry. People are created by the
// enumeration workflow; this service never writes them.
type PersonRepository interface {
	// FindByID returns the person, or nil if no such person exists.
	FindByID(ctx context.Context, id int64) (*domain.Person, error)
}

type PersonRepoImpl struct{ pool *pgxpool.Pool }

func NewPersonRepo(pool *pgxpool.Pool) *PersonRepoImpl { return &PersonRepoImpl{pool: pool} }

func (r *PersonRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Person, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p domain.Person
	err := r.pool.QueryRow(ctx, `
SELECT id, household_id, village_id, full_name, COALESCE(sex, ''), COALESCE(phone, ''), created_at, updated_at
FROM people
WHERE id = $1
`, id).Scan(&p.ID, &p.HouseholdID, &p.VillageID, &p.FullName, &p.Sex, &p.Phone, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
