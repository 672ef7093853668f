package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-portal/internal/domain"
)

// OutletRepository stores the sites owned by account holders.
type OutletRepository interface {
	Create(ctx context.Context, outlet *domain.Outlet) error
	GetByID(ctx context.Context, id string) (*domain.Outlet, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Outlet, error)
}

type outletRepository struct {
	pool *pgxpool.Pool
}

// NewOutletRepository returns a Postgres-backed implementation.
func NewOutletRepository(pool *pgxpool.Pool) OutletRepository {
	return &outletRepository{pool: pool}
}

func (r *outletRepository) Create(ctx context.Context, outlet *domain.Outlet) error {
	const query = `
        INSERT INTO outlets (user_id, name, address, lat, lng)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		outlet.UserID,
		outlet.Name,
		outlet.Address,
		outlet.Location.Lat,
		outlet.Location.Lng,
	).Scan(&outlet.ID, &outlet.CreatedAt)
}

func (r *outletRepository) GetByID(ctx context.Context, id string) (*domain.Outlet, error) {
	const query = `SELECT id, user_id, name, address, lat, lng, created_at FROM outlets WHERE id=$1`
	var outlet domain.Outlet
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&outlet.ID,
		&outlet.UserID,
		&outlet.Name,
		&outlet.Address,
		&outlet.Location.Lat,
		&outlet.Location.Lng,
		&outlet.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &outlet, nil
}

func (r *outletRepository) ListByUser(ctx context.Context, userID string) ([]domain.Outlet, error) {
	const query = `
        SELECT id, user_id, name, address, lat, lng, created_at
        FROM outlets WHERE user_id=$1 ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Outlet
	for rows.Next() {
		var outlet domain.Outlet
		if err := rows.Scan(
			&outlet.ID,
			&outlet.UserID,
			&outlet.Name,
			&outlet.Address,
			&outlet.Location.Lat,
			&outlet.Location.Lng,
			&outlet.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, outlet)
	}
	return result, rows.Err()
}
