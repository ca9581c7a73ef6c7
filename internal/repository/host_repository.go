package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// HostRepository handles host account data access.
type HostRepository struct {
	pool *pgxpool.Pool
}

// NewHostRepository creates a new HostRepository.
func NewHostRepository(pool *pgxpool.Pool) *HostRepository {
	return &HostRepository{pool: pool}
}

// GetByEmail retrieves a host by email.
func (r *HostRepository) GetByEmail(ctx context.Context, email string) (*model.Host, error) {
	h := &model.Host{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM hosts WHERE email = $1`, email,
	).Scan(&h.ID, &h.Email, &h.Name, &h.PasswordHash, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetByID retrieves a host by id.
func (r *HostRepository) GetByID(ctx context.Context, id int) (*model.Host, error) {
	h := &model.Host{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at
		 FROM hosts WHERE id = $1`, id,
	).Scan(&h.ID, &h.Email, &h.Name, &h.PasswordHash, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Create inserts a new host account.
func (r *HostRepository) Create(ctx context.Context, h *model.Host) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO hosts (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		h.Email, h.Name, h.PasswordHash,
	).Scan(&h.ID, &h.CreatedAt)
}
