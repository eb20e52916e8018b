package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Repository persists users in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByEmail fetches an account by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, nama_lengkap, email, no_hp, password_hash, is_active, created_at
FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.NamaLengkap, &u.Email, &u.NoHP, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, namaLengkap, email, noHP, passwordHash string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (nama_lengkap, email, no_hp, password_hash, is_active, created_at)
VALUES ($1,$2,$3,$4,TRUE,NOW()) RETURNING id`, namaLengkap, email, noHP, passwordHash).Scan(&id)
	return id, err
}
