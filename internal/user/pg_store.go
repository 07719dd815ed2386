package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/physioflow/billing/pkg/pg"
)

// PGStore is the PostgreSQL-backed user store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const userColumns = `id, email, role, locale, stripe_customer_id, created_at, updated_at`

func (s *PGStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID)
	return scanUser(row)
}

func (s *PGStore) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1`,
		id, customerID)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.Locale, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
