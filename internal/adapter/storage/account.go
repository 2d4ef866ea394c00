package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create opens a new ACTIVE account for the user.
func (r *AccountRepository) Create(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (user_id)
		VALUES ($1)
		RETURNING id, user_id, status, created_at
	`
	var acc domain.Account
	err := r.db.QueryRow(ctx, query, userID).Scan(&acc.ID, &acc.UserID, &acc.Status, &acc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &acc, nil
}

// FindByID returns the account, or (nil, nil) when it does not exist.
func (r *AccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, user_id, status, created_at FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRow(ctx, query, id))
}

// FindByUser lists all accounts owned by the user.
func (r *AccountRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT id, user_id, status, created_at FROM accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.Status, &acc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to read account: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// FindSystemByUser returns the system user's funding account: the oldest
// account owned by them. Returns (nil, nil) when they own none.
func (r *AccountRepository) FindSystemByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, user_id, status, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, userID))
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(&acc.ID, &acc.UserID, &acc.Status, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return &acc, nil
}
