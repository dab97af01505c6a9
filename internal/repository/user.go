// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"board-game-suggestor/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrGameNotFound = errors.New("game not found")
)

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `user_name, last_synced_at, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UserName,
		&user.LastSyncedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a user. It returns pgx.ErrNoRows, wrapped, if the user
// already exists.
func (r *UserRepository) Create(ctx context.Context, userName string) (*model.User, error) {
	const query = `
		INSERT INTO users (user_name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (user_name) DO NOTHING
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, userName))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByName retrieves a user by exact, case-sensitive name.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByName(ctx context.Context, userName string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_name = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, userName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by name, creating one if it doesn't exist.
// The boolean reports whether the user was created by this call.
func (r *UserRepository) GetOrCreate(ctx context.Context, userName string) (*model.User, bool, error) {
	user, err := r.GetByName(ctx, userName)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, userName)
	if err != nil {
		// Handle race condition: another run might have created the user
		user, err = r.GetByName(ctx, userName)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// MarkSynced records that a pipeline run for the user completed.
func (r *UserRepository) MarkSynced(ctx context.Context, userName string) error {
	const query = `
		UPDATE users
		SET last_synced_at = NOW(), updated_at = NOW()
		WHERE user_name = $1
	`

	result, err := r.pool.Exec(ctx, query, userName)
	if err != nil {
		return fmt.Errorf("failed to mark user synced: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUserNames returns all user names, least recently synced first.
func (r *UserRepository) ListUserNames(ctx context.Context) ([]string, error) {
	const query = `
		SELECT user_name
		FROM users
		ORDER BY last_synced_at ASC NULLS FIRST, user_name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan user names: %w", err)
	}
	return names, nil
}
