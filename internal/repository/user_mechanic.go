package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"board-game-suggestor/internal/model"
)

// UserMechanicRepository handles per-user mechanic statistics.
type UserMechanicRepository struct {
	pool *pgxpool.Pool
}

// NewUserMechanicRepository creates a new UserMechanicRepository instance.
func NewUserMechanicRepository(pool *pgxpool.Pool) *UserMechanicRepository {
	return &UserMechanicRepository{pool: pool}
}

const upsertStatSQL = `
	INSERT INTO user_mechanic_stats (user_name, mechanic_name, average_rating, game_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (user_name, mechanic_name) DO UPDATE
	SET average_rating = EXCLUDED.average_rating,
		game_count = EXCLUDED.game_count,
		updated_at = NOW()
`

// ReplaceUserMechanicStats makes stats the user's complete statistics in one
// transaction. Rows for mechanics absent from stats are deleted.
func (r *UserMechanicRepository) ReplaceUserMechanicStats(ctx context.Context, userName string, stats []model.UserMechanicStat) (int, error) {
	names := make([]string, 0, len(stats))
	b := &pgx.Batch{}
	for _, s := range stats {
		b.Queue(upsertStatSQL, userName, s.MechanicName, s.AverageRating, s.GameCount)
		names = append(names, s.MechanicName)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := execBatch(ctx, tx, b); err != nil {
			return fmt.Errorf("failed to upsert user mechanic stats: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM user_mechanic_stats
			WHERE user_name = $1 AND NOT (mechanic_name = ANY($2))
		`, userName, names); err != nil {
			return fmt.Errorf("failed to prune user mechanic stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stats), nil
}

// FindByUser returns the user's statistics, highest average first.
func (r *UserMechanicRepository) FindByUser(ctx context.Context, userName string) ([]model.UserMechanicStat, error) {
	const query = `
		SELECT user_name, mechanic_name, average_rating, game_count, created_at, updated_at
		FROM user_mechanic_stats
		WHERE user_name = $1
		ORDER BY average_rating DESC, game_count DESC, mechanic_name ASC
	`

	rows, err := r.pool.Query(ctx, query, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to get user mechanic stats: %w", err)
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.UserMechanicStat, error) {
		var s model.UserMechanicStat
		err := row.Scan(&s.UserName, &s.MechanicName, &s.AverageRating, &s.GameCount, &s.CreatedAt, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan user mechanic stat: %w", err)
	}
	return stats, nil
}
