package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"board-game-suggestor/internal/model"
)

// MechanicRepository handles game mechanic tags and the per-game fetch stamp.
type MechanicRepository struct {
	pool *pgxpool.Pool
}

// NewMechanicRepository creates a new MechanicRepository instance.
func NewMechanicRepository(pool *pgxpool.Pool) *MechanicRepository {
	return &MechanicRepository{pool: pool}
}

const upsertMechanicSQL = `
	INSERT INTO game_mechanics (game_bgg_id, mechanic_name, created_at, updated_at)
	VALUES ($1, $2, NOW(), NOW())
	ON CONFLICT (game_bgg_id, mechanic_name) DO UPDATE
	SET updated_at = NOW()
`

// ReplaceMechanics stores each set as the complete mechanic list of its game
// and stamps the game as fetched. Every game is written in its own
// transaction, so a set is never half-applied; a game without a row is
// rejected with ErrGameNotFound. It returns the number of tags written
// before the first failure.
func (r *MechanicRepository) ReplaceMechanics(ctx context.Context, sets []model.MechanicSet) (int, error) {
	written := 0
	for _, set := range sets {
		err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				UPDATE games
				SET mechanics_fetched_at = NOW(), updated_at = NOW()
				WHERE bgg_id = $1
			`, set.GameBggID)
			if err != nil {
				return fmt.Errorf("failed to stamp game: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrGameNotFound
			}

			if _, err := tx.Exec(ctx, `
				DELETE FROM game_mechanics
				WHERE game_bgg_id = $1 AND NOT (mechanic_name = ANY($2))
			`, set.GameBggID, nonNil(set.Names)); err != nil {
				return fmt.Errorf("failed to clear stale mechanics: %w", err)
			}

			b := &pgx.Batch{}
			for _, name := range set.Names {
				b.Queue(upsertMechanicSQL, set.GameBggID, name)
			}
			if _, err := execBatch(ctx, tx, b); err != nil {
				return fmt.Errorf("failed to insert mechanics: %w", err)
			}
			return nil
		})
		if err != nil {
			return written, fmt.Errorf("failed to replace mechanics of game %d: %w", set.GameBggID, err)
		}
		written += len(set.Names)
	}
	return written, nil
}

// FindByGameIDs returns the mechanic tags of the given games, ordered by
// game then name.
func (r *MechanicRepository) FindByGameIDs(ctx context.Context, ids []int64) ([]model.GameMechanic, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT game_bgg_id, mechanic_name, created_at, updated_at
		FROM game_mechanics
		WHERE game_bgg_id = ANY($1)
		ORDER BY game_bgg_id, mechanic_name
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get game mechanics: %w", err)
	}

	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GameMechanic, error) {
		var m model.GameMechanic
		err := row.Scan(&m.GameBggID, &m.MechanicName, &m.CreatedAt, &m.UpdatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan game mechanic: %w", err)
	}
	return links, nil
}

// nonNil keeps an empty list from being sent as SQL NULL, which would make
// "= ANY($n)" unknown instead of false.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
