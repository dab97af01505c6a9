package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"board-game-suggestor/internal/model"
)

// CollectionRepository handles collection entry persistence and the joined
// collection view.
type CollectionRepository struct {
	pool *pgxpool.Pool
}

// NewCollectionRepository creates a new CollectionRepository instance.
func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{pool: pool}
}

const upsertEntrySQL = `
	INSERT INTO collection_entries (user_name, bgg_id, game_name, user_rating, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (user_name, bgg_id) DO UPDATE
	SET game_name = EXCLUDED.game_name,
		user_rating = EXCLUDED.user_rating,
		updated_at = NOW()
`

// ReplaceCollection makes entries the user's complete collection in one
// transaction: every entry is upserted and entries whose id is no longer
// listed are removed. It returns the number of entries written and removed.
func (r *CollectionRepository) ReplaceCollection(ctx context.Context, userName string, entries []model.CollectionEntry) (saved, removed int, err error) {
	ids := make([]int64, 0, len(entries))
	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(upsertEntrySQL, userName, e.BggID, e.GameName, e.UserRating)
		ids = append(ids, e.BggID)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := execBatch(ctx, tx, b); err != nil {
			return fmt.Errorf("failed to upsert collection entries: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM collection_entries
			WHERE user_name = $1 AND NOT (bgg_id = ANY($2))
		`, userName, ids)
		if err != nil {
			return fmt.Errorf("failed to prune collection entries: %w", err)
		}
		removed = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return len(entries), removed, nil
}

// FindByUser returns the user's collection ordered by id.
func (r *CollectionRepository) FindByUser(ctx context.Context, userName string) ([]model.CollectionEntry, error) {
	const query = `
		SELECT user_name, bgg_id, game_name, user_rating, created_at, updated_at
		FROM collection_entries
		WHERE user_name = $1
		ORDER BY bgg_id
	`

	rows, err := r.pool.Query(ctx, query, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CollectionEntry, error) {
		var e model.CollectionEntry
		err := row.Scan(&e.UserName, &e.BggID, &e.GameName, &e.UserRating, &e.CreatedAt, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection entry: %w", err)
	}
	return entries, nil
}

// CollectionView returns the display rows of the user's collection, joining
// each entry with its game and mechanic names. Entries whose game has not
// been fetched yet carry the entry's own name and no game details. Rows are
// ordered by name then id.
func (r *CollectionRepository) CollectionView(ctx context.Context, userName string) ([]model.CollectionGame, error) {
	const query = `
		SELECT
			ce.bgg_id,
			COALESCE(g.game_name, ce.game_name) AS game_name,
			COALESCE(g.link, ''),
			COALESCE(g.image_link, ''),
			ce.user_rating,
			g.average_rating,
			g.year_published,
			g.min_players,
			g.max_players,
			g.playing_time,
			COALESCE(
				(SELECT array_agg(gm.mechanic_name::text ORDER BY gm.mechanic_name)
				 FROM game_mechanics gm
				 WHERE gm.game_bgg_id = ce.bgg_id),
				'{}'::text[]
			)
		FROM collection_entries ce
		LEFT JOIN games g ON g.bgg_id = ce.bgg_id
		WHERE ce.user_name = $1
		ORDER BY game_name, ce.bgg_id
	`

	rows, err := r.pool.Query(ctx, query, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection view: %w", err)
	}

	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CollectionGame, error) {
		var g model.CollectionGame
		err := row.Scan(
			&g.BggID,
			&g.GameName,
			&g.Link,
			&g.ImageLink,
			&g.UserRating,
			&g.AverageRating,
			&g.YearPublished,
			&g.MinPlayers,
			&g.MaxPlayers,
			&g.PlayingTime,
			&g.Mechanics,
		)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection view row: %w", err)
	}
	return games, nil
}
