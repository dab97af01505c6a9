package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"board-game-suggestor/internal/model"
)

// GameRepository handles game persistence. Games are shared by all users.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

const gameColumns = `bgg_id, game_name, link, image_link, average_rating,
	year_published, min_players, max_players, playing_time,
	mechanics_fetched_at, created_at, updated_at`

// The mechanics stamp is owned by MechanicRepository and left untouched here.
const upsertGameSQL = `
	INSERT INTO games (bgg_id, game_name, link, image_link, average_rating,
		year_published, min_players, max_players, playing_time, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	ON CONFLICT (bgg_id) DO UPDATE
	SET game_name = EXCLUDED.game_name,
		link = EXCLUDED.link,
		image_link = EXCLUDED.image_link,
		average_rating = EXCLUDED.average_rating,
		year_published = EXCLUDED.year_published,
		min_players = EXCLUDED.min_players,
		max_players = EXCLUDED.max_players,
		playing_time = EXCLUDED.playing_time,
		updated_at = NOW()
`

func gameArgs(g model.Game) []any {
	return []any{
		g.BggID, g.GameName, g.Link, g.ImageLink, g.AverageRating,
		g.YearPublished, g.MinPlayers, g.MaxPlayers, g.PlayingTime,
	}
}

func scanGame(row pgx.Row) (model.Game, error) {
	var g model.Game
	err := row.Scan(
		&g.BggID,
		&g.GameName,
		&g.Link,
		&g.ImageLink,
		&g.AverageRating,
		&g.YearPublished,
		&g.MinPlayers,
		&g.MaxPlayers,
		&g.PlayingTime,
		&g.MechanicsFetchedAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

// UpsertGames writes all games in one round trip and returns how many rows
// were written.
func (r *GameRepository) UpsertGames(ctx context.Context, games []model.Game) (int, error) {
	b := &pgx.Batch{}
	for _, g := range games {
		b.Queue(upsertGameSQL, gameArgs(g)...)
	}

	n, err := execBatch(ctx, r.pool, b)
	if err != nil {
		return int(n), fmt.Errorf("failed to upsert games: %w", err)
	}
	return int(n), nil
}

// FindGameByID retrieves a game by id.
// Returns ErrGameNotFound if the game does not exist.
func (r *GameRepository) FindGameByID(ctx context.Context, id int64) (*model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE bgg_id = $1`

	g, err := scanGame(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &g, nil
}

// FindGamesByIDs returns the persisted games among ids, in id order.
func (r *GameRepository) FindGamesByIDs(ctx context.Context, ids []int64) ([]model.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE bgg_id = ANY($1) ORDER BY bgg_id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}

	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Game, error) {
		return scanGame(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	return games, nil
}

// FindExistingIDs returns the ids among ids that already have a game row.
func (r *GameRepository) FindExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return r.collectIDs(ctx, `SELECT bgg_id FROM games WHERE bgg_id = ANY($1) ORDER BY bgg_id`, ids)
}

// FindGamesNeedingMechanics returns the ids among ids whose game row exists
// but whose mechanics have never been fetched.
func (r *GameRepository) FindGamesNeedingMechanics(ctx context.Context, ids []int64) ([]int64, error) {
	return r.collectIDs(ctx, `
		SELECT bgg_id FROM games
		WHERE bgg_id = ANY($1) AND mechanics_fetched_at IS NULL
		ORDER BY bgg_id
	`, ids)
}

func (r *GameRepository) collectIDs(ctx context.Context, query string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query game ids: %w", err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan game id: %w", err)
	}
	return found, nil
}
