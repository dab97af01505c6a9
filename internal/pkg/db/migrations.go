package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

// No foreign keys: a collection entry is written before its game exists,
// and referential ordering is enforced by the pipeline.
var migrations = []migration{
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			user_name VARCHAR(255) PRIMARY KEY,
			last_synced_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"collection_entries table", `
		CREATE TABLE IF NOT EXISTS collection_entries (
			user_name VARCHAR(255) NOT NULL,
			bgg_id BIGINT NOT NULL,
			game_name TEXT NOT NULL,
			user_rating VARCHAR(16) NOT NULL DEFAULT '0',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_name, bgg_id)
		);
		CREATE INDEX IF NOT EXISTS idx_collection_entries_bgg_id ON collection_entries(bgg_id);
	`},
	{"games table", `
		CREATE TABLE IF NOT EXISTS games (
			bgg_id BIGINT PRIMARY KEY,
			game_name TEXT NOT NULL,
			link TEXT NOT NULL,
			image_link TEXT NOT NULL DEFAULT '',
			average_rating NUMERIC(4, 2),
			year_published INT,
			min_players INT,
			max_players INT,
			playing_time INT,
			mechanics_fetched_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"game_mechanics table", `
		CREATE TABLE IF NOT EXISTS game_mechanics (
			game_bgg_id BIGINT NOT NULL,
			mechanic_name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (game_bgg_id, mechanic_name)
		);
		CREATE INDEX IF NOT EXISTS idx_game_mechanics_name ON game_mechanics(mechanic_name);
	`},
	{"user_mechanic_stats table", `
		CREATE TABLE IF NOT EXISTS user_mechanic_stats (
			user_name VARCHAR(255) NOT NULL,
			mechanic_name VARCHAR(255) NOT NULL,
			average_rating NUMERIC(4, 2) NOT NULL,
			game_count INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_name, mechanic_name)
		);
	`},
}

// Migrate creates the schema. Every statement is idempotent, so it runs on
// each startup.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
