package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container with the schema applied.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func ptr[T any](v T) *T { return &v }

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Alice", user.UserName)
	assert.Nil(t, user.LastSyncedAt)

	_, created, err = repo.GetOrCreate(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, created)

	// Names are case-sensitive
	_, created, err = repo.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, 2, countRows(t, pool, "users"))
}

func TestUserRepository_GetByName_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewUserRepository(pool).GetByName(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_MarkSyncedAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	for _, name := range []string{"carol", "bob", "alice"} {
		_, _, err := repo.GetOrCreate(ctx, name)
		require.NoError(t, err)
	}
	require.NoError(t, repo.MarkSynced(ctx, "alice"))
	assert.ErrorIs(t, repo.MarkSynced(ctx, "ghost"), ErrUserNotFound)

	user, err := repo.GetByName(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, user.LastSyncedAt)

	names, err := repo.ListUserNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "alice"}, names, "never-synced users first")
}

// ============================================================================
// CollectionRepository Tests
// ============================================================================

func TestCollectionRepository_ReplaceIsIdempotentAndPrunes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCollectionRepository(pool)
	ctx := context.Background()

	entries := []model.CollectionEntry{
		{UserName: "alice", BggID: 13, GameName: "CATAN", UserRating: "8"},
		{UserName: "alice", BggID: 822, GameName: "Carcassonne", UserRating: "0"},
	}

	for i := 0; i < 2; i++ {
		saved, removed, err := repo.ReplaceCollection(ctx, "alice", entries)
		require.NoError(t, err)
		assert.Equal(t, 2, saved)
		assert.Zero(t, removed)
	}
	assert.Equal(t, 2, countRows(t, pool, "collection_entries"))

	// Rating changed upstream and 822 left the collection
	saved, removed, err := repo.ReplaceCollection(ctx, "alice", []model.CollectionEntry{
		{UserName: "alice", BggID: 13, GameName: "CATAN", UserRating: "9"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, removed)

	got, err := repo.FindByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "9", got[0].UserRating)
}

func TestCollectionRepository_ReplaceDoesNotTouchOtherUsers(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCollectionRepository(pool)
	ctx := context.Background()

	_, _, err := repo.ReplaceCollection(ctx, "bob", []model.CollectionEntry{{BggID: 13, GameName: "CATAN", UserRating: "7"}})
	require.NoError(t, err)
	_, _, err = repo.ReplaceCollection(ctx, "alice", nil)
	require.NoError(t, err)

	got, err := repo.FindByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCollectionRepository_CollectionView(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	collections := NewCollectionRepository(pool)
	games := NewGameRepository(pool)
	mechanics := NewMechanicRepository(pool)

	_, _, err := collections.ReplaceCollection(ctx, "alice", []model.CollectionEntry{
		{BggID: 13, GameName: "Catan (old title)", UserRating: "8"},
		{BggID: 822, GameName: "Carcassonne", UserRating: "0"},
	})
	require.NoError(t, err)

	_, err = games.UpsertGames(ctx, []model.Game{{
		BggID:         13,
		GameName:      "CATAN",
		Link:          "https://boardgamegeek.com/boardgame/13",
		ImageLink:     "https://img/13.jpg",
		AverageRating: ptr(7.09),
		YearPublished: ptr(1995),
	}})
	require.NoError(t, err)
	_, err = mechanics.ReplaceMechanics(ctx, []model.MechanicSet{{GameBggID: 13, Names: []string{"Trading", "Dice Rolling"}}})
	require.NoError(t, err)

	view, err := collections.CollectionView(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, view, 2)

	byID := make(map[int64]model.CollectionGame, len(view))
	for _, g := range view {
		byID[g.BggID] = g
	}

	catan := byID[13]
	assert.Equal(t, "CATAN", catan.GameName, "game row is the source of truth for the name")
	assert.Equal(t, "8", catan.UserRating)
	require.NotNil(t, catan.AverageRating)
	assert.InDelta(t, 7.09, *catan.AverageRating, 1e-9)
	assert.Equal(t, []string{"Dice Rolling", "Trading"}, catan.Mechanics)

	pending := byID[822]
	assert.Equal(t, "Carcassonne", pending.GameName)
	assert.Nil(t, pending.AverageRating)
	assert.Empty(t, pending.Link)
	assert.NotNil(t, pending.Mechanics)
	assert.Empty(t, pending.Mechanics)

	empty, err := collections.CollectionView(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// ============================================================================
// GameRepository and MechanicRepository Tests
// ============================================================================

func TestGameRepository_UpsertAndFind(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGameRepository(pool)
	ctx := context.Background()

	games := []model.Game{
		{BggID: 13, GameName: "CATAN", Link: "l/13", AverageRating: ptr(0.0)},
		{BggID: 822, GameName: "Carcassonne", Link: "l/822"},
	}
	for i := 0; i < 2; i++ {
		n, err := repo.UpsertGames(ctx, games)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, 2, countRows(t, pool, "games"))

	g, err := repo.FindGameByID(ctx, 13)
	require.NoError(t, err)
	require.NotNil(t, g.AverageRating, "zero average is stored, not nulled")
	assert.Equal(t, 0.0, *g.AverageRating)
	assert.Nil(t, g.MechanicsFetchedAt)

	_, err = repo.FindGameByID(ctx, 1)
	assert.ErrorIs(t, err, ErrGameNotFound)

	existing, err := repo.FindExistingIDs(ctx, []int64{1, 13, 822})
	require.NoError(t, err)
	assert.Equal(t, []int64{13, 822}, existing)

	found, err := repo.FindGamesByIDs(ctx, []int64{822, 5})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Nil(t, found[0].AverageRating)
}

func TestMechanicRepository_TriState(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	games := NewGameRepository(pool)
	mechanics := NewMechanicRepository(pool)

	_, err := games.UpsertGames(ctx, []model.Game{
		{BggID: 1, GameName: "One", Link: "l/1"},
		{BggID: 2, GameName: "Two", Link: "l/2"},
		{BggID: 3, GameName: "Three", Link: "l/3"},
	})
	require.NoError(t, err)

	written, err := mechanics.ReplaceMechanics(ctx, []model.MechanicSet{
		{GameBggID: 1, Names: []string{"Auction"}},
		{GameBggID: 2, Names: []string{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	need, err := games.FindGamesNeedingMechanics(ctx, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, need)

	two, err := games.FindGameByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.MechanicsFetchedEmpty, two.MechanicState(0))

	// Replacing drops tags that are no longer listed
	_, err = mechanics.ReplaceMechanics(ctx, []model.MechanicSet{{GameBggID: 1, Names: []string{"Bidding"}}})
	require.NoError(t, err)
	links, err := mechanics.FindByGameIDs(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Bidding", links[0].MechanicName)

	_, err = mechanics.ReplaceMechanics(ctx, []model.MechanicSet{{GameBggID: 99, Names: []string{"Orphan"}}})
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.Equal(t, 1, countRows(t, pool, "game_mechanics"))
}

// ============================================================================
// UserMechanicRepository Tests
// ============================================================================

func TestUserMechanicRepository_ReplaceRecomputes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserMechanicRepository(pool)
	ctx := context.Background()

	_, err := repo.ReplaceUserMechanicStats(ctx, "alice", []model.UserMechanicStat{
		{MechanicName: "Auction", AverageRating: 6.5, GameCount: 2},
		{MechanicName: "Worker Placement", AverageRating: 7, GameCount: 2},
	})
	require.NoError(t, err)

	n, err := repo.ReplaceUserMechanicStats(ctx, "alice", []model.UserMechanicStat{
		{MechanicName: "Worker Placement", AverageRating: 8.25, GameCount: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := repo.FindByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Worker Placement", stats[0].MechanicName)
	assert.InDelta(t, 8.25, stats[0].AverageRating, 1e-9)
	assert.Equal(t, 4, stats[0].GameCount)
}
