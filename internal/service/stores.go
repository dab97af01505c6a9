package service

import (
	"context"

	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/model"
)

// UserStore persists users.
type UserStore interface {
	GetByName(ctx context.Context, userName string) (*model.User, error)
	GetOrCreate(ctx context.Context, userName string) (*model.User, bool, error)
	MarkSynced(ctx context.Context, userName string) error
	ListUserNames(ctx context.Context) ([]string, error)
}

// CollectionStore persists collection entries.
type CollectionStore interface {
	ReplaceCollection(ctx context.Context, userName string, entries []model.CollectionEntry) (saved, removed int, err error)
	FindByUser(ctx context.Context, userName string) ([]model.CollectionEntry, error)
	CollectionView(ctx context.Context, userName string) ([]model.CollectionGame, error)
}

// GameStore persists games.
type GameStore interface {
	UpsertGames(ctx context.Context, games []model.Game) (int, error)
	FindGameByID(ctx context.Context, id int64) (*model.Game, error)
	FindExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	FindGamesNeedingMechanics(ctx context.Context, ids []int64) ([]int64, error)
}

// MechanicStore persists game mechanic tags.
type MechanicStore interface {
	ReplaceMechanics(ctx context.Context, sets []model.MechanicSet) (int, error)
	FindByGameIDs(ctx context.Context, ids []int64) ([]model.GameMechanic, error)
}

// StatStore persists per-user mechanic statistics.
type StatStore interface {
	ReplaceUserMechanicStats(ctx context.Context, userName string, stats []model.UserMechanicStat) (int, error)
	FindByUser(ctx context.Context, userName string) ([]model.UserMechanicStat, error)
}

// Stores bundles the persistence dependencies of the services.
type Stores struct {
	Users       UserStore
	Collections CollectionStore
	Games       GameStore
	Mechanics   MechanicStore
	Stats       StatStore
}

// CatalogClient fetches data from the external catalog.
type CatalogClient interface {
	FetchCollection(ctx context.Context, userName string) (*catalog.CollectionPayload, error)
	FetchItems(ctx context.Context, ids []int64) (*catalog.ThingPayload, error)
}
