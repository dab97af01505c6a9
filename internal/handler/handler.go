// Package handler provides the HTTP API consumed by the browser client.
package handler

import (
	"context"

	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/service"
)

// Importer runs the collection ingestion pipeline for one user.
type Importer interface {
	Run(ctx context.Context, userName string) (*model.RunReport, error)
}

// CollectionReader serves persisted collections, games and statistics.
type CollectionReader interface {
	GetCollection(ctx context.Context, userName string, opts service.SortOptions) (*model.CollectionView, error)
	GetUserMechanics(ctx context.Context, userName string) ([]model.UserMechanicStat, error)
	GetGame(ctx context.Context, id int64) (*model.GameDetail, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter exposes the catalog circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// Handler serves the collection API.
type Handler struct {
	importer Importer
	reader   CollectionReader
	db       Pinger
	breaker  BreakerReporter
	version  string

	// runCtx bounds pipeline runs started over HTTP. Runs outlive the
	// request but not the process.
	runCtx context.Context
}

// Deps bundles the collaborators of a Handler.
type Deps struct {
	Importer Importer
	Reader   CollectionReader
	DB       Pinger
	Breaker  BreakerReporter
	Version  string
}

// New creates a new Handler. Pipeline runs started through it are canceled
// when runCtx is done.
func New(runCtx context.Context, deps Deps) *Handler {
	if runCtx == nil {
		runCtx = context.Background()
	}
	return &Handler{
		importer: deps.Importer,
		reader:   deps.Reader,
		db:       deps.DB,
		breaker:  deps.Breaker,
		version:  deps.Version,
		runCtx:   runCtx,
	}
}
