package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"board-game-suggestor/internal/aggregate"
	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/metrics"
	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/normalize"
	"board-game-suggestor/internal/pkg/lock"
	"board-game-suggestor/internal/reconcile"
)

const (
	stageGames     = "games"
	stageMechanics = "mechanics"
)

// PipelineOptions tunes a Pipeline.
type PipelineOptions struct {
	BatchSize    int
	GameLinkBase string
}

// Pipeline imports one user's collection end to end: collection, game
// details, mechanics, then per-user mechanic statistics. Stages run
// strictly in order and batches run one at a time.
type Pipeline struct {
	stores    Stores
	client    CatalogClient
	pacer     reconcile.Pacer
	locks     *lock.KeyedLock
	batchSize int
	linkBase  string
	now       func() time.Time
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(stores Stores, client CatalogClient, pacer reconcile.Pacer, locks *lock.KeyedLock, opts PipelineOptions) *Pipeline {
	if locks == nil {
		locks = lock.NewKeyedLock()
	}
	return &Pipeline{
		stores:    stores,
		client:    client,
		pacer:     pacer,
		locks:     locks,
		batchSize: opts.BatchSize,
		linkBase:  opts.GameLinkBase,
		now:       time.Now,
	}
}

// Run executes a full import for userName.
//
// A pending catalog reply ends the run with status pending and a nil error;
// nothing is persisted. A failure of the collection fetch aborts the run
// and is returned. Failed item batches are counted in the report and do not
// fail the run. Returns ErrInvalidUserName before any work and
// ErrRunInProgress when a run for the same user is active.
func (p *Pipeline) Run(ctx context.Context, userName string) (*model.RunReport, error) {
	if err := validateUserName(userName); err != nil {
		return nil, err
	}

	var report *model.RunReport
	err := p.locks.TryWithLock(userName, func() error {
		var err error
		report, err = p.runExclusive(ctx, userName)
		return err
	})
	if errors.Is(err, lock.ErrLocked) {
		return nil, ErrRunInProgress
	}
	return report, err
}

// runExclusive runs the pipeline while the caller holds the user's lock.
func (p *Pipeline) runExclusive(ctx context.Context, userName string) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     uuid.NewString(),
		UserName:  userName,
		State:     model.StateStart,
		StartedAt: p.now(),
	}

	logger := log.With().
		Str("run_id", report.RunID).
		Str("user_name", userName).
		Logger()
	ctx = logger.WithContext(ctx)

	metrics.PipelineRunsInProgress.Inc()
	defer metrics.PipelineRunsInProgress.Dec()

	logger.Info().Msg("Pipeline run started")

	err := p.run(ctx, report)

	report.FinishedAt = p.now()
	metrics.RecordPipelineRun(string(report.Status), report.FinishedAt.Sub(report.StartedAt))

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Str("status", string(report.Status)).
		Str("state", string(report.State)).
		Int("entries_saved", report.EntriesSaved).
		Int("games_cached", report.GamesCached).
		Int("games_fetched", report.GamesFetched).
		Int("mechanics_added", report.MechanicsAdded).
		Int("stats_saved", report.StatsSaved).
		Int("failed_batches", report.FailedBatches()).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Pipeline run finished")

	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *model.RunReport) error {
	entries, err := p.ingestCollection(ctx, report)
	if err != nil || report.Status == model.RunPending {
		return err
	}
	report.State = model.StateCollectionFetched

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.BggID
	}

	if err := p.reconcileGames(ctx, report, ids); err != nil {
		return p.abort(report, err)
	}
	report.State = model.StateGamesReconciled

	if err := p.reconcileMechanics(ctx, report, ids); err != nil {
		return p.abort(report, err)
	}
	report.State = model.StateMechanicsReconciled

	if err := p.aggregate(ctx, report, ids); err != nil {
		return p.abort(report, err)
	}
	report.State = model.StateAggregated

	if err := p.stores.Users.MarkSynced(ctx, report.UserName); err != nil {
		return p.abort(report, err)
	}

	report.State = model.StateDone
	report.Status = model.RunCompleted
	return nil
}

// abort marks the report aborted without changing the state reached, so the
// report shows where the run stopped.
func (p *Pipeline) abort(report *model.RunReport, err error) error {
	report.Status = model.RunAborted
	report.Message = err.Error()
	return err
}

// ingestCollection fetches and persists the collection. It sets the report
// to pending or aborted when the run cannot continue.
func (p *Pipeline) ingestCollection(ctx context.Context, report *model.RunReport) ([]model.CollectionEntry, error) {
	logger := zerolog.Ctx(ctx)

	payload, err := p.client.FetchCollection(ctx, report.UserName)
	if errors.Is(err, catalog.ErrPending) {
		report.State = model.StateAborted
		report.Status = model.RunPending
		report.Message = "Collection is being prepared by the catalog, retry in a few seconds"
		logger.Info().Msg("Collection not ready upstream")
		return nil, nil
	}
	if err != nil {
		report.State = model.StateAborted
		return nil, p.abort(report, fmt.Errorf("failed to fetch collection: %w", err))
	}

	res := normalize.Collection(report.UserName, payload)
	report.EntriesSkipped = res.Skipped
	metrics.RecordSkipped("collection", res.Skipped)

	if _, _, err := p.stores.Users.GetOrCreate(ctx, report.UserName); err != nil {
		return nil, p.abort(report, fmt.Errorf("failed to ensure user: %w", err))
	}

	saved, removed, err := p.stores.Collections.ReplaceCollection(ctx, report.UserName, res.Entries)
	if err != nil {
		return nil, p.abort(report, fmt.Errorf("failed to save collection: %w", err))
	}
	report.EntriesSaved = saved
	report.EntriesRemoved = removed

	logger.Info().
		Int("saved", saved).
		Int("removed", removed).
		Int("skipped", res.Skipped).
		Msg("Collection saved")

	return res.Entries, nil
}

// reconcileGames fetches details for collection games without a game row.
// Mechanics carried in the same payload are stored right after the games.
func (p *Pipeline) reconcileGames(ctx context.Context, report *model.RunReport, ids []int64) error {
	logger := zerolog.Ctx(ctx)

	existing, err := p.stores.Games.FindExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load cached games: %w", err)
	}
	report.GamesCached = len(existing)

	batches := reconcile.PlanFetch(ids, existing, p.batchSize)
	logger.Info().
		Int("cached", len(existing)).
		Int("batches", len(batches)).
		Msg("Reconciling games")

	out, err := reconcile.Drive(ctx, stageGames, p.pacer, batches, func(ctx context.Context, _ int, batch []int64) error {
		payload, err := p.client.FetchItems(ctx, batch)
		if err != nil {
			return err
		}

		res := normalize.Games(payload, p.linkBase)
		report.GamesSkipped += res.Skipped
		metrics.RecordSkipped("game", res.Skipped)

		n, err := p.stores.Games.UpsertGames(ctx, res.Games)
		if err != nil {
			return err
		}
		report.GamesFetched += n

		saved := make([]int64, len(res.Games))
		for i, g := range res.Games {
			saved[i] = g.BggID
		}
		mres := normalize.Mechanics(payload, saved)
		report.MechanicsSkipped += mres.SkippedLinks
		metrics.RecordSkipped("mechanic", mres.SkippedLinks)

		added, err := p.stores.Mechanics.ReplaceMechanics(ctx, mres.Sets)
		report.MechanicsAdded += added
		if err != nil {
			// Games are stored; their mechanics stay unfetched and are
			// retried by the mechanics stage.
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to store mechanics from game details")
		}
		return nil
	})
	report.GameBatches = model.BatchSummary(out)
	return err
}

// reconcileMechanics fetches mechanics for collection games whose mechanic
// set has never been fetched.
func (p *Pipeline) reconcileMechanics(ctx context.Context, report *model.RunReport, ids []int64) error {
	logger := zerolog.Ctx(ctx)

	need, err := p.stores.Games.FindGamesNeedingMechanics(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load games without mechanics: %w", err)
	}

	batches := reconcile.PlanFetch(need, nil, p.batchSize)
	logger.Info().
		Int("unfetched", len(need)).
		Int("batches", len(batches)).
		Msg("Reconciling mechanics")

	out, err := reconcile.Drive(ctx, stageMechanics, p.pacer, batches, func(ctx context.Context, _ int, batch []int64) error {
		payload, err := p.client.FetchItems(ctx, batch)
		if err != nil {
			return err
		}

		res := normalize.Mechanics(payload, batch)
		report.MechanicsSkipped += res.SkippedLinks
		metrics.RecordSkipped("mechanic", res.SkippedLinks)

		added, err := p.stores.Mechanics.ReplaceMechanics(ctx, res.Sets)
		report.MechanicsAdded += added
		return err
	})
	report.MechanicBatches = model.BatchSummary(out)
	return err
}

// aggregate recomputes the user's mechanic statistics from persisted data.
func (p *Pipeline) aggregate(ctx context.Context, report *model.RunReport, ids []int64) error {
	entries, err := p.stores.Collections.FindByUser(ctx, report.UserName)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	links, err := p.stores.Mechanics.FindByGameIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load mechanics: %w", err)
	}

	stats := aggregate.UserMechanicStats(report.UserName, entries, links)

	saved, err := p.stores.Stats.ReplaceUserMechanicStats(ctx, report.UserName, stats)
	if err != nil {
		return fmt.Errorf("failed to save user mechanic stats: %w", err)
	}
	report.StatsSaved = saved

	zerolog.Ctx(ctx).Info().Int("mechanics", saved).Msg("User mechanic stats saved")
	return nil
}

// RefreshSummary counts the outcomes of RunAll.
type RefreshSummary struct {
	Users     int
	Completed int
	Pending   int
	Skipped   int
	Failed    int
}

// RunAll runs the pipeline for every known user, one after another. Users
// with a run already in progress are skipped. It stops early only when ctx
// is done.
func (p *Pipeline) RunAll(ctx context.Context) (RefreshSummary, error) {
	var sum RefreshSummary

	names, err := p.stores.Users.ListUserNames(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to list users: %w", err)
	}
	sum.Users = len(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		report, err := p.Run(ctx, name)
		switch {
		case errors.Is(err, ErrRunInProgress):
			sum.Skipped++
		case err != nil:
			sum.Failed++
		case report.Status == model.RunPending:
			sum.Pending++
		default:
			sum.Completed++
		}
	}

	return sum, nil
}
