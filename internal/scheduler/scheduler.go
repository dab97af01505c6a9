// Package scheduler re-imports every known user's collection on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"board-game-suggestor/internal/service"
)

// Refresher runs the pipeline for all known users.
type Refresher interface {
	RunAll(ctx context.Context) (service.RefreshSummary, error)
}

// RefreshJob is the cron job that refreshes all collections. A tick that
// fires while the previous refresh is still running is skipped.
type RefreshJob struct {
	refresher Refresher
	ctx       context.Context
	running   sync.Mutex
}

// NewRefreshJob creates a RefreshJob. Refreshes stop early once ctx is done.
func NewRefreshJob(ctx context.Context, refresher Refresher) *RefreshJob {
	return &RefreshJob{refresher: refresher, ctx: ctx}
}

// Run implements cron.Job.
func (j *RefreshJob) Run() {
	if !j.running.TryLock() {
		log.Warn().Msg("Previous collection refresh still running, skipping tick")
		return
	}
	defer j.running.Unlock()

	logger := log.With().Str("job_id", uuid.NewString()).Str("job", "refresh").Logger()
	ctx := logger.WithContext(j.ctx)

	logger.Info().Msg("Collection refresh started")

	sum, err := j.refresher.RunAll(ctx)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Int("users", sum.Users).
		Int("completed", sum.Completed).
		Int("pending", sum.Pending).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("Collection refresh finished")
}

// Manager owns the cron engine.
type Manager struct {
	engine *cron.Cron
	job    cron.Job
}

// NewManager creates a Manager for job. Specs use the standard five-field
// cron syntax or descriptors such as "@daily".
func NewManager(job cron.Job) *Manager {
	return &Manager{
		engine: cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		job:    job,
	}
}

// Register schedules the job. It fails on an invalid spec.
func (m *Manager) Register(spec string) error {
	if _, err := m.engine.AddJob(spec, m.job); err != nil {
		return fmt.Errorf("failed to register refresh job %q: %w", spec, err)
	}
	log.Info().Str("spec", spec).Msg("Collection refresh scheduled")
	return nil
}

// Start starts the cron engine in its own goroutine.
func (m *Manager) Start() {
	log.Info().Msg("Cron scheduler started")
	m.engine.Start()
}

// Stop stops the engine and waits for a running job to finish or ctx to
// end, whichever comes first.
func (m *Manager) Stop(ctx context.Context) {
	done := m.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("Cron scheduler stop timed out with a job still running")
		return
	}
	log.Info().Msg("Cron scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
