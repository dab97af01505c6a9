// Package reconcile computes which ids still need fetching and drives the
// fetches in sequential, paced batches.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"board-game-suggestor/internal/metrics"
)

// DefaultBatchSize is the largest id list the catalog accepts per request.
const DefaultBatchSize = 20

// PlanFetch returns required minus existing, deduplicated, in encounter
// order, split into chunks of batchSize. A batchSize below 1 falls back to
// DefaultBatchSize. Nothing missing yields no batches.
func PlanFetch[T comparable](required, existing []T, batchSize int) [][]T {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	have := make(map[T]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	var missing []T
	for _, id := range required {
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		missing = append(missing, id)
	}

	return Chunk(missing, batchSize)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 || size < 1 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// Pacer waits between two upstream requests.
type Pacer interface {
	Pause(ctx context.Context) error
}

// FixedDelay pauses for a constant duration.
type FixedDelay struct {
	Delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFixedDelay returns a pacer that sleeps for d, or returns early with the
// context error if ctx is done first.
func NewFixedDelay(d time.Duration) *FixedDelay {
	return &FixedDelay{Delay: d, sleep: sleepContext}
}

// Pause implements Pacer.
func (f *FixedDelay) Pause(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}
	sleep := f.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, f.Delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BatchFunc fetches, normalizes and persists one batch.
type BatchFunc[T any] func(ctx context.Context, index int, batch []T) error

// Outcome counts the batches of one Drive call.
type Outcome struct {
	Batches   int `json:"batches"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Drive runs fn for each batch in order, one at a time, pausing between
// batches but not after the last. A failing batch is logged, counted and
// skipped. Drive only returns an error when ctx ends, together with the
// counts so far.
func Drive[T any](ctx context.Context, stage string, pacer Pacer, batches [][]T, fn BatchFunc[T]) (Outcome, error) {
	logger := zerolog.Ctx(ctx).With().Str("stage", stage).Logger()
	out := Outcome{Batches: len(batches)}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		logger.Info().
			Int("batch", i+1).
			Int("of", len(batches)).
			Int("size", len(batch)).
			Msg("Fetching batch")

		if err := fn(ctx, i, batch); err != nil {
			out.Failed++
			logger.Error().Err(err).
				Int("batch", i+1).
				Int("of", len(batches)).
				Msg("Batch failed, skipping")
			metrics.RecordBatch(stage, false)
		} else {
			out.Succeeded++
			metrics.RecordBatch(stage, true)
		}

		if i < len(batches)-1 && pacer != nil {
			if err := pacer.Pause(ctx); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}
