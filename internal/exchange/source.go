package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/MM0819/vega-market-maker-sub000/internal/cache"
)

// Source is the exchange state feed: an initial query followed by a stream of deltas.
type Source interface {
	Snapshot(ctx context.Context) (cache.Snapshot, error)
	Stream(ctx context.Context, apply func(cache.Delta)) error
}

// Static serves a fixed snapshot and any deltas pushed through Push. It backs paper mode and tests.
type Static struct {
	snap   cache.Snapshot
	deltas chan cache.Delta
	once   sync.Once
}

// NewStatic wraps snap as a source. buffer sizes the queue of pending pushed deltas.
func NewStatic(snap cache.Snapshot, buffer int) *Static {
	if buffer < 1 {
		buffer = 1
	}
	return &Static{snap: snap, deltas: make(chan cache.Delta, buffer)}
}

// Snapshot returns the seeded state.
func (s *Static) Snapshot(context.Context) (cache.Snapshot, error) { return s.snap, nil }

// Push queues a delta for the active stream. It blocks while the queue is full.
func (s *Static) Push(ctx context.Context, d cache.Delta) error {
	select {
	case s.deltas <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream once queued deltas are drained.
func (s *Static) Close() { s.once.Do(func() { close(s.deltas) }) }

// Stream applies pushed deltas until ctx ends or Close is called.
func (s *Static) Stream(ctx context.Context, apply func(cache.Delta)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-s.deltas:
			if !ok {
				return nil
			}
			apply(d)
		}
	}
}

// Sync loads the initial snapshot into state, marking it initialized, then follows the stream.
func Sync(ctx context.Context, src Source, state *cache.State, log zerolog.Logger) error {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial state query: %w", err)
	}
	state.LoadSnapshot(snap)
	log.Info().
		Int("markets", len(snap.Markets)).
		Int("accounts", len(snap.Accounts)).
		Int("orders", len(snap.Orders)).
		Msg("exchange state initialized")
	return src.Stream(ctx, state.Apply)
}
