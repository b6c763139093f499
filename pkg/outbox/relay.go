package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Store is the durable side of the relay: rows are leased in batches so
// that several relay replicas never publish the same event twice.
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

// Dispatcher publishes a single locked event.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// Relay polls the outbox and pushes pending events through the dispatcher.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, store Store, dispatch Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("outbox lock batch failed", "err", err)
		return
	}
	if len(events) == 0 {
		return
	}

	sent := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				r.log.Error("outbox mark failed errored", "event_id", e.ID, "err", mErr)
			}
			continue
		}
		sent = append(sent, e.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			r.log.Error("outbox mark sent failed", "err", err)
		}
	}
}
