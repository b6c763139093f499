package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/playdata/microshop/internal/ordering/domain"
	"github.com/playdata/microshop/pkg/metrics"
	"github.com/playdata/microshop/pkg/tracing"
)

// Processor periodically re-drives held order requests through the
// assembler. It is an explicitly owned background task: construct it with
// its stores, run it with Run, stop it by cancelling the context.
type Processor struct {
	log         *slog.Logger
	svc         *Service
	pending     PendingOrderRepository
	orders      OrderRepository
	interval    time.Duration
	maxAttempts int
	metrics     *metrics.OrderingMetrics

	mu sync.Mutex // guards against overlapping sweeps
}

func NewProcessor(log *slog.Logger, svc *Service, pending PendingOrderRepository, orders OrderRepository, interval time.Duration, maxAttempts int, m *metrics.OrderingMetrics) *Processor {
	return &Processor{
		log:         log,
		svc:         svc,
		pending:     pending,
		orders:      orders,
		interval:    interval,
		maxAttempts: maxAttempts,
		metrics:     m,
	}
}

// Run sweeps on a fixed delay: the interval is measured from the end of
// one sweep to the start of the next, so slow sweeps never pile up.
func (p *Processor) Run(ctx context.Context) error {
	t := time.NewTimer(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("pending order processor stopping")
			return nil
		case <-t.C:
			p.Sweep(ctx)
			t.Reset(p.interval)
		}
	}
}

// Sweep runs one pass over the deferred order store. Entries whose
// request now assembles are deleted; transient failures bump the attempt
// counter until the ceiling dead-letters them; permanent failures
// dead-letter immediately.
func (p *Processor) Sweep(ctx context.Context) {
	if !p.mu.TryLock() {
		p.log.Warn("sweep already in progress, skipping tick")
		return
	}
	defer p.mu.Unlock()

	start := time.Now()
	entries, err := p.pending.FindAll(ctx)
	if err != nil {
		p.log.Error("loading pending orders failed", "err", err)
		return
	}

	for _, e := range entries {
		p.reprocess(ctx, e)
	}

	if p.metrics != nil {
		p.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	p.log.Info("pending sweep finished", "entries", len(entries), "took", time.Since(start))
}

func (p *Processor) reprocess(ctx context.Context, e domain.PendingOrder) {
	o, err := p.svc.assemble(ctx, e.BuyerEmail, e.Lines)
	switch {
	case err == nil:
		if delErr := p.pending.Delete(ctx, e.ID); delErr != nil {
			// The order exists but the entry survived; the next sweep
			// would place it again. Logged loudly for the operator.
			p.log.Error("pending delete failed after successful replay",
				"pending_id", e.ID, "order_id", o.ID, "err", delErr)
			return
		}
		p.count("succeeded")
		p.log.Info("pending order placed", "pending_id", e.ID, "order_id", o.ID)

	case domain.IsTransient(err):
		attempts := e.Attempts + 1
		if attempts >= p.maxAttempts {
			p.deadLetter(ctx, e, "attempt ceiling reached: "+err.Error())
			return
		}
		if markErr := p.pending.MarkAttempt(ctx, e.ID, attempts, time.Now().UTC()); markErr != nil {
			p.log.Error("marking attempt failed", "pending_id", e.ID, "err", markErr)
		}
		p.count("retried")
		p.log.Warn("pending order still failing", "pending_id", e.ID, "attempts", attempts, "err", err)

	default:
		p.deadLetter(ctx, e, err.Error())
	}
}

// deadLetter records a FAILED order carrying the requested lines so the
// outcome is visible to operators and buyers, then drops the entry.
func (p *Processor) deadLetter(ctx context.Context, e domain.PendingOrder, reason string) {
	o := domain.NewOrder(0, domain.StatusFailed)
	for _, l := range e.Lines {
		o.Lines = append(o.Lines, domain.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	payload, err := json.Marshal(domain.OrderFailed{
		OrderID:    o.ID,
		BuyerEmail: e.BuyerEmail,
		Lines:      e.Lines,
		Reason:     reason,
	})
	if err != nil {
		p.log.Error("dead-letter payload marshal failed", "pending_id", e.ID, "err", err)
		return
	}
	if err := p.orders.SaveWithOutbox(ctx, o, "OrderFailed", payload, tracing.Traceparent(ctx)); err != nil {
		// Keep the entry; dead-lettering is retried next sweep.
		p.log.Error("dead-letter persist failed", "pending_id", e.ID, "err", err)
		return
	}
	if err := p.pending.Delete(ctx, e.ID); err != nil {
		p.log.Error("pending delete failed after dead-letter", "pending_id", e.ID, "err", err)
		return
	}
	p.count("deadlettered")
	p.log.Warn("pending order dead-lettered", "pending_id", e.ID, "reason", reason)
}

func (p *Processor) count(result string) {
	if p.metrics != nil {
		p.metrics.SweepEntries.WithLabelValues(result).Inc()
	}
}
