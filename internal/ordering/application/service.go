package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/playdata/microshop/internal/ordering/domain"
	"github.com/playdata/microshop/pkg/tracing"
)

// Service assembles orders: it resolves the buyer, validates every
// requested line against remote stock, commits the stock decrements and
// persists the aggregate. Requests that fail transiently are stashed as
// pending orders for the background processor.
type Service struct {
	log      *slog.Logger
	orders   OrderRepository
	pending  PendingOrderRepository
	users    UserDirectory
	products ProductDirectory
}

func NewService(log *slog.Logger, orders OrderRepository, pending PendingOrderRepository, users UserDirectory, products ProductDirectory) *Service {
	return &Service{
		log:      log,
		orders:   orders,
		pending:  pending,
		users:    users,
		products: products,
	}
}

// CreateOrder runs one assembly attempt. Permanent failures (unknown
// buyer or product, insufficient stock, invalid request) reject the whole
// request with nothing persisted. Transient failures store the exact
// original request as a PendingOrder and return ErrOrderDeferred wrapping
// the cause.
func (s *Service) CreateOrder(ctx context.Context, buyerEmail string, lines []domain.RequestLine) (domain.Order, error) {
	o, err := s.assemble(ctx, buyerEmail, lines)
	if err == nil {
		return o, nil
	}
	if !domain.IsTransient(err) {
		return domain.Order{}, err
	}

	p := domain.NewPendingOrder(buyerEmail, lines)
	if saveErr := s.pending.Save(ctx, p); saveErr != nil {
		s.log.Error("deferral failed", "buyer", buyerEmail, "err", saveErr)
		return domain.Order{}, fmt.Errorf("deferring order: %w", saveErr)
	}
	s.log.Warn("order deferred", "pending_id", p.ID, "buyer", buyerEmail, "cause", err)
	return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrOrderDeferred, err)
}

// GetOrder loads a persisted aggregate with its lines.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// assemble performs a single attempt with no deferral. The pending order
// processor re-drives it for held requests.
//
// Stock is validated for every line before any decrement is issued, so a
// permanently rejected request never mutates stock. The decrement itself
// is still a read-then-write against the remote inventory with no version
// check: two concurrent assemblies racing on the same product can lose an
// update, a known limitation of the consumed directory contract.
func (s *Service) assemble(ctx context.Context, buyerEmail string, lines []domain.RequestLine) (domain.Order, error) {
	if err := domain.ValidateLines(lines); err != nil {
		return domain.Order{}, err
	}

	// Buyer identity is resolved fresh on every attempt, never cached
	// across retries.
	buyer, err := s.users.FetchUserByEmail(ctx, buyerEmail)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolving buyer %s: %w", buyerEmail, err)
	}

	// One fetch per line, in caller order. Validation runs against a
	// running per-product balance, not the raw fetch result: a request
	// naming the same product on several lines must see its own earlier
	// decrements, or duplicate lines would validate against stale stock
	// and the absolute writes would undo each other.
	plan := make([]stockStep, len(lines))
	working := make(map[int64]int, len(lines))
	for i, l := range lines {
		p, err := s.products.FetchProduct(ctx, l.ProductID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("line %d product %d: %w", i, l.ProductID, err)
		}
		stock, seen := working[l.ProductID]
		if !seen {
			stock = p.StockQuantity
		}
		if stock < l.Quantity {
			return domain.Order{}, fmt.Errorf("line %d product %d: %w", i, l.ProductID, domain.ErrInsufficientStock)
		}
		plan[i] = stockStep{before: stock, after: stock - l.Quantity}
		working[l.ProductID] = stock - l.Quantity
	}

	// Commit the decrements, one write per line. A transient failure
	// midway restores the already-applied ones before the request is
	// deferred.
	for i, l := range lines {
		if err := s.products.AdjustStock(ctx, l.ProductID, plan[i].after); err != nil {
			s.compensate(ctx, lines[:i], plan[:i])
			return domain.Order{}, fmt.Errorf("adjusting stock for product %d: %w", l.ProductID, err)
		}
	}

	o := domain.NewOrder(buyer.ID, domain.StatusPlaced)
	for _, l := range lines {
		o.Lines = append(o.Lines, domain.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	payload, err := json.Marshal(domain.OrderPlaced{
		OrderID:    o.ID,
		BuyerID:    buyer.ID,
		BuyerEmail: buyer.Email,
		Lines:      lines,
	})
	if err != nil {
		s.compensate(ctx, lines, plan)
		return domain.Order{}, err
	}

	if err := s.orders.SaveWithOutbox(ctx, o, "OrderPlaced", payload, tracing.Traceparent(ctx)); err != nil {
		s.compensate(ctx, lines, plan)
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	s.log.Info("order placed", "order_id", o.ID, "buyer_id", buyer.ID, "lines", len(o.Lines))
	return o, nil
}

// stockStep records one line's slice of the running per-product balance:
// the stock its decrement started from and the absolute value it wrote.
type stockStep struct {
	before int
	after  int
}

// compensate writes each applied line's pre-decrement quantity back, in
// reverse order so a product named on several lines ends on the value it
// had before the request. Best effort: a failed write-back is logged and
// skipped, since the request is about to be deferred and the next attempt
// reads stock fresh anyway.
func (s *Service) compensate(ctx context.Context, applied []domain.RequestLine, plan []stockStep) {
	for i := len(applied) - 1; i >= 0; i-- {
		if err := s.products.AdjustStock(ctx, applied[i].ProductID, plan[i].before); err != nil {
			s.log.Error("stock compensation failed", "product_id", applied[i].ProductID, "err", err)
		}
	}
}
