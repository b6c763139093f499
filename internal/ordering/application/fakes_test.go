package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/playdata/microshop/internal/ordering/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memOrders struct {
	mu      sync.Mutex
	saved   []domain.Order
	events  []string
	saveErr error
}

func (m *memOrders) SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, traceparent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, o)
	m.events = append(m.events, eventType)
	return nil
}

func (m *memOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.saved {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

type memPending struct {
	mu      sync.Mutex
	entries []domain.PendingOrder
}

func (m *memPending) Save(ctx context.Context, p domain.PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, p)
	return nil
}

func (m *memPending) FindAll(ctx context.Context) ([]domain.PendingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PendingOrder, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *memPending) MarkAttempt(ctx context.Context, id string, attempts int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].Attempts = attempts
			m.entries[i].LastAttemptAt = &at
			return nil
		}
	}
	return nil
}

func (m *memPending) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeUsers struct {
	users       map[string]domain.RemoteUser
	unavailable bool
}

func (f *fakeUsers) FetchUserByEmail(ctx context.Context, email string) (domain.RemoteUser, error) {
	if f.unavailable {
		return domain.RemoteUser{}, domain.ErrDirectoryUnavailable
	}
	u, ok := f.users[email]
	if !ok {
		return domain.RemoteUser{}, domain.ErrBuyerNotFound
	}
	return u, nil
}

type fakeProducts struct {
	mu          sync.Mutex
	stock       map[int64]int
	unavailable bool
	// failAdjustOnCall makes the Nth AdjustStock call (1-based) fail
	// transiently; zero disables it.
	failAdjustOnCall int
	adjustCalls      int
}

func (f *fakeProducts) FetchProduct(ctx context.Context, id int64) (domain.RemoteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return domain.RemoteProduct{}, domain.ErrDirectoryUnavailable
	}
	q, ok := f.stock[id]
	if !ok {
		return domain.RemoteProduct{}, domain.ErrProductNotFound
	}
	return domain.RemoteProduct{ID: id, StockQuantity: q}, nil
}

func (f *fakeProducts) AdjustStock(ctx context.Context, id int64, newQuantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return domain.ErrDirectoryUnavailable
	}
	f.adjustCalls++
	if f.failAdjustOnCall != 0 && f.adjustCalls == f.failAdjustOnCall {
		return domain.ErrDirectoryUnavailable
	}
	if _, ok := f.stock[id]; !ok {
		return domain.ErrProductNotFound
	}
	f.stock[id] = newQuantity
	return nil
}

func (f *fakeProducts) stockOf(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

func newFixture() (*Service, *memOrders, *memPending, *fakeUsers, *fakeProducts) {
	orders := &memOrders{}
	pending := &memPending{}
	users := &fakeUsers{users: map[string]domain.RemoteUser{
		"a@x.com": {ID: 7, Email: "a@x.com"},
	}}
	products := &fakeProducts{stock: map[int64]int{1: 5, 2: 1}}
	svc := NewService(testLogger(), orders, pending, users, products)
	return svc, orders, pending, users, products
}
