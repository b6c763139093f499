package application

import (
	"context"
	"time"

	"github.com/playdata/microshop/internal/ordering/domain"
)

type OrderRepository interface {
	// SaveWithOutbox persists the aggregate, its lines and an outbox row
	// in one transaction.
	SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, traceparent string) error
	Get(ctx context.Context, id string) (domain.Order, error)
}

type PendingOrderRepository interface {
	Save(ctx context.Context, p domain.PendingOrder) error
	// FindAll returns every held request, in no particular order across
	// buyers.
	FindAll(ctx context.Context) ([]domain.PendingOrder, error)
	MarkAttempt(ctx context.Context, id string, attempts int, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// UserDirectory resolves buyers in the remote user service.
type UserDirectory interface {
	FetchUserByEmail(ctx context.Context, email string) (domain.RemoteUser, error)
}

// ProductDirectory reads and adjusts remote inventory. No retry logic
// lives behind these calls; retries happen at order-request granularity
// in the pending order processor.
type ProductDirectory interface {
	FetchProduct(ctx context.Context, id int64) (domain.RemoteProduct, error)
	AdjustStock(ctx context.Context, id int64, newQuantity int) error
}
