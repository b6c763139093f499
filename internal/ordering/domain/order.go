package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPlaced  OrderStatus = "PLACED"
	StatusPending OrderStatus = "PENDING"
	StatusFailed  OrderStatus = "FAILED"
)

// Order is the persisted aggregate. Lines keep the caller-supplied order;
// an Order is never persisted without all of its lines.
type Order struct {
	ID        string
	BuyerID   int64
	Status    OrderStatus
	Lines     []OrderLine
	CreatedAt time.Time
}

// OrderLine is owned by its Order and cannot exist independently.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

// RequestLine is one requested (product, quantity) pair. Quantity must be
// positive; requests are immutable once submitted.
type RequestLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// RemoteUser is the read-only projection fetched from the user directory.
// It is resolved fresh on every order attempt, never cached.
type RemoteUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// RemoteProduct is the read-only projection fetched from the product
// directory, one fetch per line per attempt.
type RemoteProduct struct {
	ID            int64 `json:"id"`
	StockQuantity int   `json:"stockQuantity"`
}

// NewOrder starts an aggregate for a resolved buyer, lines attached later.
func NewOrder(buyerID int64, status OrderStatus) Order {
	return Order{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateLines rejects empty requests and non-positive quantities.
func ValidateLines(lines []RequestLine) error {
	if len(lines) == 0 {
		return ErrInvalidRequest
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return ErrInvalidRequest
		}
	}
	return nil
}
