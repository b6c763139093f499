package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingOrder holds an order request that could not complete for a
// transient reason. It stores the buyer's email, not a resolved user id:
// identity is re-resolved fresh on every reprocessing attempt. Lines keep
// insertion order so a retry reproduces the exact original request.
type PendingOrder struct {
	ID            string
	BuyerEmail    string
	Lines         []RequestLine
	Attempts      int
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}

func NewPendingOrder(buyerEmail string, lines []RequestLine) PendingOrder {
	return PendingOrder{
		ID:         uuid.NewString(),
		BuyerEmail: buyerEmail,
		Lines:      lines,
		CreatedAt:  time.Now().UTC(),
	}
}
