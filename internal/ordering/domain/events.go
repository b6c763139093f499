package domain

// OrderPlaced is published through the outbox once an aggregate commits.
type OrderPlaced struct {
	OrderID    string        `json:"orderId"`
	BuyerID    int64         `json:"buyerId"`
	BuyerEmail string        `json:"buyerEmail"`
	Lines      []RequestLine `json:"lines"`
}

// OrderFailed is published when a pending order is dead-lettered.
type OrderFailed struct {
	OrderID    string        `json:"orderId"`
	BuyerEmail string        `json:"buyerEmail"`
	Lines      []RequestLine `json:"lines"`
	Reason     string        `json:"reason"`
}
