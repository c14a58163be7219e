package orders

import "time"

type Order struct {
	ID             int64       `json:"order_id"`
	UserID         int64       `json:"user_id"`
	IdempotencyKey string      `json:"-"`
	Status         Status      `json:"status"`
	TotalCents     int64       `json:"total_cents"`
	Items          []OrderItem `json:"items"`
	CreatedAt      time.Time   `json:"created_at"`
}

// OrderItem carries the unit price snapshotted at placement time; later
// product price changes never touch it.
type OrderItem struct {
	ProductID  int64 `json:"product_id"`
	Qty        int   `json:"qty"`
	PriceCents int64 `json:"price_cents"`
}

// ItemInput is one requested order line as it arrives from the client.
// The same product may appear more than once; lines are merged before
// the transaction runs.
type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

// Line is a normalized order line: duplicates merged, unique product ids.
type Line struct {
	ProductID int64
	Qty       int
}
