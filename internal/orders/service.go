package orders

import (
	"context"
	"sort"
)

// Store is the transactional backend for orders. Place must be atomic:
// either the order row, all item rows and all stock decrements land, or
// none of them do.
type Store interface {
	// Place runs the placement transaction for already-normalized lines.
	// existed is true when key matched a previously placed order and that
	// order was returned instead of creating a new one.
	Place(ctx context.Context, userID int64, key string, lines []Line) (o *Order, existed bool, err error)

	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)

	// UpdateStatus moves id from -> to and reports whether a row changed.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type PlaceOrderInput struct {
	UserID         int64       `json:"user_id"`
	Items          []ItemInput `json:"items"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
}

// PlaceOrder validates the request, normalizes its lines and runs the
// placement transaction. Validation failures never touch the store.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, bool, error) {
	if in.UserID <= 0 {
		return nil, false, Validationf("user_id must be positive")
	}
	if len(in.Items) == 0 {
		return nil, false, Validationf("items must not be empty")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return nil, false, Validationf("product_id must be positive")
		}
		if it.Qty <= 0 {
			return nil, false, Validationf("qty for product %d must be positive", it.ProductID)
		}
	}

	if in.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	return s.store.Place(ctx, in.UserID, in.IdempotencyKey, normalizeLines(in.Items))
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, NotFoundf("order %d not found", id)
	}
	return o, nil
}

// Transition moves an order to a new status, rejecting steps the state
// machine does not allow. It returns the updated order and the status it
// moved from.
func (s *Service) Transition(ctx context.Context, id int64, to Status) (*Order, Status, error) {
	if !ValidStatus(to) {
		return nil, "", Validationf("unknown status %q", to)
	}
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, "", err
	}
	from := o.Status
	if !CanTransition(from, to) {
		return nil, "", Validationf("cannot transition order %d from %s to %s", id, from, to)
	}
	ok, err := s.store.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		// lost a race with another transition; the caller may re-read and retry
		return nil, "", Transientf("order %d changed concurrently", id)
	}
	o.Status = to
	return o, from, nil
}

// normalizeLines merges duplicate product lines (quantities summed) and
// sorts by ascending product id. The sort fixes the lock acquisition
// order, so two placements sharing products can never deadlock.
func normalizeLines(items []ItemInput) []Line {
	merged := make(map[int64]int, len(items))
	for _, it := range items {
		merged[it.ProductID] += it.Qty
	}
	lines := make([]Line, 0, len(merged))
	for id, qty := range merged {
		lines = append(lines, Line{ProductID: id, Qty: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}
