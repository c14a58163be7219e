package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/andikafs/go-shop-api/internal/kafka"
	"github.com/andikafs/go-shop-api/internal/orders"
)

type fakeStore struct {
	order       *orders.Order
	transitions int
	failNext    error
}

func (f *fakeStore) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	if f.order != nil && f.order.ID == id {
		cp := *f.order
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id int64, from, to orders.Status) (bool, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return false, err
	}
	if f.order == nil || f.order.ID != id || f.order.Status != from {
		return false, nil
	}
	f.order.Status = to
	f.transitions++
	return true, nil
}

type fakeDedup struct {
	marked map[string]bool
	seens  int
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{marked: make(map[string]bool)}
}

func (d *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	d.seens++
	return d.marked[eventID], nil
}

func (d *fakeDedup) Mark(ctx context.Context, eventID string) error {
	d.marked[eventID] = true
	return nil
}

func placedMessage(t *testing.T, orderID int64) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    orders.EventOrderPlaced,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID: orderID, UserID: 1, TotalCents: 500,
			Items: []orders.OrderItem{{ProductID: 101, Qty: 1, PriceCents: 500}},
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleOrderPlaced_ConfirmsPendingOrder(t *testing.T) {
	store := &fakeStore{order: &orders.Order{ID: 7, Status: orders.StatusPending}}
	svc := &Service{Store: store, ServiceName: "test-fulfillment"}

	if err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, 7)); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if store.order.Status != orders.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", store.order.Status)
	}
	if store.transitions != 1 {
		t.Errorf("expected 1 transition, got %d", store.transitions)
	}
}

func TestHandleOrderPlaced_ReplayIsNoOp(t *testing.T) {
	store := &fakeStore{order: &orders.Order{ID: 7, Status: orders.StatusPending}}
	svc := &Service{Store: store, ServiceName: "test-fulfillment"}

	m := placedMessage(t, 7)
	if err := svc.HandleOrderPlaced(context.Background(), m); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := svc.HandleOrderPlaced(context.Background(), m); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if store.transitions != 1 {
		t.Errorf("redelivery must not transition again, got %d transitions", store.transitions)
	}
}

func TestHandleOrderPlaced_IgnoresOtherEvents(t *testing.T) {
	store := &fakeStore{order: &orders.Order{ID: 7, Status: orders.StatusPending}}
	svc := &Service{Store: store, ServiceName: "test-fulfillment"}

	env := orders.Envelope{
		EventID:   uuid.NewString(),
		EventType: orders.EventOrderStatusChanged,
		Payload:   kafkax.MustMarshal(orders.OrderStatusChangedPayload{OrderID: 7}),
	}
	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	if err := svc.HandleOrderPlaced(context.Background(), m); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if store.transitions != 0 {
		t.Error("foreign event types must be ignored")
	}
}

func TestHandleOrderPlaced_MissingOrder(t *testing.T) {
	svc := &Service{Store: &fakeStore{}, ServiceName: "test-fulfillment"}
	if err := svc.HandleOrderPlaced(context.Background(), placedMessage(t, 99)); err != nil {
		t.Fatalf("missing order must not fail the handler: %v", err)
	}
}

func TestHandleOrderPlaced_DedupShortCircuit(t *testing.T) {
	store := &fakeStore{order: &orders.Order{ID: 7, Status: orders.StatusPending}}
	dedup := newFakeDedup()
	svc := &Service{Store: store, Dedup: dedup, ServiceName: "test-fulfillment"}

	m := placedMessage(t, 7)
	if err := svc.HandleOrderPlaced(context.Background(), m); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if len(dedup.marked) != 1 {
		t.Fatalf("successful delivery must mark the event, got %d marks", len(dedup.marked))
	}
	if err := svc.HandleOrderPlaced(context.Background(), m); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if store.transitions != 1 {
		t.Errorf("marked event must be skipped, got %d transitions", store.transitions)
	}
}

func TestHandleOrderPlaced_FailedAttemptStaysRetryable(t *testing.T) {
	store := &fakeStore{
		order:    &orders.Order{ID: 7, Status: orders.StatusPending},
		failNext: context.DeadlineExceeded,
	}
	dedup := newFakeDedup()
	svc := &Service{Store: store, Dedup: dedup, ServiceName: "test-fulfillment"}

	m := placedMessage(t, 7)
	if err := svc.HandleOrderPlaced(context.Background(), m); err == nil {
		t.Fatal("store failure must surface so the offset is not committed")
	}
	if len(dedup.marked) != 0 {
		t.Fatal("failed attempt must not mark the event as processed")
	}

	if err := svc.HandleOrderPlaced(context.Background(), m); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if store.order.Status != orders.StatusConfirmed {
		t.Errorf("redelivery must complete the work, got %s", store.order.Status)
	}
	if len(dedup.marked) != 1 {
		t.Error("successful redelivery must mark the event")
	}
}
