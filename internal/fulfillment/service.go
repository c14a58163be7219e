package fulfillment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/andikafs/go-shop-api/internal/kafka"
	"github.com/andikafs/go-shop-api/internal/orders"
	"github.com/andikafs/go-shop-api/internal/redisx"
)

// OrderStore is the slice of the orders store this consumer needs.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*orders.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to orders.Status) (bool, error)
}

// Dedup remembers processed event ids. Seen short-circuits redeliveries;
// Mark must only be called once the event's work has stuck, so a failed
// attempt stays retryable.
type Dedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type RedisDedup struct {
	R       *redis.Client
	Service string
}

func (d *RedisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, d.R, fmt.Sprintf(redisx.KeyDedup, d.Service, eventID))
}

func (d *RedisDedup) Mark(ctx context.Context, eventID string) error {
	return d.R.Set(ctx, fmt.Sprintf(redisx.KeyDedup, d.Service, eventID), "1", redisx.TTLDedup).Err()
}

// Service consumes order.placed events and advances fresh orders from
// pending to confirmed. Replayed events are no-ops: once an order has
// left pending the conditional update matches nothing.
type Service struct {
	Store       OrderStore
	Dedup       Dedup // optional
	Producer    *kafkax.Producer
	ServiceName string
}

func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil // ignore
	}

	if s.Dedup != nil {
		seen, _ := s.Dedup.Seen(ctx, env.EventID)
		if seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	o, err := s.Store.GetOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if o != nil && o.Status == orders.StatusPending {
		ok, err := s.Store.UpdateStatus(ctx, o.ID, orders.StatusPending, orders.StatusConfirmed)
		if err != nil {
			return err
		}
		if ok {
			log.Printf("order %d confirmed", o.ID)
			s.publishStatusChanged(o.ID, orders.StatusPending, orders.StatusConfirmed, env.TraceID)
		}
	}

	// only now is the event done; an error above leaves the id unmarked
	// so the redelivery retries
	if s.Dedup != nil {
		_ = s.Dedup.Mark(ctx, env.EventID)
	}
	return nil
}

func (s *Service) publishStatusChanged(orderID int64, from, to orders.Status, trace string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: orderID, From: from, To: to,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
