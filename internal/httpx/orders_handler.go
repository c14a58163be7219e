package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/andikafs/go-shop-api/internal/kafka"
	"github.com/andikafs/go-shop-api/internal/orders"
)

type OrdersHandler struct {
	Svc      *orders.Service
	Producer *kafkax.Producer
	Idem     IdemCache // optional; replay fast-path
	Service  string
}

type transitionReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/status", h.transition)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, orders.Validationf("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path for hot replays; the DB unique key is the authority, so
	// a cache miss or error just falls through to the placement path.
	if h.Idem != nil && in.IdempotencyKey != "" {
		if id, ok, err := h.Idem.GetOrderID(ctx, in.IdempotencyKey); err == nil && ok {
			if o, err := h.Svc.GetOrder(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	o, existed, err := h.Svc.PlaceOrder(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.Idem != nil && in.IdempotencyKey != "" {
		_ = h.Idem.PutOrderID(ctx, in.IdempotencyKey, o.ID)
	}

	if !existed {
		h.publishPlaced(o, r.Header.Get("X-Request-Id"))
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid order id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid order id"))
		return
	}
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, orders.Validationf("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, from, err := h.Svc.Transition(ctx, id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishStatusChanged(o.ID, from, o.Status, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) publishPlaced(o *orders.Order, trace string) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: fmt.Sprintf("%d", o.ID),
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			TotalCents: o.TotalCents,
			Items:      o.Items,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishStatusChanged(orderID int64, from, to orders.Status, trace string) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: fmt.Sprintf("%d", orderID),
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: orderID, From: from, To: to,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
