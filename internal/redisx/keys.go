package redisx

import "time"

const (
	// Idempotency short-circuit for order placement:
	// idem:order:place:{idempotency_key} -> order_id.
	// The unique index on orders.idempotency_key stays the source of truth;
	// this key only saves a round-trip on hot replays.
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
