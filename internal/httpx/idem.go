package httpx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/andikafs/go-shop-api/internal/redisx"
)

// IdemCache is the replay fast-path for order placement: key -> order id.
// A hit lets the handler answer a replay without re-running the placement
// path; the unique index on orders.idempotency_key stays the source of
// truth, so implementations may lose writes without breaking correctness.
type IdemCache interface {
	// GetOrderID returns the cached order id for key, or ok=false on miss.
	GetOrderID(ctx context.Context, key string) (orderID int64, ok bool, err error)

	// PutOrderID records key -> orderID if not already present.
	PutOrderID(ctx context.Context, key string, orderID int64) error
}

type RedisIdemCache struct{ R *redis.Client }

func (c *RedisIdemCache) GetOrderID(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.R.Get(ctx, fmt.Sprintf(redisx.KeyIdemOrderPlace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, nil // stale garbage, treat as a miss
	}
	return id, true, nil
}

func (c *RedisIdemCache) PutOrderID(ctx context.Context, key string, orderID int64) error {
	return c.R.SetNX(ctx, fmt.Sprintf(redisx.KeyIdemOrderPlace, key), orderID, redisx.TTLIdempotency).Err()
}
