package orders

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgLockNotAvail    = "55P03"
	pgSerialization   = "40001"
	pgDeadlock        = "40P01"
)

// PgStore implements Store on Postgres. Row locks (FOR UPDATE) are taken
// in the callers' normalized line order, ascending product id.
type PgStore struct{ DB *pgxpool.Pool }

func NewPgStore(db *pgxpool.Pool) *PgStore { return &PgStore{DB: db} }

func (s *PgStore) Place(ctx context.Context, userID int64, key string, lines []Line) (*Order, bool, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, classify(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&userExists); err != nil {
		return nil, false, classify(err, "check user")
	}
	if !userExists {
		return nil, false, NotFoundf("user %d not found", userID)
	}

	// Lock every product row first, snapshot price, verify stock. Lines
	// arrive sorted by product id, which keeps lock acquisition
	// deterministic across concurrent placements.
	var total int64
	items := make([]OrderItem, 0, len(lines))
	for _, ln := range lines {
		var priceCents int64
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT price_cents, stock FROM products WHERE id = $1 FOR UPDATE`,
			ln.ProductID,
		).Scan(&priceCents, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ProductNotFound(ln.ProductID)
		}
		if err != nil {
			return nil, false, classify(err, "lock product")
		}
		if stock < ln.Qty {
			return nil, false, InsufficientStock(ln.ProductID, ln.Qty, stock)
		}
		total += priceCents * int64(ln.Qty)
		items = append(items, OrderItem{ProductID: ln.ProductID, Qty: ln.Qty, PriceCents: priceCents})
	}

	o := Order{
		UserID:         userID,
		IdempotencyKey: key,
		Status:         StatusPending,
		TotalCents:     total,
		Items:          items,
	}
	var keyArg any
	if key != "" {
		keyArg = key // NULL otherwise, so the unique index ignores keyless orders
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, idempotency_key, status, total_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		userID, keyArg, o.Status, total,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && key != "" {
			// lost the race on the idempotency key; the winner's order stands
			_ = tx.Rollback(ctx)
			existing, ferr := s.FindByIdempotencyKey(ctx, key)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing == nil {
				return nil, false, Transientf("idempotency key conflict for %q, retry", key)
			}
			return existing, true, nil
		}
		return nil, false, classify(err, "insert order")
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents,
		); err != nil {
			return nil, false, classify(err, "insert order item")
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`,
			it.ProductID, it.Qty,
		)
		if err != nil {
			return nil, false, classify(err, "decrement stock")
		}
		// the row is locked and stock was just checked, but keep the guard
		if ct.RowsAffected() != 1 {
			return nil, false, InsufficientStock(it.ProductID, it.Qty, 0)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, classify(err, "commit")
	}
	return &o, false, nil
}

func (s *PgStore) FindByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, idempotency_key, status, total_cents, created_at
		FROM orders WHERE idempotency_key = $1`, key,
	).Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &o.Status, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find order by key")
	}
	if err := s.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PgStore) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var o Order
	var key *string
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, idempotency_key, status, total_cents, created_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &key, &o.Status, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get order")
	}
	if key != nil {
		o.IdempotencyKey = *key
	}
	if err := s.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PgStore) UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	ct, err := s.DB.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, classify(err, "update status")
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PgStore) loadItems(ctx context.Context, o *Order) error {
	rows, err := s.DB.Query(ctx, `
		SELECT product_id, qty, price_cents
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, o.ID)
	if err != nil {
		return classify(err, "load items")
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return classify(err, "scan item")
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

// classify translates storage failures into the package error taxonomy.
// The stock CHECK tripping under a race becomes insufficient_stock, lock
// and connection trouble becomes transient; anything else is wrapped and
// treated as internal by the HTTP layer.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation:
			return &Error{Kind: KindInsufficientStock, Msg: fmt.Sprintf("%s: stock constraint violated", op)}
		case pgLockNotAvail, pgSerialization, pgDeadlock:
			return Transientf("%s: %v", op, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transientf("%s: %v", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transientf("%s: %v", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
