package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Product struct {
	ID         int64     `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, name string, priceCents int64, stock int) (*Product, error) {
	p := Product{Name: name, PriceCents: priceCents, Stock: stock}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products (name, price_cents, stock) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`, name, priceCents, stock,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return &p, nil
}

// Get returns nil, nil when the product does not exist.
func (r *Repo) Get(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update changes name and price only. Stock moves through Restock or the
// order placement transaction, never through a blind write that could
// clobber a concurrent decrement.
func (r *Repo) Update(ctx context.Context, id int64, name string, priceCents int64) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET name = $2, price_cents = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, name, price_cents, stock, created_at, updated_at`,
		id, name, priceCents,
	).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &p, nil
}

// Restock atomically adds qty to stock. Same discipline as the order
// workflow: a single relative update, no read-modify-write.
func (r *Repo) Restock(ctx context.Context, id int64, qty int) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, price_cents, stock, created_at, updated_at`,
		id, qty,
	).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restock product: %w", err)
	}
	return &p, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) (bool, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
