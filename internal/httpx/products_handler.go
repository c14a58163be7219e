package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andikafs/go-shop-api/internal/catalog"
	"github.com/andikafs/go-shop-api/internal/orders"
)

type ProductsHandler struct {
	Repo *catalog.Repo
}

type productReq struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type restockReq struct {
	Qty int `json:"qty"`
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Post("/products", h.create)
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Put("/products/{id}", h.update)
	r.Post("/products/{id}/restock", h.restock)
	r.Delete("/products/{id}", h.delete)
}

func (req productReq) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return orders.Validationf("name is required")
	}
	if req.PriceCents < 0 {
		return orders.Validationf("price_cents must not be negative")
	}
	if req.Stock < 0 {
		return orders.Validationf("stock must not be negative")
	}
	return nil
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, orders.Validationf("invalid json"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Create(ctx, req.Name, req.PriceCents, req.Stock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid product id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, orders.ProductNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Repo.List(ctx, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid product id"))
		return
	}
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, orders.Validationf("invalid json"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Update(ctx, id, req.Name, req.PriceCents)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, orders.ProductNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) restock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid product id"))
		return
	}
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, orders.Validationf("invalid json"))
		return
	}
	if req.Qty <= 0 {
		writeError(w, orders.Validationf("qty must be positive"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Restock(ctx, id, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, orders.ProductNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid product id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deleted, err := h.Repo.Delete(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, orders.ProductNotFound(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
