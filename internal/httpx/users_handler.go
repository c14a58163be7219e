package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andikafs/go-shop-api/internal/orders"
	"github.com/andikafs/go-shop-api/internal/users"
)

type UsersHandler struct {
	Repo *users.Repo
}

type userReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *UsersHandler) Register(r *chi.Mux) {
	r.Post("/users", h.create)
	r.Get("/users", h.list)
	r.Get("/users/{id}", h.get)
	r.Put("/users/{id}", h.update)
	r.Delete("/users/{id}", h.delete)
}

func (req userReq) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return orders.Validationf("name is required")
	}
	if !strings.Contains(req.Email, "@") {
		return orders.Validationf("invalid email")
	}
	return nil
}

func (h *UsersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req userReq
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

	u, err := h.Repo.Create(ctx, req.Name, req.Email)
	if errors.Is(err, users.ErrEmailTaken) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid user id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Repo.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if u == nil {
		writeError(w, orders.NotFoundf("user %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Repo.List(ctx, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []users.User{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid user id"))
		return
	}
	var req userReq
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

	u, err := h.Repo.Update(ctx, id, req.Name, req.Email)
	if errors.Is(err, users.ErrEmailTaken) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if u == nil {
		writeError(w, orders.NotFoundf("user %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, orders.Validationf("invalid user id"))
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
		writeError(w, orders.NotFoundf("user %d not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
