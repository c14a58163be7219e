package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andikafs/go-shop-api/internal/orders"
)

// fakeStore implements orders.Store with just enough behavior to drive
// the handler: one user (id 1) and one product (id 101, price 500).
type fakeStore struct {
	mu         sync.Mutex
	stock      int
	orders     map[int64]*orders.Order
	byKey      map[string]int64
	nextID     int64
	placeCalls int
}

func newFakeStore(stock int) *fakeStore {
	return &fakeStore{
		stock:  stock,
		orders: make(map[int64]*orders.Order),
		byKey:  make(map[string]int64),
	}
}

func (f *fakeStore) Place(ctx context.Context, userID int64, key string, lines []orders.Line) (*orders.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	if userID != 1 {
		return nil, false, orders.NotFoundf("user %d not found", userID)
	}
	var total int64
	items := make([]orders.OrderItem, 0, len(lines))
	need := 0
	for _, ln := range lines {
		if ln.ProductID != 101 {
			return nil, false, orders.ProductNotFound(ln.ProductID)
		}
		need += ln.Qty
		total += 500 * int64(ln.Qty)
		items = append(items, orders.OrderItem{ProductID: ln.ProductID, Qty: ln.Qty, PriceCents: 500})
	}
	if need > f.stock {
		return nil, false, orders.InsufficientStock(101, need, f.stock)
	}
	f.stock -= need
	f.nextID++
	o := &orders.Order{
		ID: f.nextID, UserID: userID, IdempotencyKey: key,
		Status: orders.StatusPending, TotalCents: total, Items: items,
		CreatedAt: time.Now(),
	}
	f.orders[o.ID] = o
	if key != "" {
		f.byKey[key] = o.ID
	}
	return o, false, nil
}

func (f *fakeStore) FindByIdempotencyKey(ctx context.Context, key string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byKey[key]; ok {
		return f.orders[id], nil
	}
	return nil, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id], nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id int64, from, to orders.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func newTestRouter(store *fakeStore) *chi.Mux {
	return newTestRouterIdem(store, nil)
}

func newTestRouterIdem(store *fakeStore, idem IdemCache) *chi.Mux {
	r := chi.NewRouter()
	h := &OrdersHandler{Svc: orders.NewService(store), Idem: idem, Service: "test"}
	h.Register(r)
	return r
}

// fakeIdemCache mirrors RedisIdemCache over a map.
type fakeIdemCache struct {
	mu   sync.Mutex
	keys map[string]int64
	gets int
}

func newFakeIdemCache() *fakeIdemCache {
	return &fakeIdemCache{keys: make(map[string]int64)}
}

func (c *fakeIdemCache) GetOrderID(ctx context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	id, ok := c.keys[key]
	return id, ok, nil
}

func (c *fakeIdemCache) PutOrderID(ctx context.Context, key string, orderID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.keys[key]; !ok {
		c.keys[key] = orderID
	}
	return nil
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPlaceOrderEndpoint_Success(t *testing.T) {
	r := newTestRouter(newFakeStore(10))

	w := doJSON(t, r, http.MethodPost, "/orders", map[string]any{
		"user_id": 1,
		"items":   []map[string]any{{"product_id": 101, "qty": 2}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var o orders.Order
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if o.TotalCents != 1000 {
		t.Errorf("expected total 1000, got %d", o.TotalCents)
	}
	if o.Status != orders.StatusPending {
		t.Errorf("expected pending, got %s", o.Status)
	}
}

func TestPlaceOrderEndpoint_InvalidJSON(t *testing.T) {
	r := newTestRouter(newFakeStore(10))

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPlaceOrderEndpoint_EmptyItems(t *testing.T) {
	r := newTestRouter(newFakeStore(10))

	w := doJSON(t, r, http.MethodPost, "/orders", map[string]any{"user_id": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceOrderEndpoint_InsufficientStock(t *testing.T) {
	r := newTestRouter(newFakeStore(1))

	w := doJSON(t, r, http.MethodPost, "/orders", map[string]any{
		"user_id": 1,
		"items":   []map[string]any{{"product_id": 101, "qty": 5}},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Kind      orders.Kind `json:"kind"`
		ProductID int64       `json:"product_id"`
		Available int         `json:"available"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Kind != orders.KindInsufficientStock {
		t.Errorf("expected insufficient_stock kind, got %q", body.Kind)
	}
	if body.ProductID != 101 || body.Available != 1 {
		t.Errorf("missing offending product details: %+v", body)
	}
}

func TestPlaceOrderEndpoint_UnknownProduct(t *testing.T) {
	r := newTestRouter(newFakeStore(10))

	w := doJSON(t, r, http.MethodPost, "/orders", map[string]any{
		"user_id": 1,
		"items":   []map[string]any{{"product_id": 999, "qty": 1}},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestPlaceOrderEndpoint_IdempotentReplay(t *testing.T) {
	store := newFakeStore(10)
	r := newTestRouter(store)

	body := map[string]any{
		"user_id":         1,
		"items":           []map[string]any{{"product_id": 101, "qty": 2}},
		"idempotency_key": "replay-1",
	}
	first := doJSON(t, r, http.MethodPost, "/orders", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	second := doJSON(t, r, http.MethodPost, "/orders", body)
	if second.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", second.Code)
	}

	var o1, o2 orders.Order
	_ = json.Unmarshal(first.Body.Bytes(), &o1)
	_ = json.Unmarshal(second.Body.Bytes(), &o2)
	if o1.ID != o2.ID {
		t.Errorf("replay returned a different order: %d vs %d", o1.ID, o2.ID)
	}
	if store.stock != 8 {
		t.Errorf("stock must be decremented exactly once, got %d", store.stock)
	}
}

func TestPlaceOrderEndpoint_IdemCacheHit(t *testing.T) {
	store := newFakeStore(10)
	idem := newFakeIdemCache()
	r := newTestRouterIdem(store, idem)

	body := map[string]any{
		"user_id":         1,
		"items":           []map[string]any{{"product_id": 101, "qty": 2}},
		"idempotency_key": "cached-1",
	}
	first := doJSON(t, r, http.MethodPost, "/orders", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	if len(idem.keys) != 1 {
		t.Fatalf("placement must record the idempotency key, got %d keys", len(idem.keys))
	}
	callsAfterFirst := store.placeCalls

	second := doJSON(t, r, http.MethodPost, "/orders", body)
	if second.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", second.Code)
	}
	if store.placeCalls != callsAfterFirst {
		t.Errorf("cache hit must not reach the placement path, calls went %d -> %d", callsAfterFirst, store.placeCalls)
	}

	var o1, o2 orders.Order
	_ = json.Unmarshal(first.Body.Bytes(), &o1)
	_ = json.Unmarshal(second.Body.Bytes(), &o2)
	if o1.ID != o2.ID {
		t.Errorf("cache hit returned a different order: %d vs %d", o1.ID, o2.ID)
	}
	if store.stock != 8 {
		t.Errorf("stock must be decremented exactly once, got %d", store.stock)
	}
}

func TestPlaceOrderEndpoint_StaleIdemCacheFallsThrough(t *testing.T) {
	store := newFakeStore(10)
	idem := newFakeIdemCache()
	idem.keys["stale-1"] = 999 // points at an order the store does not have

	r := newTestRouterIdem(store, idem)
	w := doJSON(t, r, http.MethodPost, "/orders", map[string]any{
		"user_id":         1,
		"items":           []map[string]any{{"product_id": 101, "qty": 1}},
		"idempotency_key": "stale-1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("stale cache entry must fall through to placement, got %d: %s", w.Code, w.Body.String())
	}
	if store.placeCalls != 1 {
		t.Errorf("expected the placement path to run, placeCalls=%d", store.placeCalls)
	}
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	r := newTestRouter(newFakeStore(10))

	w := doJSON(t, r, http.MethodGet, "/orders/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestTransitionEndpoint(t *testing.T) {
	store := newFakeStore(10)
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/orders", map[string]any{
		"user_id": 1,
		"items":   []map[string]any{{"product_id": 101, "qty": 1}},
	})
	var o orders.Order
	_ = json.Unmarshal(w.Body.Bytes(), &o)

	w = doJSON(t, r, http.MethodPost, "/orders/1/status", map[string]any{"status": "confirmed"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/orders/1/status", map[string]any{"status": "delivered"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("illegal transition: expected 400, got %d", w.Code)
	}
}
