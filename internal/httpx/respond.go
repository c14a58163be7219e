package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/andikafs/go-shop-api/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error string      `json:"error"`
	Kind  orders.Kind `json:"kind,omitempty"`
	// insufficient_stock details
	ProductID int64 `json:"product_id,omitempty"`
	Available int   `json:"available,omitempty"`
}

// writeError maps the orders error taxonomy onto transport status codes:
// 400 validation, 404 not found, 409 insufficient stock, 503 transient.
func writeError(w http.ResponseWriter, err error) {
	body := errBody{Error: err.Error(), Kind: orders.KindOf(err)}
	code := http.StatusInternalServerError
	switch body.Kind {
	case orders.KindValidation:
		code = http.StatusBadRequest
	case orders.KindNotFound:
		code = http.StatusNotFound
	case orders.KindInsufficientStock:
		code = http.StatusConflict
	case orders.KindTransient:
		code = http.StatusServiceUnavailable
	default:
		body.Error = "internal error"
	}
	if e, ok := err.(*orders.Error); ok && e.Kind == orders.KindInsufficientStock {
		body.ProductID = e.ProductID
		body.Available = e.Available
	}
	writeJSON(w, code, body)
}

// parsePage reads limit/offset query params: limit defaults to 20,
// capped at 100; offset defaults to 0.
func parsePage(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func pathID(param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	return id, err == nil && id > 0
}
