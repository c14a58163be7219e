package orders

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error class the HTTP layer maps to a
// status code. Storage errors never cross the package boundary raw;
// everything a caller can act on is one of these.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindTransient         Kind = "transient_error"
)

type Error struct {
	Kind Kind
	Msg  string

	// Set when Kind is insufficient_stock (and for product not_found).
	ProductID int64
	Available int
}

func (e *Error) Error() string { return e.Msg }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func ProductNotFound(productID int64) *Error {
	return &Error{
		Kind:      KindNotFound,
		Msg:       fmt.Sprintf("product %d not found", productID),
		ProductID: productID,
	}
}

func InsufficientStock(productID int64, requested, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Msg:       fmt.Sprintf("product %d: requested %d, available %d", productID, requested, available),
		ProductID: productID,
		Available: available,
	}
}

func Transientf(format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
