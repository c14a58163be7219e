package orders

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if KindOf(Validationf("bad")) != KindValidation {
		t.Error("expected validation_error")
	}
	if KindOf(fmt.Errorf("wrap: %w", InsufficientStock(7, 3, 1))) != KindInsufficientStock {
		t.Error("KindOf must see through wrapping")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("untyped errors have no kind")
	}
}

func TestInsufficientStockDetails(t *testing.T) {
	err := InsufficientStock(7, 3, 1)
	if err.ProductID != 7 || err.Available != 1 {
		t.Errorf("details lost: %+v", err)
	}
}
