package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestPaymentValidate(t *testing.T) {
	valid := domain.Payment{
		OrderID:     "order-1",
		CustomerID:  "customer-1",
		IntentID:    "order_abc",
		AmountMinor: 22500,
		Currency:    "INR",
		Status:      domain.PaymentStatusCreated,
	}
	if errs := valid.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	broken := domain.Payment{}
	if errs := broken.Validate(); len(errs) != 5 {
		t.Fatalf("expected 5 errors for empty payment, got %d: %v", len(errs), errs)
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	if domain.PaymentStatusCreated.IsTerminal() {
		t.Fatal("created must not be terminal")
	}
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusSuccess,
		domain.PaymentStatusFailed,
		domain.PaymentStatusRefunded,
	} {
		if !status.IsTerminal() {
			t.Fatalf("%s must be terminal", status)
		}
	}
}
