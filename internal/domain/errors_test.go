package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "idempotency already exists", err: ErrIdempotencyKeyAlreadyExists, want: true},
		{name: "idempotency hash mismatch", err: ErrIdempotencyHashMismatch, want: true},
		{name: "wrapped", err: fmt.Errorf("create: %w", ErrIdempotencyHashMismatch), want: true},
		{name: "other error", err: ErrIdempotencyKeyNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIdempotencyConflict(tt.err); got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsufficientStockError(t *testing.T) {
	err := fmt.Errorf("checkout: %w", &InsufficientStockError{
		ProductID: "p-1",
		Name:      "Tea",
		Requested: 3,
		Available: 1,
	})

	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatal("expected errors.Is to match ErrInsufficientStock")
	}

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatal("expected errors.As to extract InsufficientStockError")
	}
	if stockErr.ProductID != "p-1" || stockErr.Available != 1 {
		t.Fatalf("unexpected payload: %+v", stockErr)
	}
}

func TestGatewayError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := &GatewayError{Message: "create order failed", Err: cause}

	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatal("expected ErrGatewayUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if (&GatewayError{Message: "bad key"}).Error() != "payment gateway: bad key" {
		t.Fatal("unexpected message without cause")
	}
}

func TestIsNotFound(t *testing.T) {
	for _, err := range []error{ErrOrderNotFound, ErrPaymentNotFound, ErrProductNotFound, ErrShopNotFound, ErrCustomerNotFound} {
		if !IsNotFound(fmt.Errorf("wrap: %w", err)) {
			t.Fatalf("expected %v to be not found", err)
		}
	}
	if IsNotFound(ErrForbidden) {
		t.Fatal("forbidden is not a not-found error")
	}
}

func TestWebhookSignatureInvalidIsUnauthorized(t *testing.T) {
	err := fmt.Errorf("webhook: %w", ErrWebhookSignatureInvalid)

	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("webhook signature failure must classify as unauthorized")
	}
	if errors.Is(err, ErrSignatureInvalid) {
		t.Fatal("webhook signature failure must not look like a client signature failure")
	}
}
