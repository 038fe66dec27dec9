package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/gateway"
)

const testKeySecret = "s3cret"

func TestVerifier_ValidSignatureFulfills(t *testing.T) {
	store := seedPendingOrder(t, 10)
	verifier := NewVerifier(newTestEngine(store), testKeySecret)
	ctx := context.Background()

	res, err := verifier.Verify(ctx, VerifyRequest{
		CustomerID:       "cust-1",
		IntentID:         testIntent,
		GatewayPaymentID: "pay_gw_1",
		Signature:        gateway.PaymentSignature(testKeySecret, testIntent, "pay_gw_1"),
	})
	require.NoError(t, err)
	require.Equal(t, VerifyResult{OrderID: "order-1", Status: domain.OrderStatusPaid, Outcome: OutcomeFulfilled}, res)
}

func TestVerifier_BadSignatureFailsPayment(t *testing.T) {
	store := seedPendingOrder(t, 10)
	verifier := NewVerifier(newTestEngine(store), testKeySecret)
	ctx := context.Background()

	_, err := verifier.Verify(ctx, VerifyRequest{
		CustomerID:       "cust-1",
		IntentID:         testIntent,
		GatewayPaymentID: "pay_gw_1",
		Signature:        gateway.PaymentSignature("other-secret", testIntent, "pay_gw_1"),
	})
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)

	payment, err := store.Payments().GetByIntentID(ctx, testIntent)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusFailed, payment.Status)

	order, err := store.Orders().Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFailed, order.Status)

	events, err := store.Timeline().List(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.TimelinePaymentSignatureInvalid, events[0].Type)
}

func TestVerifier_BadSignatureAfterSuccessKeepsPaid(t *testing.T) {
	store := seedPendingOrder(t, 10)
	verifier := NewVerifier(newTestEngine(store), testKeySecret)
	ctx := context.Background()

	good := VerifyRequest{
		CustomerID:       "cust-1",
		IntentID:         testIntent,
		GatewayPaymentID: "pay_gw_1",
		Signature:        gateway.PaymentSignature(testKeySecret, testIntent, "pay_gw_1"),
	}
	_, err := verifier.Verify(ctx, good)
	require.NoError(t, err)

	bad := good
	bad.Signature = "deadbeef"
	_, err = verifier.Verify(ctx, bad)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)

	order, err := store.Orders().Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestVerifier_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     VerifyRequest
		wantErr error
	}{
		{
			name:    "no session",
			req:     VerifyRequest{IntentID: testIntent, GatewayPaymentID: "p", Signature: "s"},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name:    "missing signature",
			req:     VerifyRequest{CustomerID: "cust-1", IntentID: testIntent, GatewayPaymentID: "p"},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "unknown intent",
			req:     VerifyRequest{CustomerID: "cust-1", IntentID: "order_x", GatewayPaymentID: "p", Signature: "s"},
			wantErr: domain.ErrPaymentNotFound,
		},
		{
			name:    "foreign payment",
			req:     VerifyRequest{CustomerID: "cust-2", IntentID: testIntent, GatewayPaymentID: "p", Signature: "s"},
			wantErr: domain.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedPendingOrder(t, 10)
			verifier := NewVerifier(newTestEngine(store), testKeySecret)

			_, err := verifier.Verify(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			payment, err := store.Payments().GetByIntentID(context.Background(), testIntent)
			require.NoError(t, err)
			require.Equal(t, domain.PaymentStatusCreated, payment.Status)
		})
	}
}
