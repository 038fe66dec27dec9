package gateway

import "testing"

func TestPaymentSignature_KnownVector(t *testing.T) {
	const want = "85fe2073d0f4d9dcfa1975b4804eee657cfa330ad893c7f326ccddec1ba10bc9"

	if got := PaymentSignature("s3cret", "order_abc", "pay_123"); got != want {
		t.Fatalf("unexpected signature: got %s want %s", got, want)
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	valid := PaymentSignature("s3cret", "order_abc", "pay_123")

	tests := []struct {
		name      string
		secret    string
		intentID  string
		paymentID string
		signature string
		want      bool
	}{
		{name: "valid", secret: "s3cret", intentID: "order_abc", paymentID: "pay_123", signature: valid, want: true},
		{name: "wrong secret", secret: "other", intentID: "order_abc", paymentID: "pay_123", signature: valid, want: false},
		{name: "swapped ids", secret: "s3cret", intentID: "pay_123", paymentID: "order_abc", signature: valid, want: false},
		{name: "uppercase hex", secret: "s3cret", intentID: "order_abc", paymentID: "pay_123", signature: "85FE2073D0F4D9DCFA1975B4804EEE657CFA330AD893C7F326CCDDEC1BA10BC9", want: false},
		{name: "empty signature", secret: "s3cret", intentID: "order_abc", paymentID: "pay_123", signature: "", want: false},
		{name: "truncated", secret: "s3cret", intentID: "order_abc", paymentID: "pay_123", signature: valid[:10], want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPaymentSignature(tt.secret, tt.intentID, tt.paymentID, tt.signature); got != tt.want {
				t.Fatalf("VerifyPaymentSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	const sig = "4673dd707ef4c41b987cb7fefe1583142dc702388c93145b7814b9ad3d3c183e"

	if !VerifyWebhookSignature("whsec", body, sig) {
		t.Fatal("expected valid webhook signature")
	}
	if VerifyWebhookSignature("whsec", append(body, ' '), sig) {
		t.Fatal("modified body must not verify")
	}
	if VerifyWebhookSignature("", body, sig) {
		t.Fatal("empty secret must not verify a foreign signature")
	}
	if VerifyWebhookSignature("", body, Sign("", body)) {
		t.Fatal("empty secret must never verify")
	}
	if VerifyPaymentSignature("", "order_abc", "pay_123", PaymentSignature("", "order_abc", "pay_123")) {
		t.Fatal("empty key secret must never verify")
	}
}
