package app

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/service/gateway"
)

func TestInitGateway(t *testing.T) {
	logger := log.WithField("test", "gateway")

	t.Run("mock when allowed", func(t *testing.T) {
		setup, err := initGateway(Config{AllowMockGateway: true, GatewayKeyID: "rzp_test_demo"}, logger)
		if err != nil {
			t.Fatalf("initGateway: %v", err)
		}
		mock, ok := setup.client.(*gateway.Mock)
		if !ok {
			t.Fatalf("expected mock gateway, got %T", setup.client)
		}
		if mock.KeyID() != "rzp_test_demo" {
			t.Fatalf("unexpected key id %q", mock.KeyID())
		}
		if setup.keySecret != mockKeySecret || setup.webhookSecret != mockWebhookSecret {
			t.Fatalf("mock gateway must use mock secrets, got %+v", setup)
		}
	})

	t.Run("mock keeps configured webhook secret", func(t *testing.T) {
		setup, err := initGateway(Config{AllowMockGateway: true, GatewayWebhookSecret: " whsec "}, logger)
		if err != nil {
			t.Fatalf("initGateway: %v", err)
		}
		if setup.webhookSecret != "whsec" {
			t.Fatalf("expected trimmed webhook secret, got %q", setup.webhookSecret)
		}
	})

	t.Run("keys required without mock", func(t *testing.T) {
		if _, err := initGateway(Config{GatewayKeyID: "rzp_live"}, logger); err == nil {
			t.Fatal("expected error without key secret")
		}
	})

	t.Run("razorpay with keys", func(t *testing.T) {
		setup, err := initGateway(Config{
			GatewayKeyID:     "rzp_live_key",
			GatewayKeySecret: "live_secret",
			AllowMockGateway: true,
		}, logger)
		if err != nil {
			t.Fatalf("initGateway: %v", err)
		}
		if _, ok := setup.client.(*gateway.Razorpay); !ok {
			t.Fatalf("expected razorpay gateway, got %T", setup.client)
		}
		if setup.keySecret != "live_secret" {
			t.Fatalf("unexpected key secret %q", setup.keySecret)
		}
		if setup.webhookSecret != "" {
			t.Fatalf("webhook secret must stay empty, got %q", setup.webhookSecret)
		}
	})
}
