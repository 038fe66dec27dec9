package app

import (
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/gateway"
)

// Секреты mock-шлюза; реальные ключи задаются через окружение.
const (
	mockKeySecret     = "mock_key_secret"
	mockWebhookSecret = "mock_webhook_secret"
)

// gatewaySetup: клиент шлюза и секреты для проверки подписей.
type gatewaySetup struct {
	client        domain.PaymentGateway
	keySecret     string
	webhookSecret string
}

func initGateway(cfg Config, logger *log.Entry) (gatewaySetup, error) {
	keyID := strings.TrimSpace(cfg.GatewayKeyID)
	keySecret := strings.TrimSpace(cfg.GatewayKeySecret)
	webhookSecret := strings.TrimSpace(cfg.GatewayWebhookSecret)

	if keyID == "" || keySecret == "" {
		if !cfg.AllowMockGateway {
			return gatewaySetup{}, errors.New("payment gateway key id and key secret are required (or allow the mock gateway)")
		}
		logger.Warn("payment gateway keys are not set, using mock gateway")
		if webhookSecret == "" {
			webhookSecret = mockWebhookSecret
		}
		return gatewaySetup{
			client:        gateway.NewMock(keyID),
			keySecret:     mockKeySecret,
			webhookSecret: webhookSecret,
		}, nil
	}

	client, err := gateway.NewRazorpay(gateway.Config{
		KeyID:     keyID,
		KeySecret: keySecret,
		BaseURL:   cfg.GatewayBaseURL,
		Timeout:   cfg.GatewayTimeout,
		Logger:    logger.WithField("layer", "gateway"),
	})
	if err != nil {
		return gatewaySetup{}, err
	}
	if webhookSecret == "" {
		logger.Warn("webhook secret is not set, gateway webhooks will be rejected")
	}

	return gatewaySetup{client: client, keySecret: keySecret, webhookSecret: webhookSecret}, nil
}
