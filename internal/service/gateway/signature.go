package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign возвращает hex(HMAC-SHA256(secret, message)).
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentSignature: подпись, которую шлюз отдаёт клиенту после оплаты: HMAC над "intentID|paymentID".
func PaymentSignature(keySecret, intentID, paymentID string) string {
	return Sign(keySecret, []byte(intentID+"|"+paymentID))
}

// VerifyPaymentSignature сравнивает подпись клиента за постоянное время.
// Пустой секрет не проходит проверку.
func VerifyPaymentSignature(keySecret, intentID, paymentID, signature string) bool {
	if keySecret == "" {
		return false
	}
	return equalHex(PaymentSignature(keySecret, intentID, paymentID), signature)
}

// VerifyWebhookSignature проверяет подпись сырого тела webhook.
func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	if webhookSecret == "" {
		return false
	}
	return equalHex(Sign(webhookSecret, body), signature)
}

func equalHex(expected, got string) bool {
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}
