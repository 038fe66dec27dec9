package domain

import (
	"strings"
	"time"
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — ответ 2xx/4xx сохранён и отдаётся при повторе.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed: сохранён ответ 5xx.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord — ответ на checkout, закреплённый за ключом покупателя.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	}
	return false
}

// Expired сообщает, что запись можно удалить или занять заново.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Completed сообщает, что ответ уже записан и его можно воспроизвести.
func (r IdempotencyRecord) Completed() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}

// ReuseError объясняет, почему живой ключ нельзя занять запросом с requestHash.
func (r IdempotencyRecord) ReuseError(requestHash string) error {
	if r.RequestHash != requestHash {
		return ErrIdempotencyHashMismatch
	}
	return ErrIdempotencyKeyAlreadyExists
}

// NormalizeIdempotencyInput обрезает пробелы и проверяет ключ и хеш запроса.
func NormalizeIdempotencyInput(key, requestHash string) (string, string, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return "", "", ErrIdempotencyKeyRequired
	case requestHash == "":
		return "", "", ErrIdempotencyRequestHashRequired
	}
	return key, requestHash, nil
}
