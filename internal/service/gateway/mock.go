package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// ProviderMock: код провайдера для локальной разработки.
const ProviderMock = "mock"

// Mock — конфигурируемый шлюз для тестов и локального запуска без Razorpay.
type Mock struct {
	mu sync.Mutex

	// NextErr возвращается следующим вызовом CreateIntent и сбрасывается.
	NextErr error
	// Err возвращается каждым вызовом, пока не сброшен.
	Err error

	keyID  string
	prefix string
	seq    int
	calls  []domain.IntentRequest
}

// NewMock возвращает mock со стабильным публичным ключом. Префикс идентификаторов
// свой у каждого экземпляра: после рестарта intent_id не совпадут с уже сохранёнными.
func NewMock(keyID string) *Mock {
	if keyID == "" {
		keyID = "rzp_test_mock"
	}
	return &Mock{keyID: keyID, prefix: uuid.NewString()[:8]}
}

// IntentID возвращает идентификатор, который выдаст n-й успешный CreateIntent.
func (m *Mock) IntentID(n int) string {
	return fmt.Sprintf("order_mock_%s_%d", m.prefix, n)
}

// CreateIntent выдаёт последовательные идентификаторы order_mock_<prefix>_N.
func (m *Mock) CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if err := ctx.Err(); err != nil {
		return domain.Intent{}, &domain.GatewayError{Message: "request canceled", Err: err}
	}
	if m.NextErr != nil {
		err := m.NextErr
		m.NextErr = nil
		return domain.Intent{}, err
	}
	if m.Err != nil {
		return domain.Intent{}, m.Err
	}

	m.seq++
	return domain.Intent{
		ID:          m.IntentID(m.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

// Calls возвращает копию всех запросов CreateIntent.
func (m *Mock) Calls() []domain.IntentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.IntentRequest(nil), m.calls...)
}

func (m *Mock) KeyID() string { return m.keyID }
func (m *Mock) Provider() string { return ProviderMock }

var _ domain.PaymentGateway = (*Mock)(nil)
