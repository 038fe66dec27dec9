package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// state: все коллекции in-memory хранилища.
type state struct {
	carts            map[string]domain.Cart
	products         map[string]domain.Product
	shops            map[string]domain.Shop
	customers        map[string]domain.Customer
	orders           map[string]domain.Order
	shopOrders       map[string]domain.ShopOrder
	payments         map[string]domain.Payment
	paymentsByIntent map[string]string
	inventoryLogs    []domain.InventoryLog
	timeline         map[string][]domain.TimelineEvent
	outbox           map[string]outboxRecord
}

func newState() *state {
	return &state{
		carts:            make(map[string]domain.Cart),
		products:         make(map[string]domain.Product),
		shops:            make(map[string]domain.Shop),
		customers:        make(map[string]domain.Customer),
		orders:           make(map[string]domain.Order),
		shopOrders:       make(map[string]domain.ShopOrder),
		payments:         make(map[string]domain.Payment),
		paymentsByIntent: make(map[string]string),
		timeline:         make(map[string][]domain.TimelineEvent),
		outbox:           make(map[string]outboxRecord),
	}
}

// clone делает глубокую копию: транзакция работает с черновиком и подменяет state при commit.
func (s *state) clone() *state {
	dst := newState()
	for k, v := range s.carts {
		dst.carts[k] = v.Clone()
	}
	for k, v := range s.products {
		dst.products[k] = v
	}
	for k, v := range s.shops {
		dst.shops[k] = v
	}
	for k, v := range s.customers {
		dst.customers[k] = v
	}
	for k, v := range s.orders {
		dst.orders[k] = v
	}
	for k, v := range s.shopOrders {
		dst.shopOrders[k] = v.Clone()
	}
	for k, v := range s.payments {
		dst.payments[k] = v
	}
	for k, v := range s.paymentsByIntent {
		dst.paymentsByIntent[k] = v
	}
	for k, v := range s.outbox {
		dst.outbox[k] = v
	}
	dst.inventoryLogs = append([]domain.InventoryLog(nil), s.inventoryLogs...)
	for k, v := range s.timeline {
		dst.timeline[k] = append([]domain.TimelineEvent(nil), v...)
	}
	return dst
}

// scope даёт репозиториям доступ к state: напрямую под mutex или к черновику транзакции.
type scope interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Транзакции сериализуются одним mutex; внутри fn нельзя обращаться к методам самого Store.
type Store struct {
	mu          sync.RWMutex
	st          *state
	idempotency *idempotencyKeys
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		st:          newState(),
		idempotency: newIdempotencyRepository(),
	}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// InTx выполняет fn над копией состояния и публикует её только при успехе.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(repositories{sc: &txScope{st: draft}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Idempotency возвращает репозиторий ключей идемпотентности.
func (s *Store) Idempotency() domain.IdempotencyRepository { return s.idempotency }

func (s *Store) Carts() domain.CartRepository { return repositories{sc: s}.Carts() }
func (s *Store) Products() domain.ProductRepository { return repositories{sc: s}.Products() }
func (s *Store) Shops() domain.ShopRepository { return repositories{sc: s}.Shops() }
func (s *Store) Customers() domain.CustomerDirectory { return repositories{sc: s}.Customers() }
func (s *Store) Orders() domain.OrderRepository { return repositories{sc: s}.Orders() }
func (s *Store) ShopOrders() domain.ShopOrderRepository { return repositories{sc: s}.ShopOrders() }
func (s *Store) Payments() domain.PaymentRepository { return repositories{sc: s}.Payments() }
func (s *Store) InventoryLogs() domain.InventoryLogRepository {
	return repositories{sc: s}.InventoryLogs()
}
func (s *Store) Timeline() domain.TimelineRepository { return repositories{sc: s}.Timeline() }
func (s *Store) Outbox() domain.OutboxRepository { return repositories{sc: s}.Outbox() }

// txScope работает с черновиком; блокировку держит InTx.
type txScope struct {
	st *state
}

func (t *txScope) read(fn func(st *state) error) error { return fn(t.st) }
func (t *txScope) write(fn func(st *state) error) error { return fn(t.st) }

type repositories struct {
	sc scope
}

func (r repositories) Carts() domain.CartRepository { return &cartRepository{sc: r.sc} }
func (r repositories) Products() domain.ProductRepository { return &productRepository{sc: r.sc} }
func (r repositories) Shops() domain.ShopRepository { return &shopRepository{sc: r.sc} }
func (r repositories) Customers() domain.CustomerDirectory { return &customerDirectory{sc: r.sc} }
func (r repositories) Orders() domain.OrderRepository { return &orderRepository{sc: r.sc} }
func (r repositories) ShopOrders() domain.ShopOrderRepository { return &shopOrderRepository{sc: r.sc} }
func (r repositories) Payments() domain.PaymentRepository { return &paymentRepository{sc: r.sc} }
func (r repositories) Timeline() domain.TimelineRepository { return &timelineRepository{sc: r.sc} }
func (r repositories) Outbox() domain.OutboxRepository { return &outboxRepository{sc: r.sc} }
func (r repositories) InventoryLogs() domain.InventoryLogRepository {
	return &inventoryLogRepository{sc: r.sc}
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.Repositories = repositories{}
)
