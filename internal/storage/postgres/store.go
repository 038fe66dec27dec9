package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const (
	pingTimeout = 5 * time.Second
	opTimeout   = 5 * time.Second

	uniqueViolationCode = "23505"
)

var errStoreClosed = errors.New("postgres store is not initialized")

// querier: общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

func (p poolSettings) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.maxOpen)
	db.SetMaxIdleConns(p.maxIdle)
	db.SetConnMaxLifetime(p.maxLifetime)
	db.SetConnMaxIdleTime(p.maxIdleTime)
}

// Store — хранилище маркетплейса поверх database/sql с драйвером pgx.
type Store struct {
	db     *sql.DB
	logger *log.Entry
	pool   poolSettings
}

type Option func(*Store)

// WithLogger задаёт логгер миграций и сопровождения.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxConns ограничивает пул; утилитам миграций хватает пары соединений.
func WithMaxConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pool.maxOpen = n
			s.pool.maxIdle = n
		}
	}
}

// Open подключается к PostgreSQL и пингует базу, прежде чем вернуть Store.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	store := &Store{
		logger: log.WithField("component", "postgres-store"),
		pool: poolSettings{
			maxOpen:     25,
			maxIdle:     25,
			maxLifetime: 30 * time.Minute,
			maxIdleTime: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(store)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	store.pool.apply(db)
	store.db = db

	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreClosed
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// InTx открывает транзакцию и отдаёт fn репозитории поверх неё.
// Ошибка fn или отмена ctx откатывает транзакцию.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Repositories) error) (err error) {
	if s == nil || s.db == nil {
		return errStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(repositories{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Idempotency возвращает репозиторий ключей идемпотентности вне транзакций заказа.
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return &idempotencyRepository{db: s.db}
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Carts() domain.CartRepository { return repositories{q: s.db}.Carts() }
func (s *Store) Products() domain.ProductRepository { return repositories{q: s.db}.Products() }
func (s *Store) Shops() domain.ShopRepository { return repositories{q: s.db}.Shops() }
func (s *Store) Customers() domain.CustomerDirectory { return repositories{q: s.db}.Customers() }
func (s *Store) Orders() domain.OrderRepository { return repositories{q: s.db}.Orders() }
func (s *Store) ShopOrders() domain.ShopOrderRepository { return repositories{q: s.db}.ShopOrders() }
func (s *Store) Payments() domain.PaymentRepository { return repositories{q: s.db}.Payments() }
func (s *Store) Timeline() domain.TimelineRepository { return repositories{q: s.db}.Timeline() }
func (s *Store) Outbox() domain.OutboxRepository { return repositories{q: s.db}.Outbox() }
func (s *Store) InventoryLogs() domain.InventoryLogRepository {
	return repositories{q: s.db}.InventoryLogs()
}

type repositories struct {
	q querier
}

func (r repositories) Carts() domain.CartRepository { return &cartRepository{q: r.q} }
func (r repositories) Products() domain.ProductRepository { return &productRepository{q: r.q} }
func (r repositories) Shops() domain.ShopRepository { return &shopRepository{q: r.q} }
func (r repositories) Customers() domain.CustomerDirectory { return &customerDirectory{q: r.q} }
func (r repositories) Orders() domain.OrderRepository { return &orderRepository{q: r.q} }
func (r repositories) ShopOrders() domain.ShopOrderRepository { return &shopOrderRepository{q: r.q} }
func (r repositories) Payments() domain.PaymentRepository { return &paymentRepository{q: r.q} }
func (r repositories) Timeline() domain.TimelineRepository { return &timelineRepository{q: r.q} }
func (r repositories) Outbox() domain.OutboxRepository { return &outboxRepository{q: r.q} }
func (r repositories) InventoryLogs() domain.InventoryLogRepository {
	return &inventoryLogRepository{q: r.q}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.Repositories = repositories{}
)
