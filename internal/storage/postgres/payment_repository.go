package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const paymentColumns = `
	id, order_id, customer_id, provider, intent_id, gateway_payment_id, signature,
	amount_minor, currency, status, created_at, updated_at`

type paymentRepository struct {
	q querier
}

func (r *paymentRepository) Create(ctx context.Context, p domain.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		p.ID, p.OrderID, p.CustomerID, p.Provider, p.IntentID, p.GatewayPaymentID, p.Signature,
		p.AmountMinor, p.Currency, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string) (domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE intent_id = $1`, intentID)
}

// LockByIntentID держит FOR UPDATE до конца транзакции: параллельные исполнения одного intent сериализуются.
func (r *paymentRepository) LockByIntentID(ctx context.Context, intentID string) (domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE intent_id = $1 FOR UPDATE`, intentID)
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	return r.getOne(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID)
}

func (r *paymentRepository) Save(ctx context.Context, p domain.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE payments
		SET gateway_payment_id = $2,
		    signature = $3,
		    status = $4,
		    updated_at = $5
		WHERE id = $1
	`, p.ID, p.GatewayPaymentID, p.Signature, string(p.Status), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) getOne(ctx context.Context, query string, arg string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		p      domain.Payment
		status string
	)
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.OrderID, &p.CustomerID, &p.Provider, &p.IntentID, &p.GatewayPaymentID, &p.Signature,
		&p.AmountMinor, &p.Currency, &status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return p, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
