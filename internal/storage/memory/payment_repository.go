package memory

import (
	"context"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

type paymentRepository struct {
	sc scope
}

func (r *paymentRepository) Create(_ context.Context, payment domain.Payment) error {
	return r.sc.write(func(st *state) error {
		if _, exists := st.payments[payment.ID]; exists {
			return domain.ErrAlreadyExists
		}
		if _, exists := st.paymentsByIntent[payment.IntentID]; exists {
			return domain.ErrAlreadyExists
		}
		st.payments[payment.ID] = payment
		st.paymentsByIntent[payment.IntentID] = payment.ID
		return nil
	})
}

func (r *paymentRepository) GetByIntentID(_ context.Context, intentID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.sc.read(func(st *state) error {
		id, ok := st.paymentsByIntent[intentID]
		if !ok {
			return domain.ErrPaymentNotFound
		}
		payment = st.payments[id]
		return nil
	})
	return payment, err
}

// LockByIntentID совпадает с GetByIntentID: транзакции in-memory хранилища и так сериализованы.
func (r *paymentRepository) LockByIntentID(ctx context.Context, intentID string) (domain.Payment, error) {
	return r.GetByIntentID(ctx, intentID)
}

func (r *paymentRepository) GetByOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.sc.read(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				payment = p
				return nil
			}
		}
		return domain.ErrPaymentNotFound
	})
	return payment, err
}

func (r *paymentRepository) Save(_ context.Context, payment domain.Payment) error {
	return r.sc.write(func(st *state) error {
		if _, ok := st.payments[payment.ID]; !ok {
			return domain.ErrPaymentNotFound
		}
		st.payments[payment.ID] = payment
		return nil
	})
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
