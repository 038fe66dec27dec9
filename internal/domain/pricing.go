package domain

import "github.com/shopspring/decimal"

const (
	// TaxRatePercent: фиксированная ставка налога.
	TaxRatePercent = 5
	// HandlingFeeMinor — фиксированный сбор за обработку (15 единиц валюты).
	HandlingFeeMinor int64 = 1500
	// minorUnitExponent: число знаков минимальной единицы (пайсы, центы).
	minorUnitExponent = 2
)

// PriceBreakdown — расчёт суммы к оплате. Один и тот же расчёт используется
// и для предварительной оценки, и при создании intent.
type PriceBreakdown struct {
	SubtotalMinor    int64
	TaxMinor         int64
	HandlingFeeMinor int64
	TotalMinor       int64
	Currency         string
}

// ComputePrice считает подытог, налог (округление до целой единицы валюты,
// половина от нуля) и итог. Неположительный итог даёт ErrInvalidAmount.
func ComputePrice(items []CartItem, currency string) (PriceBreakdown, error) {
	if currency == "" {
		return PriceBreakdown{}, ErrCurrencyRequired
	}
	if len(items) == 0 {
		return PriceBreakdown{}, ErrCartEmpty
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Qty <= 0 {
			return PriceBreakdown{}, ErrItemQtyInvalid
		}
		if item.PriceMinor < 0 {
			return PriceBreakdown{}, ErrItemPriceInvalid
		}
		subtotal = subtotal.Add(decimal.New(item.PriceMinor, 0).Mul(decimal.New(int64(item.Qty), 0)))
	}

	units := subtotal.Shift(-minorUnitExponent)
	tax := units.Mul(decimal.New(TaxRatePercent, -2)).Round(0).Shift(minorUnitExponent)
	fee := decimal.New(HandlingFeeMinor, 0)
	total := subtotal.Add(tax).Add(fee)

	if !total.IsPositive() || !total.IsInteger() || total.GreaterThan(decimal.New(maxChargeMinor, 0)) {
		return PriceBreakdown{}, ErrInvalidAmount
	}

	return PriceBreakdown{
		SubtotalMinor:    subtotal.IntPart(),
		TaxMinor:         tax.IntPart(),
		HandlingFeeMinor: HandlingFeeMinor,
		TotalMinor:       total.IntPart(),
		Currency:         currency,
	}, nil
}

// maxChargeMinor ограничивает сумму, чтобы она помещалась в int64 у шлюза.
const maxChargeMinor int64 = 1 << 53
