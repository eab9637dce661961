package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

// MergePriceHistory appends today's observation to a product's previous history.
// The history records changes only: an unchanged price adds nothing, and a second
// observation on the same day replaces the first.
func MergePriceHistory(previous []domain.PricePoint, today string, price decimal.NullDecimal) []domain.PricePoint {
	history := make([]domain.PricePoint, len(previous), len(previous)+1)
	copy(history, previous)

	if !price.Valid {
		return history
	}

	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Date == today {
			history[n-1].Price = price.Decimal
			return history
		}
		if last.Price.Equal(price.Decimal) {
			return history
		}
	}

	return append(history, domain.PricePoint{Date: today, Price: price.Decimal})
}
