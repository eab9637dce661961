package usecase

import (
	"github.com/shopspring/decimal"
)

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDecimal(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
