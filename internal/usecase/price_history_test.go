package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func TestMergePriceHistory(t *testing.T) {
	previous := []domain.PricePoint{{Date: "2024-01-01", Price: mustDecimal("1.5")}}

	t.Run("appends a changed price", func(t *testing.T) {
		got := MergePriceHistory(previous, "2024-01-02", nullDecimal("1.6"))

		require.Len(t, got, 2)
		assert.Equal(t, "2024-01-01", got[0].Date)
		assert.True(t, got[0].Price.Equal(mustDecimal("1.5")))
		assert.Equal(t, "2024-01-02", got[1].Date)
		assert.True(t, got[1].Price.Equal(mustDecimal("1.6")))
	})

	t.Run("does not modify the previous slice", func(t *testing.T) {
		_ = MergePriceHistory(previous, "2024-01-02", nullDecimal("1.6"))

		require.Len(t, previous, 1)
		assert.True(t, previous[0].Price.Equal(mustDecimal("1.5")))
	})

	t.Run("starts a history for new products", func(t *testing.T) {
		got := MergePriceHistory(nil, "2024-01-02", nullDecimal("0.99"))

		require.Len(t, got, 1)
		assert.Equal(t, "2024-01-02", got[0].Date)
	})

	t.Run("unchanged price adds nothing", func(t *testing.T) {
		got := MergePriceHistory(previous, "2024-01-02", nullDecimal("1.50"))

		assert.Len(t, got, 1)
	})

	t.Run("same day observation replaces the last entry", func(t *testing.T) {
		got := MergePriceHistory(previous, "2024-01-01", nullDecimal("1.4"))

		require.Len(t, got, 1)
		assert.True(t, got[0].Price.Equal(mustDecimal("1.4")))
	})

	t.Run("missing price keeps history as is", func(t *testing.T) {
		got := MergePriceHistory(previous, "2024-01-02", decimal.NullDecimal{})

		assert.Equal(t, previous, got)
	})
}
