package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const productBatchSize = 500

type productRow struct {
	Retailer     string              `gorm:"primaryKey;size:64"`
	ProductID    string              `gorm:"primaryKey;size:128"`
	Name         string              `gorm:"not null"`
	Price        decimal.NullDecimal `gorm:"type:numeric"`
	Unit         string              `gorm:"size:16"`
	Quantity     decimal.NullDecimal `gorm:"type:numeric"`
	UnitPrice    decimal.NullDecimal `gorm:"type:numeric"`
	Bio          bool
	URL          string
	CategoryCode *int
	PriceHistory datatypes.JSON
	Issues       datatypes.JSON
	UpdatedAt    time.Time
}

func (productRow) TableName() string { return "products" }

// ProductStore persists canonical products with their price histories
type ProductStore struct {
	db *gorm.DB
}

// NewProductStore creates a product store on an opened database
func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// PriceHistories returns the stored history of every product of a retailer, keyed by product id
func (s *ProductStore) PriceHistories(ctx context.Context, retailer string) (map[string][]domain.PricePoint, error) {
	var rows []productRow
	err := s.db.WithContext(ctx).
		Select("product_id", "price_history").
		Where("retailer = ?", retailer).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	histories := make(map[string][]domain.PricePoint, len(rows))
	for _, row := range rows {
		if len(row.PriceHistory) == 0 {
			continue
		}
		var history []domain.PricePoint
		if err := json.Unmarshal(row.PriceHistory, &history); err != nil {
			return nil, fmt.Errorf("decode price history of %s/%s: %w", retailer, row.ProductID, err)
		}
		histories[row.ProductID] = history
	}
	return histories, nil
}

// SaveProducts upserts products by (retailer, product id)
func (s *ProductStore) SaveProducts(ctx context.Context, retailer string, products []domain.CanonicalProduct) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]productRow, 0, len(products))
	for _, p := range products {
		history, err := json.Marshal(p.PriceHistory)
		if err != nil {
			return fmt.Errorf("encode price history of %s: %w", p.ID, err)
		}
		issues, err := json.Marshal(p.Issues)
		if err != nil {
			return fmt.Errorf("encode issues of %s: %w", p.ID, err)
		}
		rows = append(rows, productRow{
			Retailer:     retailer,
			ProductID:    p.ID,
			Name:         p.Name,
			Price:        p.Price,
			Unit:         p.Unit,
			Quantity:     p.Quantity,
			UnitPrice:    p.UnitPrice,
			Bio:          p.Bio,
			URL:          p.URL,
			CategoryCode: p.CategoryCode,
			PriceHistory: datatypes.JSON(history),
			Issues:       datatypes.JSON(issues),
			UpdatedAt:    now,
		})
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "retailer"}, {Name: "product_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(&rows, productBatchSize).Error
}
