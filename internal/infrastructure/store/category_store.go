package store

import (
	"context"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"gorm.io/gorm"
)

type categoryRow struct {
	Retailer    string `gorm:"primaryKey;size:64"`
	Code        int    `gorm:"primaryKey;autoIncrement:false"`
	Description string `gorm:"not null"`
	URL         string
	Active      bool
	UpdatedAt   time.Time
}

func (categoryRow) TableName() string { return "categories" }

// CategoryStore keeps one full category list per retailer
type CategoryStore struct {
	db *gorm.DB
}

// NewCategoryStore creates a category store on an opened database
func NewCategoryStore(db *gorm.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// LoadCategories returns the persisted list ordered by code; empty when nothing was saved
func (s *CategoryStore) LoadCategories(ctx context.Context, retailer string) ([]domain.Category, error) {
	var rows []categoryRow
	err := s.db.WithContext(ctx).
		Where("retailer = ?", retailer).
		Order("code").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, domain.Category{
			Description: row.Description,
			URL:         row.URL,
			Code:        row.Code,
			Active:      row.Active,
		})
	}
	return categories, nil
}

// SaveCategories replaces the retailer's list in one transaction
func (s *CategoryStore) SaveCategories(ctx context.Context, retailer string, categories []domain.Category) error {
	now := time.Now().UTC()
	rows := make([]categoryRow, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, categoryRow{
			Retailer:    retailer,
			Code:        c.Code,
			Description: c.Description,
			URL:         c.URL,
			Active:      c.Active,
			UpdatedAt:   now,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("retailer = ?", retailer).Delete(&categoryRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}
