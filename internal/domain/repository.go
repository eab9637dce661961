package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for catalog snapshot caching
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CategoryStore persists one full category list per retailer.
// Reads and writes are always full lists; the last writer wins.
type CategoryStore interface {
	LoadCategories(ctx context.Context, retailer string) ([]Category, error)
	SaveCategories(ctx context.Context, retailer string, categories []Category) error
}

// ProductStore persists canonical products and their price histories
type ProductStore interface {
	PriceHistories(ctx context.Context, retailer string) (map[string][]PricePoint, error)
	SaveProducts(ctx context.Context, retailer string, products []CanonicalProduct) error
}

// EventPublisher publishes catalog events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event CatalogEvent) error
	Close() error
}

// Retailer is the capability set every retailer adapter implements.
// FetchCategories returns categories sorted by raw numeric id ascending.
type Retailer interface {
	Name() string
	Units() UnitTable
	FetchProducts(ctx context.Context) ([]RawProduct, error)
	FetchCategories(ctx context.Context) ([]Category, error)
	ExtractProduct(raw RawProduct, today string) (ProductFields, error)
}
