package domain

import "errors"

var (
	// ErrUnknownRetailer is returned when no adapter is registered under the requested name
	ErrUnknownRetailer = errors.New("unknown retailer")

	// ErrCatalogNotFound is returned when no catalog snapshot exists for a retailer yet
	ErrCatalogNotFound = errors.New("catalog not found")

	// ErrRefreshInProgress is returned when a refresh for the same retailer is already running
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrEmptyCategorySnapshot is returned when a retailer reports no categories at all.
	// Persisted state is left untouched in that case.
	ErrEmptyCategorySnapshot = errors.New("fresh category snapshot is empty")

	// ErrNoTaxonomy is returned by retailers that do not expose a category taxonomy
	ErrNoTaxonomy = errors.New("retailer has no category taxonomy")

	// ErrCategoryStore is returned when persisted category state cannot be read or written
	ErrCategoryStore = errors.New("category store failure")

	// ErrRetailerAPI is returned when a retailer API request fails
	ErrRetailerAPI = errors.New("retailer API request failed")

	// ErrNotFound is returned when a retailer API responds with 404
	ErrNotFound = errors.New("resource not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidQuantity is returned when a size quantity is not a positive number
	ErrInvalidQuantity = errors.New("invalid quantity")
)
