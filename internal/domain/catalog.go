package domain

import "time"

// Catalog is the result of one refresh run for a retailer
type Catalog struct {
	RunID       string             `json:"runId"`
	Retailer    string             `json:"retailer"`
	Date        string             `json:"date"`
	RefreshedAt time.Time          `json:"refreshedAt"`
	Products    []CanonicalProduct `json:"products"`
	Categories  []Category         `json:"categories"`
	Stats       CatalogStats       `json:"stats"`
}

// CatalogStats summarizes a refresh run
type CatalogStats struct {
	RawProducts       int `json:"rawProducts"`
	Products          int `json:"products"`
	SkippedRecords    int `json:"skippedRecords"`
	DuplicateRecords  int `json:"duplicateRecords"`
	UnparseableSizes  int `json:"unparseableSizes"`
	UnknownUnits      int `json:"unknownUnits"`
	UnmappedProducts  int `json:"unmappedProducts"`
	MintedCategories  int `json:"mintedCategories"`
	RetiredCategories int `json:"retiredCategories"`
}

// CatalogEvent is published after a successful refresh
type CatalogEvent struct {
	Type      string       `json:"type"`
	RunID     string       `json:"runId"`
	Retailer  string       `json:"retailer"`
	Date      string       `json:"date"`
	Stats     CatalogStats `json:"stats"`
	Timestamp time.Time    `json:"timestamp"`
}

// EventCatalogRefreshed is the type of the event emitted after every refresh
const EventCatalogRefreshed = "catalog.refreshed"
