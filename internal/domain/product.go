package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RawProduct is a single product record exactly as a retailer API returned it.
// Adapters decode it into their own shape in Retailer.ExtractProduct.
type RawProduct = json.RawMessage

// ProductFields is the retailer-independent partial record an adapter extracts
// from a RawProduct.
type ProductFields struct {
	ID    string
	Name  string
	Price decimal.NullDecimal
	// SizeText is the free-text package size, parsed by the unit-size parser.
	SizeText string
	// Size is set by retailers that report structured sizes; it takes precedence over SizeText.
	Size       *ParsedSize
	Bio        bool
	URL        string
	CategoryID string
}

// PricePoint is one observation in a product's price history
type PricePoint struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// Issue is a per-record data-quality signal attached to a canonical product
type Issue string

const (
	IssueUnparseableSize  Issue = "unparseable_size"
	IssueUnknownUnit      Issue = "unknown_unit"
	IssueInvalidQuantity  Issue = "invalid_quantity"
	IssueMissingPrice     Issue = "missing_price"
	IssueUnmappedCategory Issue = "unmapped_category"
)

// CanonicalProduct is a product normalized to the common catalog schema
type CanonicalProduct struct {
	ID           string              `json:"id"`
	Retailer     string              `json:"retailer"`
	Name         string              `json:"name"`
	Price        decimal.NullDecimal `json:"price"`
	PriceHistory []PricePoint        `json:"priceHistory"`
	Unit         string              `json:"unit,omitempty"`
	Quantity     decimal.NullDecimal `json:"quantity"`
	UnitPrice    decimal.NullDecimal `json:"unitPrice"`
	Bio          bool                `json:"bio"`
	URL          string              `json:"url"`
	CategoryCode *int                `json:"categoryCode,omitempty"`
	Issues       []Issue             `json:"issues,omitempty"`
}

// HasIssue reports whether the product carries the given data-quality issue
func (p *CanonicalProduct) HasIssue(issue Issue) bool {
	for _, i := range p.Issues {
		if i == issue {
			return true
		}
	}
	return false
}
