// Package jumbo fetches the Jumbo catalog through the jumbo.com GraphQL API.
package jumbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/retailer"
	"github.com/pricelens/backend/internal/infrastructure/retailer/ah"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Name is the retailer key used in storage, cache and the API
const Name = "jumbo"

const pageSize = 24

const searchProductsQuery = `query SearchProducts($input: ProductSearchInput!) {
  searchProducts(input: $input) {
    start
    count
    products {
      sku
      title
      brand
      packSizeDisplay
      link
      prices: price {
        price
        promoPrice
      }
    }
  }
}`

// Config holds the adapter settings
type Config struct {
	BaseURL  string
	Parallel int
}

// Retailer is the Jumbo adapter. Jumbo exposes no category taxonomy.
type Retailer struct {
	client   *retailer.Client
	baseURL  string
	parallel int
	logger   *logrus.Entry
}

// New creates the adapter
func New(cfg Config, client *retailer.Client, logger *logrus.Logger) *Retailer {
	return &Retailer{
		client:   client,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		parallel: cfg.Parallel,
		logger:   logger.WithFields(logrus.Fields{"component": "retailer.jumbo", "retailer": Name}),
	}
}

func (r *Retailer) Name() string { return Name }

// Units returns the AH vocabulary; pack sizes use the same free-text format
func (r *Retailer) Units() domain.UnitTable { return ah.UnitTable() }

// FetchCategories always fails with domain.ErrNoTaxonomy
func (r *Retailer) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	return nil, domain.ErrNoTaxonomy
}

type searchInput struct {
	SearchType  string `json:"searchType"`
	SearchTerms string `json:"searchTerms"`
	FriendlyURL string `json:"friendlyUrl"`
	OffSet      int    `json:"offSet"`
	CurrentURL  string `json:"currentUrl"`
	PreviousURL string `json:"previousUrl"`
}

type searchRequest struct {
	OperationName string                 `json:"operationName"`
	Variables     map[string]searchInput `json:"variables"`
	Query         string                 `json:"query"`
}

type searchPage struct {
	Start    int                 `json:"start"`
	Count    int                 `json:"count"`
	Products []domain.RawProduct `json:"products"`
}

type searchResponse struct {
	Data struct {
		SearchProducts *searchPage `json:"searchProducts"`
	} `json:"data"`
}

// FetchProducts walks the product listing in rounds of `parallel` pages. The total
// is the smallest count any page reported; a round with no successful page ends the walk.
func (r *Retailer) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	parallel := r.parallel
	if parallel < 1 {
		parallel = 1
	}

	var products []domain.RawProduct
	total := math.MaxInt
	pages, failed := 0, 0

	for start := 0; start < total; {
		var offsets []int
		for i := 0; i < parallel && start < total; i++ {
			offsets = append(offsets, start)
			start += pageSize
		}

		results, err := retailer.Gather(ctx, parallel, len(offsets), r.logger, func(ctx context.Context, i int) ([]searchPage, error) {
			page, err := r.fetchPage(ctx, offsets[i])
			if err != nil {
				return nil, err
			}
			return []searchPage{*page}, nil
		})
		if err != nil {
			return nil, err
		}

		pages += len(offsets)
		failed += len(offsets) - len(results)
		if len(results) == 0 {
			break
		}
		for _, page := range results {
			products = append(products, page.Products...)
			if page.Count < total {
				total = page.Count
			}
		}
	}

	// Listings shift while the walk runs, so a product can show up on two pages
	listed := len(products)
	products = retailer.Dedupe(products, "sku")

	if len(products) == 0 && failed > 0 {
		return nil, fmt.Errorf("%w: all %d jumbo pages failed", domain.ErrRetailerAPI, failed)
	}

	r.logger.WithFields(logrus.Fields{
		"pages":    pages,
		"failed":   failed,
		"listed":   listed,
		"products": len(products),
	}).Info("products fetched")
	return products, nil
}

func (r *Retailer) fetchPage(ctx context.Context, offset int) (*searchPage, error) {
	listing := r.baseURL + "/producten/"
	req := searchRequest{
		OperationName: "SearchProducts",
		Variables: map[string]searchInput{
			"input": {
				SearchType:  "category",
				SearchTerms: "producten",
				FriendlyURL: "?searchType=category",
				OffSet:      offset,
				CurrentURL:  listing,
				PreviousURL: listing,
			},
		},
		Query: searchProductsQuery,
	}

	var resp searchResponse
	if err := r.client.PostJSON(ctx, r.baseURL+"/api/graphql", req, &resp); err != nil {
		return nil, fmt.Errorf("page @ %d: %w", offset, err)
	}
	if resp.Data.SearchProducts == nil {
		return nil, fmt.Errorf("%w: page @ %d: empty searchProducts", domain.ErrRetailerAPI, offset)
	}
	return resp.Data.SearchProducts, nil
}

type product struct {
	SKU             string `json:"sku"`
	Title           string `json:"title"`
	PackSizeDisplay string `json:"packSizeDisplay"`
	Link            string `json:"link"`
	Prices          struct {
		Price      *int64 `json:"price"`
		PromoPrice *int64 `json:"promoPrice"`
	} `json:"prices"`
}

// ExtractProduct decodes one GraphQL product; prices are in cents
func (r *Retailer) ExtractProduct(raw domain.RawProduct, today string) (domain.ProductFields, error) {
	var p product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.ProductFields{}, fmt.Errorf("decode jumbo product: %w", err)
	}
	if p.SKU == "" || p.Title == "" {
		return domain.ProductFields{}, errors.New("jumbo product without sku or title")
	}

	fields := domain.ProductFields{
		ID:       p.SKU,
		Name:     p.Title,
		SizeText: p.PackSizeDisplay,
		URL:      strings.TrimPrefix(p.Link, "/producten/"),
	}

	cents := p.Prices.PromoPrice
	if cents == nil || *cents == 0 {
		cents = p.Prices.Price
	}
	if cents != nil {
		fields.Price = decimal.NewNullDecimal(decimal.New(*cents, -2))
	}
	return fields, nil
}
