// Package ah fetches the Albert Heijn catalog from the public ah.nl search API.
package ah

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/retailer"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Name is the retailer key used in storage, cache and the API
const Name = "ah"

const pageSize = 1000

// Config holds the adapter settings
type Config struct {
	BaseURL  string
	Parallel int
}

// Retailer is the Albert Heijn adapter
type Retailer struct {
	client   *retailer.Client
	baseURL  string
	parallel int
	logger   *logrus.Entry
}

// New creates the adapter. The client must keep cookies: the search API answers 403
// until the product homepage has been visited.
func New(cfg Config, client *retailer.Client, logger *logrus.Logger) *Retailer {
	return &Retailer{
		client:   client,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		parallel: cfg.Parallel,
		logger:   logger.WithFields(logrus.Fields{"component": "retailer.ah", "retailer": Name}),
	}
}

func (r *Retailer) Name() string { return Name }

func (r *Retailer) Units() domain.UnitTable { return UnitTable() }

// UnitTable is the AH unit vocabulary. Jumbo reports sizes in the same free-text
// format and shares it.
func UnitTable() domain.UnitTable {
	one := decimal.NewFromInt(1)
	piece := domain.UnitConversion{Unit: domain.UnitPiece, Factor: one}
	gram := domain.UnitConversion{Unit: domain.UnitGram, Factor: one}
	kilo := domain.UnitConversion{Unit: domain.UnitGram, Factor: decimal.NewFromInt(1000)}
	milli := domain.UnitConversion{Unit: domain.UnitMilliliter, Factor: one}
	liter := domain.UnitConversion{Unit: domain.UnitMilliliter, Factor: decimal.NewFromInt(1000)}

	return domain.UnitTable{
		Absent: piece,
		Units: map[string]domain.UnitConversion{
			"blik":       piece,
			"bos":        piece,
			"bosje":      piece,
			"bundel":     piece,
			"doos":       piece,
			"flessen":    piece,
			"krop":       piece,
			"pakket":     piece,
			"plakjes":    piece,
			"rol":        piece,
			"sachets":    piece,
			"stuk":       piece,
			"stuks":      piece,
			"tabl":       piece,
			"tabletten":  piece,
			"tros":       piece,
			"wasbeurten": piece,

			"g":        gram,
			"gr":       gram,
			"gram":     gram,
			"kg":       kilo,
			"kilo":     kilo,
			"kilogram": kilo,

			"ml":    milli,
			"cl":    {Unit: domain.UnitMilliliter, Factor: decimal.NewFromInt(10)},
			"l":     liter,
			"lt":    liter,
			"liter": liter,
		},
	}
}

func (r *Retailer) productsURL() string { return r.baseURL + "/producten/" }

func (r *Retailer) apiURL() string { return r.baseURL + "/zoeken/api" }

type taxonomy struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	SlugifiedName     string `json:"slugifiedName"`
	TotalProductCount int    `json:"totalProductCount"`
}

type searchResponse struct {
	Cards []struct {
		Products []json.RawMessage `json:"products"`
	} `json:"cards"`
}

type pageJob struct {
	slug string
	page int
}

func (r *Retailer) topLevelTaxonomies(ctx context.Context) ([]taxonomy, error) {
	if err := r.client.Visit(ctx, r.productsURL()); err != nil {
		return nil, fmt.Errorf("bootstrap session: %w", err)
	}

	var taxonomies []taxonomy
	if err := r.client.GetJSON(ctx, r.apiURL()+"/taxonomy/top-level", &taxonomies); err != nil {
		return nil, fmt.Errorf("fetch taxonomies: %w", err)
	}
	return taxonomies, nil
}

// FetchProducts pages through the search API per top-level taxonomy. A product
// listed under several taxonomies is returned once.
// totalProductCount overestimates, so trailing pages may fail or come back empty.
func (r *Retailer) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	taxonomies, err := r.topLevelTaxonomies(ctx)
	if err != nil {
		return nil, err
	}

	var jobs []pageJob
	for _, t := range taxonomies {
		for i, page := 0, 0; i < t.TotalProductCount; i, page = i+pageSize, page+1 {
			jobs = append(jobs, pageJob{slug: t.SlugifiedName, page: page})
		}
	}

	listed, err := retailer.Gather(ctx, r.parallel, len(jobs), r.logger, func(ctx context.Context, i int) ([]domain.RawProduct, error) {
		return r.fetchPage(ctx, jobs[i])
	})
	if err != nil {
		return nil, err
	}
	products := retailer.Dedupe(listed, "id")

	r.logger.WithFields(logrus.Fields{
		"pages":    len(jobs),
		"listed":   len(listed),
		"products": len(products),
	}).Info("products fetched")
	return products, nil
}

func (r *Retailer) fetchPage(ctx context.Context, job pageJob) ([]domain.RawProduct, error) {
	params := url.Values{}
	params.Set("taxonomySlug", job.slug)
	params.Set("page", strconv.Itoa(job.page))
	params.Set("size", strconv.Itoa(pageSize))

	var resp searchResponse
	if err := r.client.GetJSON(ctx, r.apiURL()+"/products/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("%s page %d: %w", job.slug, job.page, err)
	}

	var products []domain.RawProduct
	for _, card := range resp.Cards {
		for _, p := range card.Products {
			products = append(products, domain.RawProduct(p))
		}
	}
	return products, nil
}

// FetchCategories returns the top-level taxonomies as categories, sorted by id
func (r *Retailer) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	taxonomies, err := r.topLevelTaxonomies(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(taxonomies, func(i, j int) bool { return taxonomies[i].ID < taxonomies[j].ID })

	categories := make([]domain.Category, 0, len(taxonomies))
	for _, t := range taxonomies {
		categories = append(categories, domain.Category{
			ID:          strconv.Itoa(t.ID),
			Description: t.Name,
			URL:         r.productsURL() + t.SlugifiedName,
		})
	}
	return categories, nil
}

type product struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
	Price struct {
		Now      decimal.NullDecimal `json:"now"`
		UnitSize string              `json:"unitSize"`
	} `json:"price"`
	PropertyIcons []struct {
		Name string `json:"name"`
	} `json:"propertyIcons"`
	Link       string `json:"link"`
	Taxonomies []struct {
		ID    int `json:"id"`
		Level int `json:"level"`
	} `json:"taxonomies"`
}

// ExtractProduct decodes one search result
func (r *Retailer) ExtractProduct(raw domain.RawProduct, today string) (domain.ProductFields, error) {
	var p product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.ProductFields{}, fmt.Errorf("decode ah product: %w", err)
	}
	if p.ID == "" || p.Title == "" {
		return domain.ProductFields{}, fmt.Errorf("ah product without id or title")
	}

	fields := domain.ProductFields{
		ID:       p.ID.String(),
		Name:     p.Title,
		Price:    p.Price.Now,
		SizeText: p.Price.UnitSize,
		URL:      strings.TrimPrefix(p.Link, "/producten/"),
	}
	for _, icon := range p.PropertyIcons {
		if icon.Name == "biologisch" {
			fields.Bio = true
			break
		}
	}
	for _, t := range p.Taxonomies {
		if t.Level == 1 {
			fields.CategoryID = strconv.Itoa(t.ID)
			break
		}
	}
	return fields, nil
}
