// Package dekamarkt fetches the Dekamarkt catalog from the api.dekamarkt.nl assortment API.
package dekamarkt

import (
	"context"
	"encoding/json"
	"errors"
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
const Name = "dekamarkt"

// Config holds the adapter settings
type Config struct {
	BaseURL   string
	SiteURL   string
	APIKey    string
	StoreID   int
	FormulaID int
	Parallel  int
}

// Retailer is the Dekamarkt adapter
type Retailer struct {
	client *retailer.Client
	cfg    Config
	logger *logrus.Entry
}

// New creates the adapter
func New(cfg Config, client *retailer.Client, logger *logrus.Logger) *Retailer {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")
	return &Retailer{
		client: client,
		cfg:    cfg,
		logger: logger.WithFields(logrus.Fields{"component": "retailer.dekamarkt", "retailer": Name}),
	}
}

func (r *Retailer) Name() string { return Name }

// Units maps the content units the API reports in UnitContentCE
func (r *Retailer) Units() domain.UnitTable {
	one := decimal.NewFromInt(1)
	piece := domain.UnitConversion{Unit: domain.UnitPiece, Factor: one}
	gram := domain.UnitConversion{Unit: domain.UnitGram, Factor: one}
	milli := domain.UnitConversion{Unit: domain.UnitMilliliter, Factor: one}
	liter := domain.UnitConversion{Unit: domain.UnitMilliliter, Factor: decimal.NewFromInt(1000)}

	return domain.UnitTable{
		Absent: piece,
		Units: map[string]domain.UnitConversion{
			"g":     gram,
			"gr":    gram,
			"gram":  gram,
			"kg":    {Unit: domain.UnitGram, Factor: decimal.NewFromInt(1000)},
			"ml":    milli,
			"cl":    {Unit: domain.UnitMilliliter, Factor: decimal.NewFromInt(10)},
			"l":     liter,
			"lt":    liter,
			"ltr":   liter,
			"liter": liter,
			"st":    piece,
			"stk":   piece,
			"stuk":  piece,
			"stuks": piece,
		},
	}
}

type subGroup struct {
	WebSubGroupID int    `json:"WebSubGroupID"`
	Description   string `json:"Description"`
}

type group struct {
	WebGroupID   int        `json:"WebGroupID"`
	Description  string     `json:"Description"`
	WebSubGroups []subGroup `json:"WebSubGroups"`
}

type department struct {
	Description string  `json:"Description"`
	WebGroups   []group `json:"WebGroups"`
}

func (r *Retailer) departments(ctx context.Context) ([]department, error) {
	params := url.Values{}
	params.Set("api_key", r.cfg.APIKey)
	params.Set("formulaID", strconv.Itoa(r.cfg.FormulaID))

	var departments []department
	if err := r.client.GetJSON(ctx, r.cfg.BaseURL+"/departments/?"+params.Encode(), &departments); err != nil {
		return nil, fmt.Errorf("fetch departments: %w", err)
	}
	return departments, nil
}

// groupURL is the storefront page of a group
func (r *Retailer) groupURL(departmentName, groupName string) string {
	return fmt.Sprintf("%s/producten/%s/%s", r.cfg.SiteURL, formatLink(departmentName), formatLink(groupName))
}

type subGroupJob struct {
	group    string
	subGroup subGroup
}

// FetchProducts fetches every sub-group's assortment and de-duplicates products
// that are listed in several sub-groups, keeping the first occurrence.
func (r *Retailer) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	departments, err := r.departments(ctx)
	if err != nil {
		return nil, err
	}

	var jobs []subGroupJob
	for _, d := range departments {
		for _, g := range d.WebGroups {
			for _, sg := range g.WebSubGroups {
				jobs = append(jobs, subGroupJob{group: g.Description, subGroup: sg})
			}
		}
	}

	listed, err := retailer.Gather(ctx, r.cfg.Parallel, len(jobs), r.logger, func(ctx context.Context, i int) ([]domain.RawProduct, error) {
		return r.fetchSubGroup(ctx, jobs[i])
	})
	if err != nil {
		return nil, err
	}

	products := retailer.Dedupe(listed, "ProductID")

	r.logger.WithFields(logrus.Fields{
		"sub_groups": len(jobs),
		"listed":     len(listed),
		"products":   len(products),
	}).Info("products fetched")
	return products, nil
}

// fetchSubGroup treats 404 ("No products found") as an empty sub-group
func (r *Retailer) fetchSubGroup(ctx context.Context, job subGroupJob) ([]domain.RawProduct, error) {
	endpoint := fmt.Sprintf("%s/assortmentcache/group/%d/%d?api_key=%s",
		r.cfg.BaseURL, r.cfg.StoreID, job.subGroup.WebSubGroupID, url.QueryEscape(r.cfg.APIKey))

	var products []domain.RawProduct
	err := r.client.GetJSON(ctx, endpoint, &products)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s -> %s: %w", job.group, job.subGroup.Description, err)
	}
	return products, nil
}

// FetchCategories returns one category per department group, sorted by group id
func (r *Retailer) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	departments, err := r.departments(ctx)
	if err != nil {
		return nil, err
	}

	type entry struct {
		id       int
		category domain.Category
	}
	var entries []entry
	for _, d := range departments {
		for _, g := range d.WebGroups {
			entries = append(entries, entry{
				id: g.WebGroupID,
				category: domain.Category{
					ID:          strconv.Itoa(g.WebGroupID),
					Description: d.Description + " -> " + g.Description,
					URL:         r.groupURL(d.Description, g.Description),
				},
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	categories := make([]domain.Category, 0, len(entries))
	for _, e := range entries {
		categories = append(categories, e.category)
	}
	return categories, nil
}

type validity struct {
	StartDate string `json:"StartDate"`
	EndDate   string `json:"EndDate"`
}

// covers compares calendar dates only; the API's times of day are unreliable
func (v validity) covers(today string) bool {
	return datePart(v.StartDate) <= today && datePart(v.EndDate) >= today
}

func datePart(timestamp string) string {
	if len(timestamp) < 10 {
		return timestamp
	}
	return timestamp[:10]
}

type product struct {
	ProductID         json.Number `json:"ProductID"`
	Brand             string      `json:"Brand"`
	MainDescription   string      `json:"MainDescription"`
	SubDescription    string      `json:"SubDescription"`
	CommercialContent string      `json:"CommercialContent"`
	Biological        bool        `json:"Biological"`
	UnitContentCE     string      `json:"UnitContentCE"`
	ContentCE         json.Number `json:"ContentCE"`
	ProductOffers     []struct {
		OfferPrice decimal.Decimal `json:"OfferPrice"`
		Offer      validity        `json:"Offer"`
	} `json:"ProductOffers"`
	ProductPrices []struct {
		validity
		Price decimal.Decimal `json:"Price"`
	} `json:"ProductPrices"`
	WebSubGroups []struct {
		WebGroup struct {
			WebGroupID    int    `json:"WebGroupID"`
			Description   string `json:"Description"`
			WebDepartment struct {
				Description string `json:"Description"`
			} `json:"WebDepartment"`
		} `json:"WebGroup"`
	} `json:"WebSubGroups"`
}

// currentPrice prefers an offer valid today over the regular price valid today
func (p *product) currentPrice(today string) decimal.NullDecimal {
	for _, offer := range p.ProductOffers {
		if offer.Offer.covers(today) {
			return decimal.NewNullDecimal(offer.OfferPrice)
		}
	}
	for _, price := range p.ProductPrices {
		if price.covers(today) {
			return decimal.NewNullDecimal(price.Price)
		}
	}
	return decimal.NullDecimal{}
}

// ExtractProduct decodes one assortment record. Sizes are structured, so the
// parsed size is built directly instead of going through the text parser.
func (r *Retailer) ExtractProduct(raw domain.RawProduct, today string) (domain.ProductFields, error) {
	var p product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.ProductFields{}, fmt.Errorf("decode dekamarkt product: %w", err)
	}
	if p.ProductID == "" {
		return domain.ProductFields{}, errors.New("dekamarkt product without ProductID")
	}

	var parts []string
	for _, part := range []string{p.Brand, p.MainDescription, p.SubDescription} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	name := strings.Join(parts, " ")

	fields := domain.ProductFields{
		ID:    p.ProductID.String(),
		Name:  name,
		Price: p.currentPrice(today),
		Bio:   p.Biological,
	}
	if !fields.Price.Valid {
		r.logger.WithFields(logrus.Fields{
			"product": fields.ID,
			"name":    p.MainDescription,
		}).Debug("no current price")
	}

	if p.UnitContentCE != "" {
		fields.Size = &domain.ParsedSize{
			Status:     domain.SizeParsed,
			Unit:       strings.ToLower(p.UnitContentCE),
			Quantity:   p.ContentCE.String(),
			Multiplier: 1,
		}
	}

	linkName := formatLink(name + " " + p.CommercialContent)
	if len(p.WebSubGroups) > 0 {
		g := p.WebSubGroups[0].WebGroup
		fields.CategoryID = strconv.Itoa(g.WebGroupID)
		fields.URL = fmt.Sprintf("%s/%s/%s", r.groupURL(g.WebDepartment.Description, g.Description), linkName, fields.ID)
	}
	return fields, nil
}

// formatLink turns a description into the storefront's url slug
func formatLink(s string) string {
	s = strings.ReplaceAll(s, ",", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.Replace(s, " & ", "-", 1)
	s = strings.ReplaceAll(s, "&", "-")
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "'", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "%", "-")
	s = strings.Replace(s, "+", "", 1)
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, "---", "-")
	s = strings.ReplaceAll(s, "--", "-")
	s = strings.TrimSuffix(s, "-")
	return strings.ToLower(s)
}
