package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pricelens/backend/internal/domain"
)

// dateLayout is the ISO date format used to stamp price observations
const dateLayout = "2006-01-02"

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	CacheTTL time.Duration
	// Now overrides the clock; nil uses time.Now
	Now func() time.Time
}

// CatalogService refreshes and serves canonical catalogs per retailer
type CatalogService struct {
	retailers  map[string]domain.Retailer
	reconciler *CategoryReconciler
	products   domain.ProductStore
	cache      domain.CacheRepository
	publisher  domain.EventPublisher
	logger     *logrus.Entry
	cacheTTL   time.Duration
	now        func() time.Time

	// running holds one lock per retailer so a run reconciles categories at most once
	running map[string]*sync.Mutex
}

// NewCatalogService creates a new catalog service with dependencies
func NewCatalogService(
	retailers []domain.Retailer,
	categories domain.CategoryStore,
	products domain.ProductStore,
	cache domain.CacheRepository,
	publisher domain.EventPublisher,
	logger *logrus.Logger,
	config CatalogServiceConfig,
) *CatalogService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 48 * time.Hour
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	svc := &CatalogService{
		retailers:  make(map[string]domain.Retailer, len(retailers)),
		reconciler: NewCategoryReconciler(categories, logger),
		products:   products,
		cache:      cache,
		publisher:  publisher,
		logger:     logger.WithField("component", "usecase.catalog_service"),
		cacheTTL:   cacheTTL,
		now:        now,
		running:    make(map[string]*sync.Mutex, len(retailers)),
	}
	for _, r := range retailers {
		svc.retailers[r.Name()] = r
		svc.running[r.Name()] = &sync.Mutex{}
	}
	return svc
}

// Retailers returns the names of all registered retailers in alphabetical order
func (s *CatalogService) Retailers() []string {
	names := make([]string, 0, len(s.retailers))
	for name := range s.retailers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refresh runs one full ingestion for a retailer.
// Flow: categories -> reconcile -> products -> dedupe -> canonicalize -> history -> persist -> cache -> publish
func (s *CatalogService) Refresh(ctx context.Context, name string) (*domain.Catalog, error) {
	retailer, ok := s.retailers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRetailer, name)
	}

	lock := s.running[name]
	if !lock.TryLock() {
		return nil, fmt.Errorf("%w: %s", domain.ErrRefreshInProgress, name)
	}
	defer lock.Unlock()

	startedAt := s.now()
	catalog := &domain.Catalog{
		RunID:       uuid.NewString(),
		Retailer:    name,
		Date:        startedAt.Format(dateLayout),
		RefreshedAt: startedAt,
	}
	log := s.logger.WithFields(logrus.Fields{"retailer": name, "run_id": catalog.RunID})
	log.Info("Refresh started")

	lookup := s.reconcileCategories(ctx, retailer, catalog, log)

	raw, err := retailer.FetchProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch products for %s: %w", name, err)
	}
	catalog.Stats.RawProducts = len(raw)

	histories, err := s.products.PriceHistories(ctx, name)
	if err != nil {
		log.WithError(err).Warn("Failed to load price histories, starting fresh")
		histories = map[string][]domain.PricePoint{}
	}

	catalog.Products = make([]domain.CanonicalProduct, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, record := range raw {
		fields, err := retailer.ExtractProduct(record, catalog.Date)
		if err != nil {
			catalog.Stats.SkippedRecords++
			log.WithError(err).WithField("index", i).Warn("Skipping malformed product record")
			continue
		}
		// Product ids are unique per catalog; the first listing wins
		if seen[fields.ID] {
			catalog.Stats.DuplicateRecords++
			log.WithFields(logrus.Fields{"index": i, "product_id": fields.ID}).Debug("Skipping duplicate product record")
			continue
		}
		seen[fields.ID] = true

		product := s.canonicalize(retailer, fields, lookup, catalog.Date, log)
		product.PriceHistory = MergePriceHistory(histories[product.ID], catalog.Date, product.Price)
		catalog.Products = append(catalog.Products, product)
		countIssues(&catalog.Stats, &product)
	}
	catalog.Stats.Products = len(catalog.Products)

	if err := s.products.SaveProducts(ctx, name, catalog.Products); err != nil {
		return nil, fmt.Errorf("save products for %s: %w", name, err)
	}

	if err := s.setInCache(ctx, name, catalog); err != nil {
		// The catalog is persisted; a cold cache only delays reads until the next refresh
		log.WithError(err).Warn("Failed to cache catalog snapshot")
	}

	if s.publisher != nil {
		event := domain.CatalogEvent{
			Type:      domain.EventCatalogRefreshed,
			RunID:     catalog.RunID,
			Retailer:  name,
			Date:      catalog.Date,
			Stats:     catalog.Stats,
			Timestamp: s.now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.WithError(err).Warn("Failed to publish catalog event")
		}
	}

	log.WithFields(logrus.Fields{
		"products":          catalog.Stats.Products,
		"skipped":           catalog.Stats.SkippedRecords,
		"duplicates":        catalog.Stats.DuplicateRecords,
		"unparseable_sizes": catalog.Stats.UnparseableSizes,
		"unknown_units":     catalog.Stats.UnknownUnits,
		"unmapped":          catalog.Stats.UnmappedProducts,
		"duration":          s.now().Sub(startedAt).String(),
	}).Info("Refresh completed")

	return catalog, nil
}

// Catalog returns the most recent catalog snapshot for a retailer
func (s *CatalogService) Catalog(ctx context.Context, name string) (*domain.Catalog, error) {
	if _, ok := s.retailers[name]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRetailer, name)
	}

	catalog, err := s.getFromCache(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogNotFound, name)
		}
		return nil, err
	}
	return catalog, nil
}

// reconcileCategories builds this run's category lookup. Category failures never
// abort a run; products are then processed without category codes.
func (s *CatalogService) reconcileCategories(ctx context.Context, retailer domain.Retailer, catalog *domain.Catalog, log *logrus.Entry) domain.CategoryLookup {
	fresh, err := retailer.FetchCategories(ctx)
	if errors.Is(err, domain.ErrNoTaxonomy) {
		return domain.CategoryLookup{}
	}
	if err != nil {
		log.WithError(err).Warn("Failed to fetch categories, continuing without category codes")
		return domain.CategoryLookup{}
	}

	result, err := s.reconciler.Reconcile(ctx, retailer.Name(), fresh)
	if err != nil {
		log.WithError(err).Warn("Category reconciliation skipped, continuing without category codes")
		return domain.CategoryLookup{}
	}

	catalog.Categories = result.Categories
	catalog.Stats.MintedCategories = len(result.Minted)
	catalog.Stats.RetiredCategories = len(result.Retired)
	return result.Lookup
}

// canonicalize normalizes one product's size and price and resolves its category
func (s *CatalogService) canonicalize(retailer domain.Retailer, fields domain.ProductFields, lookup domain.CategoryLookup, today string, log *logrus.Entry) domain.CanonicalProduct {
	var size domain.ParsedSize
	if fields.Size != nil {
		size = *fields.Size
	} else {
		size = ParseUnitSize(fields.SizeText)
		if size.Status == domain.SizeUnparseable {
			log.WithFields(logrus.Fields{
				"size":    fields.SizeText,
				"product": fields.Name,
			}).Warn("Failed to parse unit size")
		}
	}

	product := ConvertUnit(fields, size, retailer.Units(), retailer.Name())

	if code, ok := lookup.Code(fields.CategoryID); ok {
		product.CategoryCode = &code
	} else if len(lookup) > 0 {
		product.Issues = append(product.Issues, domain.IssueUnmappedCategory)
	}

	if !fields.Price.Valid {
		log.WithFields(logrus.Fields{"product_id": fields.ID, "date": today}).Warn("No current price found")
	}
	return product
}

func countIssues(stats *domain.CatalogStats, product *domain.CanonicalProduct) {
	for _, issue := range product.Issues {
		switch issue {
		case domain.IssueUnparseableSize:
			stats.UnparseableSizes++
		case domain.IssueUnknownUnit:
			stats.UnknownUnits++
		case domain.IssueUnmappedCategory:
			stats.UnmappedProducts++
		}
	}
}

// generateCacheKey creates the cache key of a retailer's catalog snapshot.
// Format: "catalog:{retailer}"
func generateCacheKey(retailer string) string {
	return fmt.Sprintf("catalog:%s", strings.ToLower(retailer))
}

// getFromCache retrieves a catalog snapshot from cache
func (s *CatalogService) getFromCache(ctx context.Context, retailer string) (*domain.Catalog, error) {
	value, err := s.cache.Get(ctx, generateCacheKey(retailer))
	if err != nil {
		return nil, err
	}

	var catalog domain.Catalog
	if err := json.Unmarshal(value, &catalog); err != nil {
		return nil, fmt.Errorf("decode cached catalog: %w", err)
	}
	return &catalog, nil
}

// setInCache stores a catalog snapshot in cache
func (s *CatalogService) setInCache(ctx context.Context, retailer string, catalog *domain.Catalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return s.cache.Set(ctx, generateCacheKey(retailer), data, s.cacheTTL)
}
