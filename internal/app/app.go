// Package app wires configuration into the catalog service and its collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/events"
	"github.com/pricelens/backend/internal/infrastructure/retailer"
	"github.com/pricelens/backend/internal/infrastructure/retailer/ah"
	"github.com/pricelens/backend/internal/infrastructure/retailer/dekamarkt"
	"github.com/pricelens/backend/internal/infrastructure/retailer/jumbo"
	"github.com/pricelens/backend/internal/infrastructure/store"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cacheCloser is a snapshot cache that holds resources
type cacheCloser interface {
	domain.CacheRepository
	Close() error
}

// App holds the catalog service and everything that must be closed on shutdown
type App struct {
	Catalogs *usecase.CatalogService

	db        *gorm.DB
	cache     cacheCloser
	publisher domain.EventPublisher
}

// New opens the stores, cache and event publisher and registers the enabled retailers
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	a := &App{db: db}

	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.cache = redisCache
	default:
		a.cache = cache.NewMemoryCache()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	} else {
		a.publisher = events.NopPublisher{}
	}

	retailers, err := Retailers(cfg.Retailers, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Catalogs = usecase.NewCatalogService(
		retailers,
		store.NewCategoryStore(db),
		store.NewProductStore(db),
		a.cache,
		a.publisher,
		logger,
		usecase.CatalogServiceConfig{CacheTTL: cfg.Cache.TTL},
	)

	logger.WithFields(logrus.Fields{
		"retailers": a.Catalogs.Retailers(),
		"cache":     cfg.Cache.Type,
		"kafka":     len(cfg.Kafka.Brokers) > 0,
	}).Info("Catalog service ready")

	return a, nil
}

// Retailers builds one adapter per enabled retailer, each with its own rate-limited client
func Retailers(cfg config.RetailersConfig, logger *logrus.Logger) ([]domain.Retailer, error) {
	clientConfig := func(name string) retailer.ClientConfig {
		return retailer.ClientConfig{
			Retailer:  name,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}
	}

	retailers := make([]domain.Retailer, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch name {
		case ah.Name:
			clientCfg := clientConfig(name)
			clientCfg.Cookies = true
			retailers = append(retailers, ah.New(ah.Config{
				BaseURL:  cfg.AH.BaseURL,
				Parallel: cfg.Parallel,
			}, retailer.NewClient(clientCfg, logger), logger))
		case jumbo.Name:
			retailers = append(retailers, jumbo.New(jumbo.Config{
				BaseURL:  cfg.Jumbo.BaseURL,
				Parallel: cfg.Parallel,
			}, retailer.NewClient(clientConfig(name), logger), logger))
		case dekamarkt.Name:
			retailers = append(retailers, dekamarkt.New(dekamarkt.Config{
				BaseURL:   cfg.Dekamarkt.BaseURL,
				SiteURL:   cfg.Dekamarkt.SiteURL,
				APIKey:    cfg.Dekamarkt.APIKey,
				StoreID:   cfg.Dekamarkt.StoreID,
				FormulaID: cfg.Dekamarkt.FormulaID,
				Parallel:  cfg.Parallel,
			}, retailer.NewClient(clientConfig(name), logger), logger))
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRetailer, name)
		}
	}
	return retailers, nil
}

// RefreshAll refreshes every registered retailer in turn and joins the failures
func (a *App) RefreshAll(ctx context.Context, logger *logrus.Logger) error {
	var errs []error
	for _, name := range a.Catalogs.Retailers() {
		catalog, err := a.Catalogs.Refresh(ctx, name)
		if err != nil {
			logger.WithError(err).WithField("retailer", name).Error("Refresh failed")
			errs = append(errs, err)
			continue
		}
		logger.WithFields(logrus.Fields{
			"retailer": name,
			"run_id":   catalog.RunID,
			"products": catalog.Stats.Products,
		}).Info("Refresh finished")
	}
	return errors.Join(errs...)
}

// Schedule refreshes all retailers on start (when enabled) and then every interval
// until ctx is done. The returned channel is closed once no refresh is running.
func (a *App) Schedule(ctx context.Context, cfg config.RefreshConfig, logger *logrus.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		if cfg.OnStart {
			_ = a.RefreshAll(ctx, logger)
		}
		if cfg.Interval <= 0 {
			logger.Info("Scheduled refresh disabled")
			return
		}

		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = a.RefreshAll(ctx, logger)
			}
		}
	}()
	return done
}

// Close releases the publisher, cache and database in reverse order of creation
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.db != nil {
		errs = append(errs, store.Close(a.db))
	}
	return errors.Join(errs...)
}
