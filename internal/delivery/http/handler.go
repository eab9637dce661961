package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/export"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CatalogService is what the handlers need from the catalog use case
type CatalogService interface {
	Retailers() []string
	Catalog(ctx context.Context, retailer string) (*domain.Catalog, error)
	Refresh(ctx context.Context, retailer string) (*domain.Catalog, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalogs CatalogService
	logger   *logrus.Entry
}

// NewHandler creates a new HTTP handler
func NewHandler(catalogs CatalogService, logger *logrus.Logger) *Handler {
	return &Handler{
		catalogs: catalogs,
		logger:   logger.WithField("component", "delivery.http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	})
}

// ListRetailers lists the enabled retailers
func (h *Handler) ListRetailers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"retailers": h.catalogs.Retailers()})
}

// ListProducts returns the latest catalog's products, optionally filtered by ?category=<code>
func (h *Handler) ListProducts(c *gin.Context) {
	filter := c.Query("category")
	var code int
	if filter != "" {
		var err error
		if code, err = strconv.Atoi(filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category must be an integer code"})
			return
		}
	}

	catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	products := catalog.Products
	if filter != "" {
		products = make([]domain.CanonicalProduct, 0)
		for _, p := range catalog.Products {
			if p.CategoryCode != nil && *p.CategoryCode == code {
				products = append(products, p)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"retailer": catalog.Retailer,
		"date":     catalog.Date,
		"count":    len(products),
		"products": products,
	})
}

// ListCategories returns the latest catalog's active categories in fetch order.
// Retired categories stay in the category store but are not part of a catalog.
func (h *Handler) ListCategories(c *gin.Context) {
	catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"retailer":   catalog.Retailer,
		"categories": catalog.Categories,
	})
}

// ExportCatalog streams the latest catalog as an xlsx workbook
func (h *Handler) ExportCatalog(c *gin.Context) {
	catalog, ok := h.catalog(c)
	if !ok {
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename="+export.Filename(catalog))
	c.Status(http.StatusOK)
	if err := export.WriteCatalog(c.Writer, catalog); err != nil {
		h.logger.WithError(err).WithField("retailer", catalog.Retailer).Error("export failed")
	}
}

// RefreshCatalog runs a refresh synchronously and returns its summary
func (h *Handler) RefreshCatalog(c *gin.Context) {
	catalog, err := h.catalogs.Refresh(c.Request.Context(), c.Param("retailer"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runId":       catalog.RunID,
		"retailer":    catalog.Retailer,
		"date":        catalog.Date,
		"refreshedAt": catalog.RefreshedAt,
		"stats":       catalog.Stats,
	})
}

func (h *Handler) catalog(c *gin.Context) (*domain.Catalog, bool) {
	catalog, err := h.catalogs.Catalog(c.Request.Context(), c.Param("retailer"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return catalog, true
}

// respondError maps domain errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownRetailer), errors.Is(err, domain.ErrCatalogNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRefreshInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRetailerAPI):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
