package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

// fakeCatalogService serves fixed catalogs and scripted refresh results
type fakeCatalogService struct {
	catalogs   map[string]*domain.Catalog
	refreshErr error
	refreshed  []string
}

func (f *fakeCatalogService) Retailers() []string {
	return []string{"ah", "dekamarkt", "jumbo"}
}

func (f *fakeCatalogService) known(retailer string) bool {
	for _, name := range f.Retailers() {
		if name == retailer {
			return true
		}
	}
	return false
}

func (f *fakeCatalogService) Catalog(ctx context.Context, retailer string) (*domain.Catalog, error) {
	if !f.known(retailer) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRetailer, retailer)
	}
	catalog, ok := f.catalogs[retailer]
	if !ok {
		return nil, domain.ErrCatalogNotFound
	}
	return catalog, nil
}

func (f *fakeCatalogService) Refresh(ctx context.Context, retailer string) (*domain.Catalog, error) {
	if !f.known(retailer) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRetailer, retailer)
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.refreshed = append(f.refreshed, retailer)
	return &domain.Catalog{
		RunID:       "run-42",
		Retailer:    retailer,
		Date:        "2026-10-16",
		RefreshedAt: time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC),
		Stats:       domain.CatalogStats{RawProducts: 3, Products: 3},
	}, nil
}

func intPtr(v int) *int { return &v }

func ahCatalog() *domain.Catalog {
	return &domain.Catalog{
		RunID:    "run-1",
		Retailer: "ah",
		Date:     "2026-10-16",
		Products: []domain.CanonicalProduct{
			{
				ID:           "1525",
				Retailer:     "ah",
				Name:         "AH Halfvolle melk",
				Price:        decimal.NewNullDecimal(decimal.RequireFromString("1.19")),
				Unit:         domain.UnitMilliliter,
				Quantity:     decimal.NewNullDecimal(decimal.NewFromInt(1000)),
				CategoryCode: intPtr(2),
			},
			{
				ID:           "4471",
				Retailer:     "ah",
				Name:         "AH Bananen",
				Unit:         domain.UnitPiece,
				Quantity:     decimal.NewNullDecimal(decimal.NewFromInt(1)),
				CategoryCode: intPtr(1),
				Issues:       []domain.Issue{domain.IssueMissingPrice},
			},
			{
				ID:       "9000",
				Retailer: "ah",
				Name:     "Cadeaukaart",
				Issues:   []domain.Issue{domain.IssueUnmappedCategory},
			},
		},
		Categories: []domain.Category{
			{Code: 1, Description: "Groente, aardappelen", Active: true},
			{Code: 2, Description: "Zuivel, eieren", Active: true},
		},
	}
}

// setupTestRouter creates a test router around a fake catalog service
func setupTestRouter() (*gin.Engine, *fakeCatalogService) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"https://*.pricelens.nl", "http://localhost:3000"},
		},
	}

	service := &fakeCatalogService{catalogs: map[string]*domain.Catalog{"ah": ahCatalog()}}
	logger, _ := test.NewNullLogger()
	router := SetupRouter(cfg, NewHandler(service, logger), logger)
	return router, service
}

func perform(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "pricelens-backend", response["service"])
		version, ok := response["version"].(string)
		assert.True(t, ok && strings.TrimSpace(version) != "")
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router, _ := setupTestRouter()

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := perform(router, method, "/health")
			assert.Equal(t, http.StatusNotFound, w.Code, "method %s", method)
		}
	})
}

func TestListRetailers(t *testing.T) {
	router, _ := setupTestRouter()

	w := perform(router, "GET", "/api/v1/retailers")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, []interface{}{"ah", "dekamarkt", "jumbo"}, response["retailers"])
}

func TestListProducts(t *testing.T) {
	t.Run("returns all products of the latest catalog", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/ah/products")

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "ah", response["retailer"])
		assert.Equal(t, "2026-10-16", response["date"])
		assert.Equal(t, float64(3), response["count"])

		products := response["products"].([]interface{})
		first := products[0].(map[string]interface{})
		assert.Equal(t, "1525", first["id"])
		assert.Equal(t, "1.19", first["price"])
		assert.Equal(t, "ml", first["unit"])
	})

	t.Run("filters by category code", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/ah/products?category=1")

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, float64(1), response["count"])
		products := response["products"].([]interface{})
		assert.Equal(t, "4471", products[0].(map[string]interface{})["id"])
	})

	t.Run("unknown category yields an empty list", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/ah/products?category=99")

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, float64(0), response["count"])
		assert.Equal(t, []interface{}{}, response["products"])
	})

	t.Run("rejects non-numeric category", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/ah/products?category=zuivel")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown retailer is not found", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/lidl/products")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "lidl")
	})

	t.Run("retailer without catalog is not found", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/jumbo/products")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListCategories(t *testing.T) {
	router, _ := setupTestRouter()

	w := perform(router, "GET", "/api/v1/retailers/ah/categories")

	assert.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "ah", response["retailer"])
	categories := response["categories"].([]interface{})
	require.Len(t, categories, 2)
	dairy := categories[1].(map[string]interface{})
	assert.Equal(t, float64(2), dairy["code"])
	assert.Equal(t, "Zuivel, eieren", dairy["description"])
	assert.Equal(t, true, dairy["active"])
}

func TestExportCatalog(t *testing.T) {
	t.Run("streams an xlsx workbook", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/ah/export")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "ah-2026-10-16.xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		name, err := f.GetCellValue("Products", "B2")
		require.NoError(t, err)
		assert.Equal(t, "AH Halfvolle melk", name)
	})

	t.Run("missing catalog is not found", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/dekamarkt/export")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	})
}

func TestRefreshCatalog(t *testing.T) {
	t.Run("returns the run summary", func(t *testing.T) {
		router, service := setupTestRouter()

		w := perform(router, "POST", "/api/v1/retailers/jumbo/refresh")

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "run-42", response["runId"])
		assert.Equal(t, "jumbo", response["retailer"])
		stats := response["stats"].(map[string]interface{})
		assert.Equal(t, float64(3), stats["products"])
		assert.Equal(t, []string{"jumbo"}, service.refreshed)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"refresh in progress conflicts", domain.ErrRefreshInProgress, http.StatusConflict},
		{"retailer API failure is a bad gateway", fmt.Errorf("fetch products for ah: %w", domain.ErrRetailerAPI), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"anything else is internal", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, service := setupTestRouter()
			service.refreshErr = tt.err

			w := perform(router, "POST", "/api/v1/retailers/ah/refresh")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}

	t.Run("GET is not routed", func(t *testing.T) {
		router, _ := setupTestRouter()

		w := perform(router, "GET", "/api/v1/retailers/ah/refresh")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for the dashboard", func(t *testing.T) {
		router, _ := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "https://dashboard.pricelens.nl")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://dashboard.pricelens.nl", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("catalog endpoint has CORS for localhost", func(t *testing.T) {
		router, _ := setupTestRouter()

		req, _ := http.NewRequest("GET", "/api/v1/retailers/ah/products", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	router, _ := setupTestRouter()

	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := perform(router, "GET", "/panic")

	// Gin's default recovery returns 500
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestJSONResponses tests that all JSON endpoints answer valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/retailers"},
		{"GET", "/api/v1/retailers/ah/products"},
		{"GET", "/api/v1/retailers/ah/categories"},
		{"POST", "/api/v1/retailers/ah/refresh"},
		{"GET", "/api/v1/retailers/lidl/categories"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router, _ := setupTestRouter()

			w := perform(router, endpoint.method, endpoint.path)

			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			decodeBody(t, w)
		})
	}
}
