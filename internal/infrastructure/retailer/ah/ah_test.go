package ah

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/retailer"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ domain.Retailer = (*Retailer)(nil)

const melk = `{
	"id": 1525,
	"title": "AH Halfvolle melk",
	"price": {"now": 1.19, "unitSize": "1 l"},
	"propertyIcons": [{"name": "biologisch"}],
	"link": "/producten/product/wi1525/ah-halfvolle-melk",
	"taxonomies": [{"id": 1301, "level": 2}, {"id": 1730, "level": 1}]
}`

const bananen = `{
	"id": 4471,
	"title": "AH Bananen",
	"price": {"unitSize": "per stuk"},
	"propertyIcons": [],
	"link": "/producten/product/wi4471/ah-bananen",
	"taxonomies": []
}`

// fakeAH serves a minimal ah.nl: two taxonomies, a cookie-gated API and one broken page.
// The milk is listed under both taxonomies.
func fakeAH(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/producten/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SSLB", Value: "1", Path: "/"})
	})
	mux.HandleFunc("/zoeken/api/taxonomy/top-level", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SSLB"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`[
			{"id": 6401, "name": "Groente, aardappelen", "slugifiedName": "groente-aardappelen", "totalProductCount": 1500},
			{"id": 1730, "name": "Zuivel, eieren", "slugifiedName": "zuivel-eieren", "totalProductCount": 10}
		]`))
	})
	mux.HandleFunc("/zoeken/api/products/search", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SSLB"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "1000", r.URL.Query().Get("size"))

		switch r.URL.Query().Get("taxonomySlug") + "/" + r.URL.Query().Get("page") {
		case "groente-aardappelen/0":
			w.Write([]byte(`{"cards": [{"products": [` + bananen + `]}, {"products": [` + melk + `]}]}`))
		case "groente-aardappelen/1":
			w.WriteHeader(http.StatusBadRequest)
		case "zuivel-eieren/0":
			w.Write([]byte(`{"cards": [{"products": [` + melk + `]}, {"products": []}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRetailer(t *testing.T, baseURL string) *Retailer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	client := retailer.NewClient(retailer.ClientConfig{Retailer: Name, RateLimit: 1000, Burst: 100, Cookies: true}, logger)
	return New(Config{BaseURL: baseURL, Parallel: 4}, client, logger)
}

func TestFetchProducts(t *testing.T) {
	r := newTestRetailer(t, fakeAH(t).URL)

	products, err := r.FetchProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2, "the broken page degrades to fewer products")

	var ids []string
	for _, raw := range products {
		fields, err := r.ExtractProduct(raw, "2026-10-16")
		require.NoError(t, err)
		ids = append(ids, fields.ID)
	}
	assert.Equal(t, []string{"4471", "1525"}, ids, "a product listed under two taxonomies is returned once")
}

func TestFetchCategories(t *testing.T) {
	server := fakeAH(t)
	r := newTestRetailer(t, server.URL)

	categories, err := r.FetchCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "1730", categories[0].ID, "sorted by numeric id")
	assert.Equal(t, "Zuivel, eieren", categories[0].Description)
	assert.Equal(t, server.URL+"/producten/zuivel-eieren", categories[0].URL)
	assert.Equal(t, "6401", categories[1].ID)
}

func TestFetchCategories_BootstrapFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestRetailer(t, server.URL).FetchCategories(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetailerAPI)
}

func TestExtractProduct(t *testing.T) {
	r := newTestRetailer(t, "https://www.ah.nl")

	fields, err := r.ExtractProduct(domain.RawProduct(melk), "2026-10-16")

	require.NoError(t, err)
	assert.Equal(t, "1525", fields.ID)
	assert.Equal(t, "AH Halfvolle melk", fields.Name)
	require.True(t, fields.Price.Valid)
	assert.True(t, fields.Price.Decimal.Equal(decimal.RequireFromString("1.19")))
	assert.Equal(t, "1 l", fields.SizeText)
	assert.True(t, fields.Bio)
	assert.Equal(t, "product/wi1525/ah-halfvolle-melk", fields.URL)
	assert.Equal(t, "1730", fields.CategoryID, "level-1 taxonomy")
}

func TestExtractProduct_NoPriceNoTaxonomy(t *testing.T) {
	r := newTestRetailer(t, "https://www.ah.nl")

	fields, err := r.ExtractProduct(domain.RawProduct(bananen), "2026-10-16")

	require.NoError(t, err)
	assert.False(t, fields.Price.Valid)
	assert.False(t, fields.Bio)
	assert.Empty(t, fields.CategoryID)
}

func TestExtractProduct_Malformed(t *testing.T) {
	r := newTestRetailer(t, "https://www.ah.nl")

	_, err := r.ExtractProduct(domain.RawProduct(`{"id": "x"`), "2026-10-16")
	assert.Error(t, err)

	_, err = r.ExtractProduct(domain.RawProduct(`{"price": {"now": 1}}`), "2026-10-16")
	assert.Error(t, err)
}

func TestUnitTable_ConvertsCommonSizes(t *testing.T) {
	units := UnitTable()
	fields := domain.ProductFields{ID: "1", Price: decimal.NewNullDecimal(decimal.NewFromInt(3))}

	tests := []struct {
		text     string
		unit     string
		quantity string
	}{
		{"1 l", domain.UnitMilliliter, "1000"},
		{"12 x 0,33 l", domain.UnitMilliliter, "3960"},
		{"6x150g", domain.UnitGram, "900"},
		{"1,5 kilo", domain.UnitGram, "1500"},
		{"per stuk", domain.UnitPiece, "1"},
		{"ca. 4 stuks", domain.UnitPiece, "4"},
		{"75 cl", domain.UnitMilliliter, "750"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			size := usecase.ParseUnitSize(tt.text)
			product := usecase.ConvertUnit(fields, size, units, Name)

			assert.Equal(t, tt.unit, product.Unit)
			require.True(t, product.Quantity.Valid)
			assert.True(t, product.Quantity.Decimal.Equal(decimal.RequireFromString(tt.quantity)), "got %s", product.Quantity.Decimal)
			assert.Empty(t, product.Issues)
		})
	}
}

func TestSearchResponse_Decodes(t *testing.T) {
	var resp searchResponse
	require.NoError(t, json.Unmarshal([]byte(`{"cards": [{"products": [{"id": 1}, {"id": 2}]}]}`), &resp))
	assert.Len(t, resp.Cards[0].Products, 2)
}
