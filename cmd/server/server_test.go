package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/candle.works/internal/db"
	"github.com/Simplici0/candle.works/internal/metrics"
	"github.com/Simplici0/candle.works/internal/migrations"
	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/session"
	"github.com/Simplici0/candle.works/internal/shipping"
	"github.com/Simplici0/candle.works/internal/store"
)

type fakeQuoter struct {
	weightG float64
	markets []string
	quotes  map[string]shipping.MarketQuote
	err     error
}

func (f *fakeQuoter) QuoteMarkets(_ context.Context, weightG float64, dests map[string]shipping.Destination) (map[string]shipping.MarketQuote, error) {
	f.weightG = weightG
	f.markets = f.markets[:0]
	out := make(map[string]shipping.MarketQuote, len(dests))
	for id := range dests {
		f.markets = append(f.markets, id)
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, f.err
}

func newTestServer(t *testing.T, quoter rateQuoter) (*server, http.Handler) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, migrations.Up(database))

	if quoter == nil {
		quoter = &fakeQuoter{}
	}
	srv := &server{
		log:   zerolog.Nop(),
		store: store.New(database),
		settings: session.Settings{
			Curve: pricing.DefaultCurve(),
			Markets: []pricing.Market{
				{ID: "etsy", Name: "Etsy", Fees: pricing.DefaultEtsy(false)},
				{ID: "etsy_ads", Name: "Etsy (offsite ads)", Fees: pricing.DefaultEtsy(true)},
			},
			LaborRate: 20,
		},
		destinations: map[string]shipping.Destination{
			"etsy":     {PostalCode: "10001", Country: "US"},
			"etsy_ads": {PostalCode: "10001", Country: "US"},
		},
		quoter:   quoter,
		metrics:  metrics.New(),
		validate: newValidator(),
	}
	return srv, srv.routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// laborProduct costs $10: thirty minutes at $20/h. The wax line has no cost
// but still weighs 100 g.
func laborProduct() map[string]any {
	return map[string]any{
		"sku":  "LAB-1",
		"name": "Labor only",
		"lines": []map[string]any{
			{"kind": "wax", "amount": 100, "rate": 0, "quantity": 1},
			{"kind": "labor", "amount": 30, "rate": 20, "quantity": 1},
		},
		"stock": 3,
	}
}

func createProduct(t *testing.T, h http.Handler, body map[string]any) store.Product {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/products", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[store.Product](t, rec)
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProducts_CRUD(t *testing.T) {
	_, h := newTestServer(t, nil)

	p := createProduct(t, h, laborProduct())
	assert.NotZero(t, p.ID)
	assert.Equal(t, "LAB-1", p.SKU)
	assert.Equal(t, 3, p.Stock)
	require.Len(t, p.Lines, 2)

	rec := do(t, h, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.Product](t, rec), 1)

	update := laborProduct()
	update["name"] = "Labor only, renamed"
	update["stock"] = 99
	rec = do(t, h, http.MethodPut, "/products/"+itoa(p.ID), update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[store.Product](t, rec)
	assert.Equal(t, "Labor only, renamed", updated.Name)
	assert.Equal(t, 3, updated.Stock)

	rec = do(t, h, http.MethodDelete, "/products/"+itoa(p.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/products/"+itoa(p.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts_Errors(t *testing.T) {
	_, h := newTestServer(t, nil)
	createProduct(t, h, laborProduct())

	rec := do(t, h, http.MethodPost, "/products", laborProduct())
	assert.Equal(t, http.StatusConflict, rec.Code)

	noSKU := laborProduct()
	delete(noSKU, "sku")
	rec = do(t, h, http.MethodPost, "/products", noSKU)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sku: required")

	twoLabor := laborProduct()
	twoLabor["sku"] = "LAB-2"
	twoLabor["lines"] = []map[string]any{{"kind": "labor", "amount": 1}, {"kind": "labor", "amount": 2}}
	rec = do(t, h, http.MethodPost, "/products", twoLabor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	badKind := laborProduct()
	badKind["sku"] = "LAB-3"
	badKind["lines"] = []map[string]any{{"kind": "glitter"}}
	rec = do(t, h, http.MethodPost, "/products", badKind)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/products/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts_Stock(t *testing.T) {
	_, h := newTestServer(t, nil)
	p := createProduct(t, h, laborProduct())
	path := "/products/" + itoa(p.ID) + "/stock"

	rec := do(t, h, http.MethodPost, path, map[string]any{"delta": -10})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, path, map[string]any{"delta": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stock":5}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricingPreview(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/pricing/preview", map[string]any{
		"edits": []map[string]string{
			{"field": "labor.amount", "value": "30"},
			{"field": "wax.amount", "value": "100"},
			{"field": "shipping.etsy", "value": "5"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[pricingResponse](t, rec)
	assert.Equal(t, "$10.00", resp.Pricing.COGS)
	assert.Equal(t, "100.0", resp.Pricing.ResolvedWeightG)
	assert.False(t, resp.Pricing.WeightIsManual)
	assert.Equal(t, pricing.Override{Raw: "100.0"}, resp.Weight)
	assert.Equal(t, "$17.60", resp.Pricing.PerMarket["etsy"].BreakEvenPrice)
	assert.Equal(t, pricing.ErrorToken, resp.Pricing.PerMarket["etsy_ads"].BreakEvenPrice)
}

func TestPricingPreview_RejectsUnknownField(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/pricing/preview", map[string]any{
		"edits": []map[string]string{{"field": "glitter.amount", "value": "1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/pricing/preview", map[string]any{
		"edits": []map[string]string{{"value": "1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "field: required")
}

func TestPricingPreview_FromStoredProduct(t *testing.T) {
	_, h := newTestServer(t, nil)
	p := createProduct(t, h, laborProduct())

	rec := do(t, h, http.MethodPost, "/pricing/preview", map[string]any{
		"product_id": p.ID,
		"edits":      []map[string]string{{"field": "manual_weight_g", "value": "300"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[pricingResponse](t, rec)
	assert.Equal(t, p.ID, resp.ProductID)
	assert.Equal(t, "300.0", resp.Pricing.ResolvedWeightG)
	assert.True(t, resp.Pricing.WeightIsManual)

	rec = do(t, h, http.MethodGet, "/products/"+itoa(p.ID), nil)
	assert.Nil(t, decodeBody[store.Product](t, rec).ManualWeightG)
}

func TestProductPricing(t *testing.T) {
	_, h := newTestServer(t, nil)
	body := laborProduct()
	body["shipping"] = map[string]float64{"etsy": 5}
	body["selling_price"] = 24
	p := createProduct(t, h, body)

	rec := do(t, h, http.MethodGet, "/products/"+itoa(p.ID)+"/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[pricingResponse](t, rec)
	assert.Equal(t, "$10.00", resp.Pricing.COGS)
	etsy := resp.Pricing.PerMarket["etsy"]
	assert.Equal(t, "$17.60", etsy.BreakEvenPrice)
	assert.NotEmpty(t, etsy.NetAtSellingPrice)
	assert.Empty(t, resp.Pricing.PerMarket["etsy_ads"].NetAtSellingPrice)
}

func TestShippingQuote_AppliesCheapestRates(t *testing.T) {
	quoter := &fakeQuoter{quotes: map[string]shipping.MarketQuote{
		"etsy":     {MarketID: "etsy", Rate: &shipping.Rate{Carrier: "USPS", Service: "Ground Advantage", Cost: 5}},
		"etsy_ads": {MarketID: "etsy_ads", Error: "no shipping rates"},
	}}
	srv, h := newTestServer(t, quoter)
	p := createProduct(t, h, laborProduct())

	rec := do(t, h, http.MethodPost, "/products/"+itoa(p.ID)+"/shipping/quote", map[string]any{"apply": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[quoteResponse](t, rec)
	assert.InDelta(t, 100.0, quoter.weightG, 1e-9)
	assert.InDelta(t, 100.0, resp.WeightG, 1e-9)
	require.NotNil(t, resp.Quotes["etsy"].Rate)
	assert.Equal(t, "$17.60", resp.Pricing.PerMarket["etsy"].BreakEvenPrice)
	assert.Equal(t, pricing.ErrorToken, resp.Pricing.PerMarket["etsy_ads"].BreakEvenPrice)

	rec = do(t, h, http.MethodGet, "/products/"+itoa(p.ID), nil)
	assert.Equal(t, map[string]float64{"etsy": 5}, decodeBody[store.Product](t, rec).Shipping)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.ShippingQuotes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.ShippingQuotes.WithLabelValues("error")))
}

func TestShippingQuote_Errors(t *testing.T) {
	quoter := &fakeQuoter{}
	_, h := newTestServer(t, quoter)
	p := createProduct(t, h, laborProduct())
	path := "/products/" + itoa(p.ID) + "/shipping/quote"

	rec := do(t, h, http.MethodPost, path, map[string]any{"markets": []string{"amazon"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, path, map[string]any{"markets": []string{"etsy"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"etsy"}, quoter.markets)

	rec = do(t, h, http.MethodPost, "/products/404/shipping/quote", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	quoter.err = errors.New("context deadline exceeded")
	rec = do(t, h, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		store.ErrNotFound:          http.StatusNotFound,
		store.ErrInsufficientStock: http.StatusConflict,
		store.ErrDuplicate:         http.StatusConflict,
		store.ErrInvalid:           http.StatusBadRequest,
		store.ErrNotImage:          http.StatusBadRequest,
		pricing.ErrInvalidInput:    http.StatusBadRequest,
		session.ErrUnknownField:    http.StatusBadRequest,
		shipping.ErrInvalidRequest: http.StatusBadRequest,
		errors.New("disk full"):    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
