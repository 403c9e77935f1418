package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/candle.works/internal/db"
	"github.com/Simplici0/candle.works/internal/migrations"
	"github.com/Simplici0/candle.works/internal/pricing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, migrations.Up(database))
	return New(database)
}

func ptr(v float64) *float64 { return &v }

func sampleProduct() Product {
	wax := pricing.NewBOMLine(pricing.Wax)
	wax.Name = "Soy 464"
	wax.Amount = 200
	wax.Rate = 10

	fragrance := pricing.NewBOMLine(pricing.Fragrance)
	fragrance.Attribute = "lavender"
	fragrance.Amount = 20
	fragrance.Rate = 50

	jar := pricing.NewBOMLine(pricing.PrimaryContainer)
	jar.Rate = 2.5

	return Product{
		SKU:   "LAV-8OZ",
		Name:  "Lavender 8oz",
		Lines: []pricing.BOMLine{jar, fragrance, wax},
		Stock: 3,
		Shipping: map[string]float64{
			"etsy": 4.5,
		},
	}
}

func TestUpsertProduct_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := sampleProduct()
	p.SellingPrice = ptr(24)
	id, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.GetProduct(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "LAV-8OZ", got.SKU)
	assert.Equal(t, 3, got.Stock)
	assert.Nil(t, got.ManualWeightG)
	require.NotNil(t, got.SellingPrice)
	assert.InDelta(t, 24, *got.SellingPrice, 1e-9)
	assert.Equal(t, map[string]float64{"etsy": 4.5}, got.Shipping)

	require.Len(t, got.Lines, 3)
	assert.Equal(t, pricing.Wax, got.Lines[0].Kind)
	assert.Equal(t, pricing.Fragrance, got.Lines[1].Kind)
	assert.Equal(t, "lavender", got.Lines[1].Attribute)
	assert.Equal(t, pricing.PrimaryContainer, got.Lines[2].Kind)
	assert.Equal(t, 1, got.Lines[2].Quantity)
	assert.NotEmpty(t, got.CreatedAt)
}

func TestUpsertProduct_UpdateReplacesChildrenAndKeepsStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertProduct(ctx, sampleProduct())
	require.NoError(t, err)

	labor := pricing.NewBOMLine(pricing.Labor)
	labor.Amount = 30
	labor.Rate = 20

	update := Product{
		ID:            id,
		SKU:           "LAV-8OZ",
		Name:          "Lavender 8oz (v2)",
		Lines:         []pricing.BOMLine{labor},
		ManualWeightG: ptr(310),
		Stock:         99,
		Shipping:      map[string]float64{"etsy_ads": 5},
	}
	gotID, err := s.UpsertProduct(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	got, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Lavender 8oz (v2)", got.Name)
	assert.Equal(t, 3, got.Stock)
	require.NotNil(t, got.ManualWeightG)
	assert.InDelta(t, 310, *got.ManualWeightG, 1e-9)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, pricing.Labor, got.Lines[0].Kind)
	assert.Equal(t, map[string]float64{"etsy_ads": 5}, got.Shipping)
}

func TestUpsertProduct_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dup := sampleProduct()
	dup.Lines = append(dup.Lines, pricing.NewBOMLine(pricing.Wax))
	_, err := s.UpsertProduct(ctx, dup)
	assert.ErrorIs(t, err, ErrInvalid)

	neg := sampleProduct()
	neg.Lines[0].Rate = -1
	_, err = s.UpsertProduct(ctx, neg)
	assert.ErrorIs(t, err, ErrInvalid)

	noSKU := sampleProduct()
	noSKU.SKU = " "
	_, err = s.UpsertProduct(ctx, noSKU)
	assert.ErrorIs(t, err, ErrInvalid)

	missing := sampleProduct()
	missing.ID = 404
	_, err = s.UpsertProduct(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertProduct_DuplicateSKURollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertProduct(ctx, sampleProduct())
	require.NoError(t, err)
	_, err = s.UpsertProduct(ctx, sampleProduct())
	require.ErrorIs(t, err, ErrDuplicate)

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestListProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	a := sampleProduct()
	a.SKU, a.Name = "B", "beeswax pillar"
	b := sampleProduct()
	b.SKU, b.Name = "A", "Amber jar"
	b.Lines = nil
	_, err = s.UpsertProduct(ctx, a)
	require.NoError(t, err)
	_, err = s.UpsertProduct(ctx, b)
	require.NoError(t, err)

	products, err = s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Amber jar", products[0].Name)
	assert.Empty(t, products[0].Lines)
	assert.Equal(t, "beeswax pillar", products[1].Name)
	assert.Len(t, products[1].Lines, 3)
}

func TestDeleteProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertProduct(ctx, sampleProduct())
	require.NoError(t, err)

	require.NoError(t, s.DeleteProduct(ctx, id))
	_, err = s.GetProduct(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, id), ErrNotFound)
}

func TestUpdateStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertProduct(ctx, sampleProduct())
	require.NoError(t, err)

	stock, err := s.UpdateStock(ctx, id, 5)
	require.NoError(t, err)
	assert.Equal(t, 8, stock)

	stock, err = s.UpdateStock(ctx, id, -8)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	_, err = s.UpdateStock(ctx, id, -1)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = s.UpdateStock(ctx, 404, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
