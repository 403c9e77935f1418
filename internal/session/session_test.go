package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

type memRepo struct {
	products map[int64]store.Product
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{products: map[int64]store.Product{}, nextID: 1}
}

func (r *memRepo) GetProduct(_ context.Context, id int64) (store.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) UpsertProduct(_ context.Context, p store.Product) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	}
	r.products[p.ID] = p
	return p.ID, nil
}

func testSettings() Settings {
	return Settings{
		Curve: pricing.DefaultCurve(),
		Markets: []pricing.Market{
			{ID: "etsy", Name: "Etsy", Fees: pricing.DefaultEtsy(false)},
			{ID: "etsy_ads", Name: "Etsy (offsite ads)", Fees: pricing.DefaultEtsy(true)},
		},
		LaborRate: 20,
	}
}

func TestNew_AutoFillsLaborRate(t *testing.T) {
	s := New(testSettings())

	assert.Equal(t, "20", s.Form().Lines[pricing.Labor].Rate)
	assert.Equal(t, uint64(1), s.Result().Revision)
	assert.Zero(t, s.Result().COGS)

	res, err := s.SetLineField(pricing.Labor, LineAmount, "30")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.COGS, 1e-9)
}

func TestSession_WeightAutoFillThenManual(t *testing.T) {
	s := New(testSettings())

	res, err := s.Apply(
		Edit{Field: "wax.amount", Value: "200"},
		Edit{Field: "wax.rate", Value: "10"},
		Edit{Field: "fragrance.amount", Value: "50"},
	)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, res.Weight.Grams, 1e-9)
	assert.False(t, res.Weight.Manual)
	assert.Equal(t, pricing.Override{Raw: "250.0"}, s.Form().Weight)

	res = s.SetManualWeight("300")
	assert.InDelta(t, 300.0, res.Weight.Grams, 1e-9)
	assert.True(t, res.Weight.Manual)

	for i := 0; i < 5; i++ {
		res, err = s.SetLineField(pricing.Wax, LineAmount, fmt.Sprint(400+10*i))
		require.NoError(t, err)
		assert.InDelta(t, 300.0, res.Weight.Grams, 1e-9)
		assert.Equal(t, "300", s.Form().Weight.Raw)
	}

	res = s.SetManualWeight("")
	assert.False(t, res.Weight.Manual)
	assert.InDelta(t, 490.0, res.Weight.Grams, 1e-9)
	assert.Equal(t, "490.0", s.Form().Weight.Raw)
}

func TestSession_PublishesEveryResultInOrder(t *testing.T) {
	s := New(testSettings())

	var got []pricing.Result
	s.Subscribe(func(r pricing.Result) { got = append(got, r) })

	_, err := s.Apply(Edit{Field: "wick.rate", Value: "0.10"})
	require.NoError(t, err)
	s.SetShipping("etsy", "5")
	s.SetShipping("etsy", "oops")

	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, uint64(i+2), r.Revision)
		assert.Len(t, r.Markets, 2)
	}

	etsy, ok := got[1].Market("etsy")
	require.True(t, ok)
	assert.True(t, etsy.OK)

	etsy, ok = got[2].Market("etsy")
	require.True(t, ok)
	assert.Equal(t, pricing.ErrorToken, etsy.BreakEvenText())
}

func TestSession_RejectedEditLeavesFormUntouched(t *testing.T) {
	s := New(testSettings())
	before := s.Result()

	_, err := s.Apply(
		Edit{Field: "wax.amount", Value: "100"},
		Edit{Field: "candlestick.amount", Value: "1"},
	)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, before.Revision, s.Result().Revision)
	_, ok := s.Form().Lines[pricing.Wax]
	assert.False(t, ok)

	_, err = s.SetLineField(pricing.Wax, "colour", "red")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSession_SellingPrice(t *testing.T) {
	s := New(testSettings())
	_, err := s.Apply(
		Edit{Field: "labor.amount", Value: "30"},
		Edit{Field: "shipping.etsy", Value: "0"},
	)
	require.NoError(t, err)

	etsy, _ := s.Result().Market("etsy")
	assert.Nil(t, etsy.AtSellingPrice)

	res := s.SetSellingPrice("100")
	etsy, _ = res.Market("etsy")
	require.NotNil(t, etsy.AtSellingPrice)
	assert.InDelta(t, 9.95, etsy.AtSellingPrice.Fees.Total, 1e-9)
	assert.InDelta(t, 80.05, etsy.AtSellingPrice.Net, 1e-9)
}

func TestSession_ObserverSeesEveryPass(t *testing.T) {
	var passes int
	s := New(testSettings(), WithRecomputeObserver(func(d time.Duration) {
		passes++
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}))
	s.SetShipping("etsy", "1")

	assert.Equal(t, 2, passes)
}

func TestSession_SaveAndOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	s := New(testSettings())
	_, err := s.Apply(
		Edit{Field: FieldSKU, Value: "LAV-8"},
		Edit{Field: FieldName, Value: "Lavender"},
		Edit{Field: "wax.amount", Value: "100"},
		Edit{Field: "wax.rate", Value: "10"},
		Edit{Field: "fragrance.attribute", Value: "lavender"},
		Edit{Field: "fragrance.amount", Value: "10"},
		Edit{Field: "fragrance.rate", Value: "100"},
		Edit{Field: "shipping.etsy", Value: "5"},
		Edit{Field: "shipping.etsy_ads", Value: "n/a"},
	)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s.Result().COGS, 1e-9)

	p := s.Product()
	assert.Nil(t, p.ManualWeightG, "an auto-filled weight is not persisted")
	assert.Nil(t, p.SellingPrice)
	assert.Equal(t, map[string]float64{"etsy": 5}, p.Shipping)

	id, err := s.Save(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, id, s.ProductID())

	reopened, err := Open(ctx, repo, id, testSettings())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, reopened.Result().COGS, 1e-9)
	assert.Equal(t, "lavender", reopened.Form().Lines[pricing.Fragrance].Attribute)
	assert.Equal(t, s.Result().Bundle().PerMarket["etsy"], reopened.Result().Bundle().PerMarket["etsy"])
	assert.Equal(t, pricing.ErrorToken, reopened.Result().Bundle().PerMarket["etsy_ads"].BreakEvenPrice)

	reopened.SetManualWeight("275")
	_, err = reopened.Save(ctx, repo)
	require.NoError(t, err)
	require.NotNil(t, repo.products[id].ManualWeightG)
	assert.InDelta(t, 275, *repo.products[id].ManualWeightG, 1e-9)
}

func TestOpen_MissingProduct(t *testing.T) {
	_, err := Open(context.Background(), newMemRepo(), 7, testSettings())
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSave_InvalidProduct(t *testing.T) {
	s := New(testSettings())
	_, err := s.Save(context.Background(), newMemRepo())
	assert.ErrorIs(t, err, store.ErrInvalid)
	assert.Zero(t, s.ProductID())
}
