package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/candle.works/internal/pricing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	buf := captureLog(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.HTTP.Port)
	assert.Equal(t, defaultDBPath, cfg.DB.Path)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, pricing.DefaultCurve(), cfg.Curve())
	assert.InDelta(t, defaultLaborRate, cfg.Pricing.LaborRate, 1e-12)
	assert.Equal(t, 30*time.Second, cfg.Shipping.Timeout)
	assert.Len(t, cfg.Markets, 2)

	assert.Contains(t, buf.String(), "pricing.markup_max")
	assert.Contains(t, buf.String(), "pricing.markup_min")
	assert.Contains(t, buf.String(), "pricing.decay_factor")
}

func TestLoad_PartialCurveWarnsOnlyForMissing(t *testing.T) {
	buf := captureLog(t)
	path := writeConfig(t, `
pricing:
  markup_max: 4
  markup_min: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, pricing.Curve{MarkupMax: 4, MarkupMin: 2, DecayFactor: pricing.DefaultDecayFactor}, cfg.Curve())
	assert.Contains(t, buf.String(), "pricing.decay_factor")
	assert.NotContains(t, buf.String(), "pricing.markup_max")
}

func TestLoad_InvertedCurveFallsBack(t *testing.T) {
	captureLog(t)
	path := writeConfig(t, `
pricing:
  markup_max: 1
  markup_min: 3
  decay_factor: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, pricing.DefaultMarkupMax, cfg.Curve().MarkupMax)
	assert.Equal(t, pricing.DefaultMarkupMin, cfg.Curve().MarkupMin)
	assert.Equal(t, 10.0, cfg.Curve().DecayFactor)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	captureLog(t)
	t.Setenv("CANDLE_HTTP_PORT", "9191")
	t.Setenv("CANDLE_PRICING_MARKUP_MAX", "6")
	path := writeConfig(t, `
http:
  port: "8181"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.HTTP.Port)
	assert.Equal(t, 6.0, cfg.Curve().MarkupMax)
}

func TestBuildMarkets(t *testing.T) {
	captureLog(t)
	path := writeConfig(t, `
markets:
  - id: etsy
    name: Etsy US
    fee_model: etsy
  - id: shop
    fee_model: percent
    percent: 2.9
    flat: 0.30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	markets, err := cfg.BuildMarkets()
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "Etsy US", markets[0].Name)
	assert.Equal(t, pricing.DefaultEtsy(false), markets[0].Fees)
	assert.Equal(t, "shop", markets[1].Name)
	assert.Equal(t, pricing.PercentFees{Label: "shop", Percent: 2.9, Flat: 0.30}, markets[1].Fees)
}

func TestBuildMarkets_RejectsUnknownModel(t *testing.T) {
	cfg := Config{Markets: []MarketConfig{{ID: "x", FeeModel: "barter"}}}

	_, err := cfg.BuildMarkets()
	assert.Error(t, err)
}

func TestBuildMarkets_RejectsDuplicates(t *testing.T) {
	cfg := Config{Markets: []MarketConfig{{ID: "etsy"}, {ID: "etsy"}}}

	_, err := cfg.BuildMarkets()
	assert.Error(t, err)
}
