package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Simplici0/candle.works/internal/pricing"
)

const (
	defaultConfigPath = "config.yaml"
	defaultDBPath     = "./candles.db"
	defaultPort       = "8080"
	defaultEnv        = "dev"
	defaultLaborRate  = 20.0
	envPrefix         = "CANDLE"
)

// Config holds application configuration. It is read once at startup and
// treated as immutable afterwards.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Markets  []MarketConfig `mapstructure:"markets"`
	Shipping ShippingConfig `mapstructure:"shipping"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type SeedConfig struct {
	DemoProduct bool `mapstructure:"demo_product"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// PricingConfig holds the recommended-price curve and the default labor rate.
type PricingConfig struct {
	MarkupMax   float64 `mapstructure:"markup_max"`
	MarkupMin   float64 `mapstructure:"markup_min"`
	DecayFactor float64 `mapstructure:"decay_factor"`
	LaborRate   float64 `mapstructure:"labor_rate"`
}

type FeesConfig struct {
	Etsy EtsyFeesConfig `mapstructure:"etsy"`
}

type EtsyFeesConfig struct {
	ListingFee      float64 `mapstructure:"listing_fee"`
	TransactionRate float64 `mapstructure:"transaction_rate"`
	PaymentRate     float64 `mapstructure:"payment_rate"`
	PaymentFixed    float64 `mapstructure:"payment_fixed"`
	OffsiteAdsRate  float64 `mapstructure:"offsite_ads_rate"`
}

// MarketConfig describes one sales channel. FeeModel is "etsy" or "percent".
type MarketConfig struct {
	ID                    string  `mapstructure:"id"`
	Name                  string  `mapstructure:"name"`
	FeeModel              string  `mapstructure:"fee_model"`
	OffsiteAds            bool    `mapstructure:"offsite_ads"`
	Percent               float64 `mapstructure:"percent"`
	Flat                  float64 `mapstructure:"flat"`
	Cap                   float64 `mapstructure:"cap"`
	DestinationPostalCode string  `mapstructure:"destination_postal_code"`
	DestinationCountry    string  `mapstructure:"destination_country"`
}

type ShippingConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RatePerSecond    float64       `mapstructure:"rate_per_second"`
	OriginPostalCode string        `mapstructure:"origin_postal_code"`
	OriginCountry    string        `mapstructure:"origin_country"`
}

// Load reads the optional YAML file at path (CONFIG_PATH or config.yaml when
// empty), then environment variables prefixed with CANDLE_.
func Load(path string) (Config, error) {
	// Best-effort: load local dev environment variables.
	if err := loadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("could not read .env")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path == "" {
		_ = v.BindEnv("config_path", "CONFIG_PATH")
		path = v.GetString("config_path")
	}
	if path == "" {
		path = defaultConfigPath
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Pricing = cfg.Pricing.withDefaults()
	if cfg.Pricing.LaborRate < 0 {
		log.Warn().Float64("labor_rate", cfg.Pricing.LaborRate).Msg("negative pricing.labor_rate, using default")
		cfg.Pricing.LaborRate = defaultLaborRate
	}
	if len(cfg.Markets) == 0 {
		log.Warn().Msg("no markets configured, using defaults")
		cfg.Markets = defaultMarkets()
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", defaultEnv)
	v.SetDefault("http.port", defaultPort)
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("pricing.labor_rate", defaultLaborRate)

	// Curve parameters have no viper default so that a missing value is
	// detectable and reported.
	for _, key := range []string{"pricing.markup_max", "pricing.markup_min", "pricing.decay_factor"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("fees.etsy.listing_fee", pricing.EtsyListingFee)
	v.SetDefault("fees.etsy.transaction_rate", pricing.EtsyTransactionRate)
	v.SetDefault("fees.etsy.payment_rate", pricing.EtsyPaymentRate)
	v.SetDefault("fees.etsy.payment_fixed", pricing.EtsyPaymentFixed)
	v.SetDefault("fees.etsy.offsite_ads_rate", pricing.EtsyOffsiteAdsRate)

	v.SetDefault("shipping.base_url", "http://localhost:5002")
	v.SetDefault("shipping.timeout", 30*time.Second)
	v.SetDefault("shipping.rate_per_second", 2.0)
	v.SetDefault("shipping.origin_country", "US")

	v.SetDefault("seed.demo_product", false)
}

func defaultMarkets() []MarketConfig {
	return []MarketConfig{
		{ID: "etsy", Name: "Etsy", FeeModel: "etsy", DestinationCountry: "US"},
		{ID: "etsy_ads", Name: "Etsy (offsite ads)", FeeModel: "etsy", OffsiteAds: true, DestinationCountry: "US"},
	}
}

// withDefaults replaces each missing or unusable curve parameter with its
// documented default, warning once per parameter.
func (p PricingConfig) withDefaults() PricingConfig {
	if p.MarkupMax <= 0 {
		warnDefault("pricing.markup_max", p.MarkupMax, pricing.DefaultMarkupMax)
		p.MarkupMax = pricing.DefaultMarkupMax
	}
	if p.MarkupMin <= 0 {
		warnDefault("pricing.markup_min", p.MarkupMin, pricing.DefaultMarkupMin)
		p.MarkupMin = pricing.DefaultMarkupMin
	}
	if p.DecayFactor <= 0 {
		warnDefault("pricing.decay_factor", p.DecayFactor, pricing.DefaultDecayFactor)
		p.DecayFactor = pricing.DefaultDecayFactor
	}
	if p.MarkupMin > p.MarkupMax {
		log.Warn().
			Float64("markup_min", p.MarkupMin).
			Float64("markup_max", p.MarkupMax).
			Msg("pricing.markup_min exceeds pricing.markup_max, using default curve")
		p.MarkupMax = pricing.DefaultMarkupMax
		p.MarkupMin = pricing.DefaultMarkupMin
	}
	return p
}

func warnDefault(key string, got, fallback float64) {
	log.Warn().Str("key", key).Float64("value", got).Float64("default", fallback).Msg("missing or invalid pricing parameter, using default")
}

// IsDev reports whether the app runs in the development environment.
func (c Config) IsDev() bool {
	return c.App.Env == "dev"
}

// Curve returns the recommended-price curve.
func (c Config) Curve() pricing.Curve {
	return pricing.Curve{
		MarkupMax:   c.Pricing.MarkupMax,
		MarkupMin:   c.Pricing.MarkupMin,
		DecayFactor: c.Pricing.DecayFactor,
	}
}

// BuildMarkets resolves each configured market to its fee model.
func (c Config) BuildMarkets() ([]pricing.Market, error) {
	markets := make([]pricing.Market, 0, len(c.Markets))
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if m.ID == "" {
			return nil, fmt.Errorf("market without id")
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate market id %q", m.ID)
		}
		seen[m.ID] = true

		name := m.Name
		if name == "" {
			name = m.ID
		}

		var model pricing.FeeModel
		switch strings.ToLower(m.FeeModel) {
		case "", "etsy":
			e := c.Fees.Etsy
			model = pricing.EtsyFees{
				ListingFee:      e.ListingFee,
				TransactionRate: e.TransactionRate,
				PaymentRate:     e.PaymentRate,
				PaymentFixed:    e.PaymentFixed,
				OffsiteAdsRate:  e.OffsiteAdsRate,
				OffsiteAds:      m.OffsiteAds,
			}
		case "percent":
			model = pricing.PercentFees{Label: m.ID, Percent: m.Percent, Flat: m.Flat, Cap: m.Cap}
		default:
			return nil, fmt.Errorf("market %q: unknown fee model %q", m.ID, m.FeeModel)
		}
		markets = append(markets, pricing.Market{ID: m.ID, Name: name, Fees: model})
	}
	return markets, nil
}
