package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/Simplici0/candle.works/internal/config"
	"github.com/Simplici0/candle.works/internal/db"
	"github.com/Simplici0/candle.works/internal/logger"
	"github.com/Simplici0/candle.works/internal/metrics"
	"github.com/Simplici0/candle.works/internal/migrations"
	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/seed"
	"github.com/Simplici0/candle.works/internal/session"
	"github.com/Simplici0/candle.works/internal/shipping"
	"github.com/Simplici0/candle.works/internal/store"
)

const shutdownTimeout = 10 * time.Second

// rateQuoter is the part of the shipping client the handlers use.
type rateQuoter interface {
	QuoteMarkets(ctx context.Context, weightG float64, destinations map[string]shipping.Destination) (map[string]shipping.MarketQuote, error)
}

type server struct {
	log          zerolog.Logger
	store        *store.Store
	settings     session.Settings
	destinations map[string]shipping.Destination
	quoter       rateQuoter
	metrics      *metrics.Metrics
	validate     *validator.Validate
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	appLog := logger.New(cfg.App.Env)

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		appLog.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		appLog.Fatal().Err(err).Msg("failed to run database migrations")
	}

	stats, err := seed.Run(database, seed.Config{DemoProduct: cfg.Seed.DemoProduct, LaborRate: cfg.Pricing.LaborRate})
	if err != nil {
		appLog.Fatal().Err(err).Msg("failed to seed database")
	}
	appLog.Info().Int("inserts", stats.Inserts).Msg("seed applied")

	markets, err := cfg.BuildMarkets()
	if err != nil {
		appLog.Fatal().Err(err).Msg("invalid market configuration")
	}

	srv := &server{
		log:   appLog,
		store: store.New(database),
		settings: session.Settings{
			Curve:     cfg.Curve(),
			Markets:   markets,
			LaborRate: cfg.Pricing.LaborRate,
		},
		destinations: destinations(cfg.Markets),
		quoter: shipping.New(shipping.Config{
			BaseURL:          cfg.Shipping.BaseURL,
			APIKey:           cfg.Shipping.APIKey,
			Timeout:          cfg.Shipping.Timeout,
			RatePerSecond:    cfg.Shipping.RatePerSecond,
			OriginPostalCode: cfg.Shipping.OriginPostalCode,
			OriginCountry:    cfg.Shipping.OriginCountry,
		}),
		metrics:  metrics.New(),
		validate: newValidator(),
	}

	r := srv.routes()
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", srv.metrics.Handler())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info().Str("addr", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	appLog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func destinations(markets []config.MarketConfig) map[string]shipping.Destination {
	out := make(map[string]shipping.Destination, len(markets))
	for _, m := range markets {
		out[m.ID] = shipping.Destination{PostalCode: m.DestinationPostalCode, Country: m.DestinationCountry}
	}
	return out
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.log))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.handleHealth)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleProductsList)
		r.Post("/", s.handleProductsCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleProductGet)
			r.Put("/", s.handleProductUpdate)
			r.Delete("/", s.handleProductDelete)
			r.Post("/stock", s.handleProductStock)
			r.Get("/pricing", s.handleProductPricing)
			r.Post("/shipping/quote", s.handleShippingQuote)
			r.Get("/images", s.handleImagesList)
			r.Post("/images", s.handleImageUpload)
			r.Get("/images/{imageID}", s.handleImageGet)
			r.Delete("/images/{imageID}", s.handleImageDelete)
		})
	})
	r.Post("/pricing/preview", s.handlePricingPreview)

	r.Route("/materials", func(r chi.Router) {
		r.Get("/", s.handleMaterialsList)
		r.Post("/", s.handleMaterialsCreate)
		r.Get("/low-stock", s.handleMaterialsLowStock)
		r.Get("/export.xlsx", s.handleMaterialsExport)
		r.Post("/import.xlsx", s.handleMaterialsImport)
		r.Get("/{id}", s.handleMaterialsGet)
		r.Put("/{id}", s.handleMaterialsUpdate)
		r.Post("/{id}/stock", s.handleMaterialsStock)
	})

	r.Get("/transactions", s.handleTransactionsList)
	r.Post("/transactions", s.handleTransactionsCreate)
	r.Delete("/transactions/{id}", s.handleTransactionsDelete)
	r.Get("/reports/monthly", s.handleMonthlyReport)

	r.Post("/catalog/import", s.handleCatalogImport)
	r.Get("/catalog/export.xlsx", s.handleCatalogExport)

	return r
}

// requestIDLogger tags the request logger with the id set by middleware.RequestID.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// newSession starts an empty pricing session with this server's settings.
func (s *server) newSession() *session.Session {
	return session.New(s.settings, session.WithRecomputeObserver(s.metrics.ObserveRecompute))
}

func (s *server) openSession(ctx context.Context, id int64) (*session.Session, error) {
	return session.Open(ctx, s.store, id, s.settings, session.WithRecomputeObserver(s.metrics.ObserveRecompute))
}

func (s *server) markets() []pricing.Market {
	return s.settings.Markets
}
