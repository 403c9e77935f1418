// Package shipping fetches carrier rates from a rating service. It is called
// only on explicit user request and never from a pricing pass.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrNoRates is returned when the service answers without any usable rate.
	ErrNoRates = errors.New("no shipping rates")
	// ErrInvalidRequest is returned before any call for a request that cannot be rated.
	ErrInvalidRequest = errors.New("invalid shipping request")
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	RatePerSecond    float64
	OriginPostalCode string
	OriginCountry    string
}

// Request describes one parcel to rate.
type Request struct {
	ToPostalCode string  `json:"to_postal_code"`
	ToCountry    string  `json:"to_country"`
	WeightG      float64 `json:"weight_g"`
	LengthCM     float64 `json:"length_cm,omitempty"`
	WidthCM      float64 `json:"width_cm,omitempty"`
	HeightCM     float64 `json:"height_cm,omitempty"`
}

// Rate is one carrier offer.
type Rate struct {
	Carrier string  `json:"carrier"`
	Service string  `json:"service"`
	Cost    float64 `json:"cost"`
	ETADays int     `json:"eta_days"`
}

// Destination is where a market's buyers typically are.
type Destination struct {
	PostalCode string
	Country    string
}

// Client is safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	origin  address
}

type address struct {
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

type parcel struct {
	Weight     float64 `json:"weight"`
	WeightUnit string  `json:"weight_unit"`
	Length     float64 `json:"length,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Dimension  string  `json:"dimension_unit,omitempty"`
}

type rateRequest struct {
	Shipper   address  `json:"shipper"`
	Recipient address  `json:"recipient"`
	Parcels   []parcel `json:"parcels"`
}

type rateResponse struct {
	Rates []struct {
		CarrierName string  `json:"carrier_name"`
		Service     string  `json:"service"`
		TotalCharge float64 `json:"total_charge"`
		TransitDays *int    `json:"transit_days"`
	} `json:"rates"`
	Messages []struct {
		CarrierName string `json:"carrier_name"`
		Message     string `json:"message"`
	} `json:"messages"`
}

type errorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// New returns a client for the rating service at cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "candle.works/1.0")
	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", "Token "+cfg.APIKey)
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		origin:  address{PostalCode: cfg.OriginPostalCode, CountryCode: strings.ToUpper(cfg.OriginCountry)},
	}
}

// Quote returns the available rates for req, cheapest first.
func (c *Client) Quote(ctx context.Context, req Request) ([]Rate, error) {
	if req.ToCountry == "" {
		return nil, fmt.Errorf("%w: destination country is required", ErrInvalidRequest)
	}
	if math.IsNaN(req.WeightG) || req.WeightG <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive", ErrInvalidRequest)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limit: %w", err)
	}

	p := parcel{Weight: req.WeightG, WeightUnit: "G"}
	if req.LengthCM > 0 && req.WidthCM > 0 && req.HeightCM > 0 {
		p.Length, p.Width, p.Height, p.Dimension = req.LengthCM, req.WidthCM, req.HeightCM, "CM"
	}
	body := rateRequest{
		Shipper:   c.origin,
		Recipient: address{PostalCode: req.ToPostalCode, CountryCode: strings.ToUpper(req.ToCountry)},
		Parcels:   []parcel{p},
	}

	var (
		res     rateResponse
		errResp errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&res).
		SetError(&errResp).
		Post("/v1/proxy/rates")
	if err != nil {
		return nil, fmt.Errorf("request shipping rates: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if len(errResp.Errors) > 0 {
			msg = errResp.Errors[0].Message
		}
		return nil, fmt.Errorf("shipping rates: status %d: %s", resp.StatusCode(), msg)
	}

	rates := make([]Rate, 0, len(res.Rates))
	for _, r := range res.Rates {
		if math.IsNaN(r.TotalCharge) || r.TotalCharge < 0 {
			continue
		}
		rt := Rate{Carrier: r.CarrierName, Service: r.Service, Cost: r.TotalCharge}
		if r.TransitDays != nil {
			rt.ETADays = *r.TransitDays
		}
		rates = append(rates, rt)
	}
	if len(rates) == 0 {
		if len(res.Messages) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoRates, res.Messages[0].Message)
		}
		return nil, ErrNoRates
	}

	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Cost < rates[j].Cost })
	return rates, nil
}

// MarketQuote is the cheapest rate for one market, or why there is none.
type MarketQuote struct {
	MarketID string `json:"market_id"`
	Rate     *Rate  `json:"rate,omitempty"`
	Error    string `json:"error,omitempty"`
}

// QuoteMarkets rates a parcel of weightG grams to every market's destination
// concurrently. A failure for one market does not fail the others; the
// returned error is set only when ctx ends first.
func (c *Client) QuoteMarkets(ctx context.Context, weightG float64, destinations map[string]Destination) (map[string]MarketQuote, error) {
	ids := make([]string, 0, len(destinations))
	for id := range destinations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	quotes := make([]MarketQuote, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		dest := destinations[id]
		g.Go(func() error {
			q := MarketQuote{MarketID: id}
			rates, err := c.Quote(gctx, Request{
				ToPostalCode: dest.PostalCode,
				ToCountry:    dest.Country,
				WeightG:      weightG,
			})
			if err != nil {
				q.Error = err.Error()
			} else {
				q.Rate = &rates[0]
			}
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]MarketQuote, len(quotes))
	for _, q := range quotes {
		out[q.MarketID] = q
	}
	return out, nil
}
