package main

import (
	"errors"
	"net/http"
	"sort"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/session"
	"github.com/Simplici0/candle.works/internal/shipping"
)

type editRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

type previewRequest struct {
	// ProductID starts the preview from a stored product instead of a blank form.
	ProductID int64         `json:"product_id" validate:"gte=0"`
	Edits     []editRequest `json:"edits" validate:"dive"`
}

type pricingResponse struct {
	ProductID int64            `json:"product_id,omitempty"`
	Weight    pricing.Override `json:"weight"`
	Pricing   pricing.Bundle   `json:"pricing"`
}

func respondSession(w http.ResponseWriter, sess *session.Session) {
	writeJSON(w, http.StatusOK, pricingResponse{
		ProductID: sess.ProductID(),
		Weight:    sess.Form().Weight,
		Pricing:   sess.Result().Bundle(),
	})
}

func (s *server) handleProductPricing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.openSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSession(w, sess)
}

// handlePricingPreview applies raw form edits and returns the recomputed
// pricing. Nothing is saved.
func (s *server) handlePricingPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess := s.newSession()
	if req.ProductID > 0 {
		var err error
		if sess, err = s.openSession(r.Context(), req.ProductID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	edits := make([]session.Edit, 0, len(req.Edits))
	for _, e := range req.Edits {
		edits = append(edits, session.Edit{Field: e.Field, Value: e.Value})
	}
	if _, err := sess.Apply(edits...); err != nil {
		writeError(w, r, err)
		return
	}
	respondSession(w, sess)
}

type quoteRequest struct {
	// Markets limits the quote to these market ids; empty means all.
	Markets []string `json:"markets" validate:"dive,required"`
	// Apply stores the cheapest rate per market as the product's shipping cost.
	Apply bool `json:"apply"`
}

type quoteResponse struct {
	WeightG float64                         `json:"weight_g"`
	Quotes  map[string]shipping.MarketQuote `json:"quotes"`
	Pricing pricing.Bundle                  `json:"pricing"`
}

func (s *server) handleShippingQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req quoteRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	dests, err := s.quoteDestinations(req.Markets)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.openSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	weight := sess.Result().Weight.Grams

	quotes, err := s.quoter.QuoteMarkets(r.Context(), weight, dests)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := make([]string, 0, len(quotes))
	for marketID := range quotes {
		ids = append(ids, marketID)
	}
	sort.Strings(ids)
	for _, marketID := range ids {
		q := quotes[marketID]
		if q.Rate == nil {
			s.metrics.ObserveQuote(errors.New(q.Error))
			continue
		}
		s.metrics.ObserveQuote(nil)
		if req.Apply {
			sess.SetShipping(marketID, pricing.Plain(q.Rate.Cost))
		}
	}

	if req.Apply {
		if _, err := sess.Save(r.Context(), s.store); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		WeightG: weight,
		Quotes:  quotes,
		Pricing: sess.Result().Bundle(),
	})
}

func (s *server) quoteDestinations(markets []string) (map[string]shipping.Destination, error) {
	if len(markets) == 0 {
		return s.destinations, nil
	}
	dests := make(map[string]shipping.Destination, len(markets))
	for _, id := range markets {
		d, ok := s.destinations[id]
		if !ok {
			return nil, badRequestf("unknown market %q", id)
		}
		dests[id] = d
	}
	return dests, nil
}
