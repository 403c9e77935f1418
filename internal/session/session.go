// Package session holds the state of one product being priced and recomputes
// its pricing after every edit.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Simplici0/candle.works/internal/pricing"
	"github.com/Simplici0/candle.works/internal/store"
)

// ProductRepository is the persistence a session loads from and saves to.
type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (store.Product, error)
	UpsertProduct(ctx context.Context, p store.Product) (int64, error)
}

// Settings are fixed for the lifetime of a session.
type Settings struct {
	Curve     pricing.Curve
	Markets   []pricing.Market
	LaborRate float64
}

// Listener receives every published result.
type Listener func(pricing.Result)

// Option configures a Session.
type Option func(*Session)

// WithRecomputeObserver reports the duration of every pricing pass.
func WithRecomputeObserver(fn func(time.Duration)) Option {
	return func(s *Session) { s.observe = fn }
}

// Session owns the form of a single product. Every edit triggers one full
// pricing pass from the current form, and the result is published whole.
// A Session is not safe for concurrent use.
type Session struct {
	settings  Settings
	productID int64
	stock     int

	form      Form
	revision  uint64
	result    pricing.Result
	listeners []Listener
	observe   func(time.Duration)
}

// New starts a session for a product that does not exist yet.
func New(settings Settings, opts ...Option) *Session {
	s := &Session{settings: settings, form: newForm()}
	for _, opt := range opts {
		opt(s)
	}
	labor := s.form.line(pricing.Labor)
	labor.Rate = pricing.Plain(settings.LaborRate)
	s.form.Lines[pricing.Labor] = labor
	s.recompute()
	return s
}

// Open loads product id from repo into a new session.
func Open(ctx context.Context, repo ProductRepository, id int64, settings Settings, opts ...Option) (*Session, error) {
	p, err := repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	s := &Session{settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	s.Load(p)
	return s, nil
}

// Load replaces the form with a stored product and recomputes.
func (s *Session) Load(p store.Product) pricing.Result {
	s.productID = p.ID
	s.stock = p.Stock
	s.form = fromProduct(p)
	return s.recompute()
}

// Subscribe registers fn for every future result.
func (s *Session) Subscribe(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

// Apply makes all edits and recomputes once. When an edit is rejected the
// form is left unchanged.
func (s *Session) Apply(edits ...Edit) (pricing.Result, error) {
	next := s.form.clone()
	for _, e := range edits {
		if err := next.set(e); err != nil {
			return s.result, err
		}
	}
	s.form = next
	return s.recompute(), nil
}

// SetLineField edits one field of the line of kind k.
func (s *Session) SetLineField(k pricing.ComponentKind, field, value string) (pricing.Result, error) {
	return s.Apply(Edit{Field: k.String() + "." + field, Value: value})
}

// SetManualWeight takes the weight field over from auto-fill. Clearing it
// hands it back.
func (s *Session) SetManualWeight(raw string) pricing.Result {
	r, _ := s.Apply(Edit{Field: FieldManualWeight, Value: raw})
	return r
}

func (s *Session) SetSellingPrice(raw string) pricing.Result {
	r, _ := s.Apply(Edit{Field: FieldSellingPrice, Value: raw})
	return r
}

func (s *Session) SetShipping(marketID, raw string) pricing.Result {
	r, _ := s.Apply(Edit{Field: shippingPrefix + marketID, Value: raw})
	return r
}

// Result returns the last published result.
func (s *Session) Result() pricing.Result { return s.result }

// Form returns a copy of the current form state.
func (s *Session) Form() Form { return s.form.clone() }

// ProductID is zero until the session is loaded or saved.
func (s *Session) ProductID() int64 { return s.productID }

// Product folds the form into a record ready to save.
func (s *Session) Product() store.Product {
	return s.form.toProduct(s.productID, s.stock)
}

// Save upserts the product and adopts the id it was stored under.
func (s *Session) Save(ctx context.Context, repo ProductRepository) (int64, error) {
	id, err := repo.UpsertProduct(ctx, s.Product())
	if err != nil {
		return 0, fmt.Errorf("save product: %w", err)
	}
	s.productID = id
	return id, nil
}

func (s *Session) recompute() pricing.Result {
	start := time.Now()

	res := pricing.Calculate(pricing.Input{
		Lines:        s.form.bomLines(),
		ManualWeight: s.form.Weight,
		SellingPrice: s.form.SellingPrice,
		Shipping:     s.form.Shipping,
		Curve:        s.settings.Curve,
		Markets:      s.settings.Markets,
	})
	s.form.Weight = s.form.Weight.Suggest(pricing.Grams(res.AutoWeightG))

	s.revision++
	res.Revision = s.revision
	s.result = res

	if s.observe != nil {
		s.observe(time.Since(start))
	}
	for _, fn := range s.listeners {
		fn(res)
	}
	return res
}

func (f Form) clone() Form {
	c := f
	c.Lines = make(map[pricing.ComponentKind]pricing.RawLine, len(f.Lines))
	for k, l := range f.Lines {
		c.Lines[k] = l
	}
	c.Shipping = make(map[string]string, len(f.Shipping))
	for m, v := range f.Shipping {
		c.Shipping[m] = v
	}
	return c
}
