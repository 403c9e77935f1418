package pricing

import "math"

// FeeItem is one category of a marketplace fee.
type FeeItem struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Fees is the total a marketplace charges on one sale and its breakdown.
type Fees struct {
	Total float64   `json:"total"`
	Items []FeeItem `json:"items"`
}

func newFees(items ...FeeItem) Fees {
	f := Fees{Items: items}
	for _, it := range items {
		f.Total += it.Amount
	}
	return f
}

// FeeModel computes what a marketplace charges for a sale at price with the
// given shipping charged to the buyer.
type FeeModel interface {
	Name() string
	Fees(price, shipping float64) Fees
}

// AffineFeeModel is implemented by models whose fee is rate*(price+shipping)+fixed.
// ok is false when the model is not affine for its current parameters.
type AffineFeeModel interface {
	FeeModel
	Affine() (rate, fixed float64, ok bool)
}

// Etsy fee schedule defaults.
const (
	EtsyListingFee      = 0.20
	EtsyTransactionRate = 0.065
	EtsyPaymentRate     = 0.03
	EtsyPaymentFixed    = 0.25
	EtsyOffsiteAdsRate  = 0.15
)

// EtsyFees is the reference marketplace fee schedule.
type EtsyFees struct {
	ListingFee      float64
	TransactionRate float64
	PaymentRate     float64
	PaymentFixed    float64
	OffsiteAdsRate  float64
	OffsiteAds      bool
}

// DefaultEtsy returns the stock Etsy schedule, optionally with offsite ads.
func DefaultEtsy(offsiteAds bool) EtsyFees {
	return EtsyFees{
		ListingFee:      EtsyListingFee,
		TransactionRate: EtsyTransactionRate,
		PaymentRate:     EtsyPaymentRate,
		PaymentFixed:    EtsyPaymentFixed,
		OffsiteAdsRate:  EtsyOffsiteAdsRate,
		OffsiteAds:      offsiteAds,
	}
}

func (e EtsyFees) Name() string {
	if e.OffsiteAds {
		return "etsy+offsite_ads"
	}
	return "etsy"
}

func (e EtsyFees) Fees(price, shipping float64) Fees {
	base := price + shipping
	items := []FeeItem{
		{Category: "listing", Amount: e.ListingFee},
		{Category: "transaction", Amount: e.TransactionRate * base},
		{Category: "payment", Amount: e.PaymentRate*base + e.PaymentFixed},
	}
	if e.OffsiteAds {
		items = append(items, FeeItem{Category: "offsite_ads", Amount: e.OffsiteAdsRate * base})
	}
	return newFees(items...)
}

func (e EtsyFees) Affine() (float64, float64, bool) {
	rate := e.TransactionRate + e.PaymentRate
	if e.OffsiteAds {
		rate += e.OffsiteAdsRate
	}
	return rate, e.ListingFee + e.PaymentFixed, true
}

// PercentFees is a generic marketplace charging a percentage of price plus
// shipping and a flat amount per sale. A positive Cap limits the percentage part.
type PercentFees struct {
	Label   string
	Percent float64
	Flat    float64
	Cap     float64
}

func (p PercentFees) Name() string { return p.Label }

func (p PercentFees) Fees(price, shipping float64) Fees {
	commission := p.Percent / 100 * (price + shipping)
	if p.Cap > 0 {
		commission = math.Min(commission, p.Cap)
	}
	items := []FeeItem{{Category: "commission", Amount: commission}}
	if p.Flat != 0 {
		items = append(items, FeeItem{Category: "flat", Amount: p.Flat})
	}
	return newFees(items...)
}

func (p PercentFees) Affine() (float64, float64, bool) {
	if p.Cap > 0 {
		return 0, 0, false
	}
	return p.Percent / 100, p.Flat, true
}

// Net is what the seller keeps at price after cost, carrier shipping and fees.
// Shipping is both charged to the buyer and paid to the carrier.
func Net(model FeeModel, price, cogs, shipping float64) float64 {
	return price - cogs - shipping - model.Fees(price, shipping).Total
}
