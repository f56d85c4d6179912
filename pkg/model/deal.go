package model

import (
	"fmt"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// discountTolerance is the largest gap allowed between a stored discount and estimate - price
const discountTolerance = 1e-6

var (
	ErrInconsistentDiscount = goerr.New("discount does not match estimate minus price")
)

// Deal is a purchasable offer found by the scanner. URL identifies the deal.
type Deal struct {
	ProductDescription string  `json:"product_description"`
	Price              float64 `json:"price"`
	URL                string  `json:"url"`
}

// Validate checks if the deal is usable for pricing
func (d *Deal) Validate() error {
	if d.ProductDescription == "" {
		return goerr.New("deal product description is empty", goerr.V("url", d.URL))
	}
	if d.URL == "" {
		return goerr.New("deal url is empty")
	}
	if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) || d.Price <= 0 {
		return goerr.New("deal price must be a positive number", goerr.V("url", d.URL), goerr.V("price", d.Price))
	}
	return nil
}

// DealSelection is a set of deals chosen from one scan
type DealSelection struct {
	Deals []*Deal `json:"deals"`
}

// Opportunity is a deal with an estimated true value
type Opportunity struct {
	Deal     Deal    `json:"deal"`
	Estimate float64 `json:"estimate"`
	Discount float64 `json:"discount"`
}

// NewOpportunity builds an opportunity with discount = estimate - deal price
func NewOpportunity(deal Deal, estimate float64) *Opportunity {
	return &Opportunity{
		Deal:     deal,
		Estimate: estimate,
		Discount: estimate - deal.Price,
	}
}

// Validate checks that the discount agrees with the estimate and deal price
func (o *Opportunity) Validate() error {
	for name, v := range map[string]float64{"price": o.Deal.Price, "estimate": o.Estimate, "discount": o.Discount} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return goerr.New("opportunity value is not a finite number", goerr.V("url", o.Deal.URL), goerr.V(name, v))
		}
	}
	want := o.Estimate - o.Deal.Price
	if math.Abs(want-o.Discount) > discountTolerance {
		return goerr.Wrap(ErrInconsistentDiscount, "invalid opportunity",
			goerr.V("url", o.Deal.URL),
			goerr.V("estimate", o.Estimate),
			goerr.V("price", o.Deal.Price),
			goerr.V("discount", o.Discount))
	}
	return nil
}

func (o *Opportunity) String() string {
	return fmt.Sprintf("%s: $%.2f (estimate $%.2f, discount $%.2f)", o.Deal.URL, o.Deal.Price, o.Estimate, o.Discount)
}
