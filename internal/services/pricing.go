package services

import (
	"fmt"

	"mmh_backend/internal/models"

	"github.com/shopspring/decimal"
)

// MinOrderPolicy decides what happens to a total below the offer's minimum.
type MinOrderPolicy string

const (
	// MinOrderRaise lifts the total to the minimum order value.
	MinOrderRaise MinOrderPolicy = "raise"
	// MinOrderReject refuses the order.
	MinOrderReject MinOrderPolicy = "reject"
)

func ParseMinOrderPolicy(s string) (MinOrderPolicy, error) {
	switch MinOrderPolicy(s) {
	case MinOrderRaise, "":
		return MinOrderRaise, nil
	case MinOrderReject:
		return MinOrderReject, nil
	}
	return "", fmt.Errorf("unknown min order policy %q", s)
}

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// PriceQuote is the outcome of pricing an order.
type PriceQuote struct {
	Total decimal.Decimal
	// Raised is set when the total was lifted to the minimum order value.
	Raised bool
	// BelowMinimum is set when the computed total is under the minimum and
	// the policy is reject.
	BelowMinimum bool
}

// ComputeTotal prices an order from its frozen snapshot. Exactly one of qty
// and impressions must be set; callers validate that before.
//
//	per_unit: unitPrice * qty * (1 - discount/100)
//	cpt:      cpt * impressions/1000 * (1 - discount/100)
//
// Results are rounded half away from zero to 2 places.
func ComputeTotal(snap models.PricingSnapshot, qty *int, impressions *int64, policy MinOrderPolicy) (PriceQuote, error) {
	factor := hundred.Sub(snap.DiscountPercent).Div(hundred)

	var gross decimal.Decimal
	switch snap.Model {
	case models.PricingModelPerUnit:
		if snap.UnitPrice == nil || qty == nil {
			return PriceQuote{}, fmt.Errorf("per-unit pricing needs unit price and quantity")
		}
		gross = snap.UnitPrice.Mul(decimal.NewFromInt(int64(*qty)))
	case models.PricingModelCPT:
		if snap.CPT == nil || impressions == nil {
			return PriceQuote{}, fmt.Errorf("cpt pricing needs cpt rate and impressions")
		}
		gross = snap.CPT.Mul(decimal.NewFromInt(*impressions)).Div(thousand)
	default:
		return PriceQuote{}, fmt.Errorf("unknown pricing model %q", snap.Model)
	}

	quote := PriceQuote{Total: gross.Mul(factor).Round(2)}

	if snap.MinOrderValue != nil && quote.Total.LessThan(*snap.MinOrderValue) {
		if policy == MinOrderReject {
			quote.BelowMinimum = true
			return quote, nil
		}
		quote.Total = snap.MinOrderValue.Round(2)
		quote.Raised = true
	}
	return quote, nil
}
