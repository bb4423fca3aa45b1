package services

import (
	"fmt"

	"mmh_backend/internal/config"
	"mmh_backend/internal/models"

	"github.com/shopspring/decimal"
)

// CommissionPolicy picks the commission rate for an order being closed.
type CommissionPolicy interface {
	Rate(order *models.Order, mediaType models.MediaType) decimal.Decimal
}

// TieredCommissionPolicy charges StandardRate, dropping to ReducedRate once
// the order total reaches ReducedFrom. A media-type override wins over both.
type TieredCommissionPolicy struct {
	StandardRate   decimal.Decimal
	ReducedRate    decimal.Decimal
	ReducedFrom    decimal.Decimal
	MediaTypeRates map[models.MediaType]decimal.Decimal
}

func (p *TieredCommissionPolicy) Rate(order *models.Order, mediaType models.MediaType) decimal.Decimal {
	if rate, ok := p.MediaTypeRates[mediaType]; ok {
		return rate
	}
	if !p.ReducedFrom.IsZero() && order.TotalPrice.GreaterThanOrEqual(p.ReducedFrom) {
		return p.ReducedRate
	}
	return p.StandardRate
}

// CommissionAmount is round(total * rate, 2).
func CommissionAmount(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(2)
}

// NewCommissionPolicyFromConfig parses rates written as decimal strings.
func NewCommissionPolicyFromConfig(cfg config.CommissionConfig) (*TieredCommissionPolicy, error) {
	parse := func(name, value string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("commission %s: %w", name, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("commission %s must not be negative", name)
		}
		return d, nil
	}

	standard, err := parse("standard_rate", cfg.StandardRate)
	if err != nil {
		return nil, err
	}
	reduced, err := parse("reduced_rate", cfg.ReducedRate)
	if err != nil {
		return nil, err
	}
	threshold := decimal.Zero
	if cfg.ReducedFromTotal != "" {
		if threshold, err = parse("reduced_from_total", cfg.ReducedFromTotal); err != nil {
			return nil, err
		}
	}

	overrides := make(map[models.MediaType]decimal.Decimal, len(cfg.MediaTypeRates))
	for mt, value := range cfg.MediaTypeRates {
		if !models.MediaType(mt).IsValid() {
			return nil, fmt.Errorf("commission media_type_rates: unknown media type %q", mt)
		}
		rate, err := parse("media_type_rates."+mt, value)
		if err != nil {
			return nil, err
		}
		overrides[models.MediaType(mt)] = rate
	}

	return &TieredCommissionPolicy{
		StandardRate:   standard,
		ReducedRate:    reduced,
		ReducedFrom:    threshold,
		MediaTypeRates: overrides,
	}, nil
}
