package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	BaseModel
	OrderNumber string `gorm:"type:varchar(32);uniqueIndex;not null"`

	OfferID      string `gorm:"type:varchar(36);not null;index"`
	Offer        *Offer `gorm:"foreignKey:OfferID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	AgencyUserID string `gorm:"type:varchar(36);not null;index"`
	AgencyUser   *User  `gorm:"foreignKey:AgencyUserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	// MediaUserID is copied from the offer owner at creation and never follows
	// later offer changes.
	MediaUserID string `gorm:"type:varchar(36);not null;index"`
	MediaUser   *User  `gorm:"foreignKey:MediaUserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	PreferredFrom time.Time `gorm:"not null"`
	PreferredTo   time.Time `gorm:"not null"`

	// Pricing snapshot taken from the offer.
	Pricing         PricingModel     `gorm:"column:pricing_model;type:varchar(20);not null"`
	UnitPrice       *decimal.Decimal `gorm:"type:numeric(12,2)"`
	CPT             *decimal.Decimal `gorm:"column:cpt;type:numeric(12,2)"`
	DiscountPercent decimal.Decimal  `gorm:"type:numeric(5,2);not null;default:0"`
	MinOrderValue   *decimal.Decimal `gorm:"type:numeric(12,2)"`

	QuantityUnits *int
	Impressions   *int64

	TotalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Note       string          `gorm:"type:text"`
	Status     OrderStatus     `gorm:"type:varchar(20);not null;default:'new';index"`

	CommissionRate   *decimal.Decimal `gorm:"type:numeric(6,4)"`
	CommissionAmount *decimal.Decimal `gorm:"type:numeric(14,2)"`
	ClosedAt         *time.Time

	Version int `gorm:"not null;default:1"`
}

// OrderSequence holds the last order sequence issued in a year. Its row is
// locked while a number is allocated.
type OrderSequence struct {
	Year      int `gorm:"primaryKey;autoIncrement:false"`
	LastValue int `gorm:"not null;default:0"`
}

func (o *Order) IsClosed() bool {
	return o.Status == OrderStatusClosed
}

// Snapshot returns the pricing inputs frozen on the order.
func (o *Order) Snapshot() PricingSnapshot {
	return PricingSnapshot{
		Model:           o.Pricing,
		UnitPrice:       o.UnitPrice,
		CPT:             o.CPT,
		DiscountPercent: o.DiscountPercent,
		MinOrderValue:   o.MinOrderValue,
	}
}

// PricingSnapshot is the subset of an offer that determines an order total.
type PricingSnapshot struct {
	Model           PricingModel
	UnitPrice       *decimal.Decimal
	CPT             *decimal.Decimal
	DiscountPercent decimal.Decimal
	MinOrderValue   *decimal.Decimal
}

// SnapshotOf captures the current pricing of an offer. Values are copied so
// later edits to the offer cannot leak into the order.
func SnapshotOf(o *Offer) PricingSnapshot {
	return PricingSnapshot{
		Model:           o.Pricing,
		UnitPrice:       copyDecimal(o.UnitPrice),
		CPT:             copyDecimal(o.CPT),
		DiscountPercent: o.DiscountPercent,
		MinOrderValue:   copyDecimal(o.MinOrderValue),
	}
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
