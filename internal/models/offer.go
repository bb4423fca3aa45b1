package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Offer struct {
	BaseModel
	MediaUserID string       `gorm:"type:varchar(36);not null;index"`
	MediaUser   *User        `gorm:"foreignKey:MediaUserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Title       string       `gorm:"type:varchar(255);not null"`
	Format      *string      `gorm:"type:varchar(255)"`
	Description string       `gorm:"type:text"`
	MediaType   MediaType    `gorm:"type:varchar(20);not null;index"`
	Pricing     PricingModel `gorm:"column:pricing_model;type:varchar(20);not null"`

	UnitPrice       *decimal.Decimal `gorm:"type:numeric(12,2)"`
	CPT             *decimal.Decimal `gorm:"column:cpt;type:numeric(12,2)"`
	MinOrderValue   *decimal.Decimal `gorm:"type:numeric(12,2)"`
	DiscountPercent decimal.Decimal  `gorm:"type:numeric(5,2);not null;default:0"`

	Tags OfferTag `gorm:"not null;default:0"`

	AssetDeadline *datatypes.Date
	LastOrderDay  *datatypes.Date

	ValidFrom time.Time `gorm:"not null;index"`
	ValidTo   time.Time `gorm:"not null;index"`

	TechnicalConditions    *string `gorm:"type:text"`
	TechnicalConditionsURL *string `gorm:"type:varchar(512)"`

	Status OfferStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
}

// IsOrderableAt reports whether an order may be placed against the offer at t.
// The validity window is inclusive on both ends.
func (o *Offer) IsOrderableAt(t time.Time) bool {
	if o.Status != OfferStatusPublished {
		return false
	}
	return !t.Before(o.ValidFrom) && !t.After(o.ValidTo)
}

// OfferTag is a bitset over a fixed vocabulary.
type OfferTag int64

const (
	OfferTagNew OfferTag = 1 << iota
	OfferTagBestseller
	OfferTagDiscount
	OfferTagLastMinute
	OfferTagExclusive
	OfferTagSeasonal
	OfferTagRegional
	OfferTagNational
)

var offerTagNames = map[OfferTag]string{
	OfferTagNew:        "new",
	OfferTagBestseller: "bestseller",
	OfferTagDiscount:   "discount",
	OfferTagLastMinute: "last_minute",
	OfferTagExclusive:  "exclusive",
	OfferTagSeasonal:   "seasonal",
	OfferTagRegional:   "regional",
	OfferTagNational:   "national",
}

// ParseOfferTag resolves a vocabulary name to its bit.
func ParseOfferTag(name string) (OfferTag, bool) {
	for tag, n := range offerTagNames {
		if n == name {
			return tag, true
		}
	}
	return 0, false
}

// OfferTagsFromNames folds names into a bitset. Unknown names are reported
// back so callers can build a validation message.
func OfferTagsFromNames(names []string) (OfferTag, []string) {
	var tags OfferTag
	var unknown []string
	for _, name := range names {
		tag, ok := ParseOfferTag(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		tags |= tag
	}
	return tags, unknown
}

func (t OfferTag) Has(tag OfferTag) bool {
	return t&tag != 0
}

// Names returns the set flags in bit order.
func (t OfferTag) Names() []string {
	bits := make([]int, 0, len(offerTagNames))
	for tag := range offerTagNames {
		if t.Has(tag) {
			bits = append(bits, int(tag))
		}
	}
	sort.Ints(bits)

	names := make([]string, 0, len(bits))
	for _, b := range bits {
		names = append(names, offerTagNames[OfferTag(b)])
	}
	return names
}
