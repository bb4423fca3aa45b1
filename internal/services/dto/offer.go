package dto

import (
	"time"

	"mmh_backend/internal/models"

	"github.com/shopspring/decimal"
)

// OfferRequest is used for both create and update; update replaces every
// mutable field.
type OfferRequest struct {
	// MediaUserID is honoured only for admins creating on behalf of a seller.
	MediaUserID            string              `json:"mediaUserId" validate:"omitempty,max=36"`
	Title                  string              `json:"title" validate:"required,max=255"`
	Format                 *string             `json:"format" validate:"omitempty,max=255"`
	Description            string              `json:"description" validate:"omitempty,max=10000"`
	MediaType              models.MediaType    `json:"mediaType" validate:"required,is-media-type"`
	PricingModel           models.PricingModel `json:"pricingModel" validate:"required,is-pricing-model"`
	UnitPrice              *decimal.Decimal    `json:"unitPrice"`
	CPT                    *decimal.Decimal    `json:"cpt"`
	MinOrderValue          *decimal.Decimal    `json:"minOrderValue"`
	DiscountPercent        decimal.Decimal     `json:"discountPercent"`
	Tags                   []string            `json:"tags" validate:"omitempty,dive,is-offer-tag"`
	AssetDeadline          *string             `json:"assetDeadline" validate:"omitempty,datetime=2006-01-02"`
	LastOrderDay           *string             `json:"lastOrderDay" validate:"omitempty,datetime=2006-01-02"`
	ValidFrom              time.Time           `json:"validFrom" validate:"required"`
	ValidTo                time.Time           `json:"validTo" validate:"required,gtfield=ValidFrom"`
	TechnicalConditions    *string             `json:"technicalConditions" validate:"omitempty,max=10000"`
	TechnicalConditionsURL *string             `json:"technicalConditionsUrl" validate:"omitempty,url,max=512"`
}

// OfferFilter mirrors the list query string.
type OfferFilter struct {
	Status      models.OfferStatus `form:"status" validate:"omitempty,is-offer-status"`
	MediaType   models.MediaType   `form:"mediaType" validate:"omitempty,is-media-type"`
	MediaUserID string             `form:"mediaUserId" validate:"omitempty,max=36"`
	From        *time.Time         `form:"from" time_format:"2006-01-02"`
	To          *time.Time         `form:"to" time_format:"2006-01-02"`
	Page        int                `form:"page" validate:"omitempty,min=1"`
	PageSize    int                `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type OfferResponse struct {
	ID                     string              `json:"id"`
	MediaUserID            string              `json:"mediaUserId"`
	Title                  string              `json:"title"`
	Format                 *string             `json:"format,omitempty"`
	Description            string              `json:"description"`
	MediaType              models.MediaType    `json:"mediaType"`
	PricingModel           models.PricingModel `json:"pricingModel"`
	UnitPrice              *decimal.Decimal    `json:"unitPrice,omitempty"`
	CPT                    *decimal.Decimal    `json:"cpt,omitempty"`
	MinOrderValue          *decimal.Decimal    `json:"minOrderValue,omitempty"`
	DiscountPercent        decimal.Decimal     `json:"discountPercent"`
	Tags                   []string            `json:"tags"`
	AssetDeadline          *string             `json:"assetDeadline,omitempty"`
	LastOrderDay           *string             `json:"lastOrderDay,omitempty"`
	ValidFrom              time.Time           `json:"validFrom"`
	ValidTo                time.Time           `json:"validTo"`
	TechnicalConditions    *string             `json:"technicalConditions,omitempty"`
	TechnicalConditionsURL *string             `json:"technicalConditionsUrl,omitempty"`
	Status                 models.OfferStatus  `json:"status"`
	CreatedAt              time.Time           `json:"createdAt"`
	UpdatedAt              time.Time           `json:"updatedAt"`
}

const DateLayout = "2006-01-02"

func NewOfferResponse(o *models.Offer) *OfferResponse {
	resp := &OfferResponse{
		ID:                     o.ID,
		MediaUserID:            o.MediaUserID,
		Title:                  o.Title,
		Format:                 o.Format,
		Description:            o.Description,
		MediaType:              o.MediaType,
		PricingModel:           o.Pricing,
		UnitPrice:              o.UnitPrice,
		CPT:                    o.CPT,
		MinOrderValue:          o.MinOrderValue,
		DiscountPercent:        o.DiscountPercent,
		Tags:                   o.Tags.Names(),
		ValidFrom:              o.ValidFrom,
		ValidTo:                o.ValidTo,
		TechnicalConditions:    o.TechnicalConditions,
		TechnicalConditionsURL: o.TechnicalConditionsURL,
		Status:                 o.Status,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
	if o.AssetDeadline != nil {
		s := time.Time(*o.AssetDeadline).Format(DateLayout)
		resp.AssetDeadline = &s
	}
	if o.LastOrderDay != nil {
		s := time.Time(*o.LastOrderDay).Format(DateLayout)
		resp.LastOrderDay = &s
	}
	return resp
}

func NewOfferResponses(offers []models.Offer) []*OfferResponse {
	out := make([]*OfferResponse, 0, len(offers))
	for i := range offers {
		out = append(out, NewOfferResponse(&offers[i]))
	}
	return out
}
