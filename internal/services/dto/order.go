package dto

import (
	"time"

	"mmh_backend/internal/models"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest needs exactly one of QuantityUnits or Impressions.
type CreateOrderRequest struct {
	OfferID       string    `json:"offerId" validate:"required,max=36"`
	PreferredFrom time.Time `json:"preferredFrom" validate:"required"`
	PreferredTo   time.Time `json:"preferredTo" validate:"required,gtefield=PreferredFrom"`
	QuantityUnits *int      `json:"quantityUnits" validate:"omitempty,min=1,max=100"`
	Impressions   *int64    `json:"impressions" validate:"omitempty,gt=0"`
	Note          string    `json:"note" validate:"omitempty,max=2000"`
}

// UpdateOrderRequest changes scheduling preferences and the note. Pricing is
// frozen at creation.
type UpdateOrderRequest struct {
	PreferredFrom *time.Time `json:"preferredFrom"`
	PreferredTo   *time.Time `json:"preferredTo"`
	Note          *string    `json:"note" validate:"omitempty,max=2000"`
}

type ChangeOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,is-order-status"`
}

type OrderFilter struct {
	AgencyUserID string             `form:"agencyUserId" validate:"omitempty,max=36"`
	MediaUserID  string             `form:"mediaUserId" validate:"omitempty,max=36"`
	OfferID      string             `form:"offerId" validate:"omitempty,max=36"`
	Status       models.OrderStatus `form:"status" validate:"omitempty,is-order-status"`
	Page         int                `form:"page" validate:"omitempty,min=1"`
	PageSize     int                `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type OrderResponse struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"orderNumber"`
	OfferID          string              `json:"offerId"`
	AgencyUserID     string              `json:"agencyUserId"`
	MediaUserID      string              `json:"mediaUserId"`
	PreferredFrom    time.Time           `json:"preferredFrom"`
	PreferredTo      time.Time           `json:"preferredTo"`
	PricingModel     models.PricingModel `json:"pricingModel"`
	UnitPrice        *decimal.Decimal    `json:"unitPrice,omitempty"`
	CPT              *decimal.Decimal    `json:"cpt,omitempty"`
	DiscountPercent  decimal.Decimal     `json:"discountPercent"`
	MinOrderValue    *decimal.Decimal    `json:"minOrderValue,omitempty"`
	QuantityUnits    *int                `json:"quantityUnits,omitempty"`
	Impressions      *int64              `json:"impressions,omitempty"`
	TotalPrice       decimal.Decimal     `json:"totalPrice"`
	Note             string              `json:"note"`
	Status           models.OrderStatus  `json:"status"`
	CommissionRate   *decimal.Decimal    `json:"commissionRate"`
	CommissionAmount *decimal.Decimal    `json:"commissionAmount"`
	ClosedAt         *time.Time          `json:"closedAt,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

func NewOrderResponse(o *models.Order) *OrderResponse {
	return &OrderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		OfferID:          o.OfferID,
		AgencyUserID:     o.AgencyUserID,
		MediaUserID:      o.MediaUserID,
		PreferredFrom:    o.PreferredFrom,
		PreferredTo:      o.PreferredTo,
		PricingModel:     o.Pricing,
		UnitPrice:        o.UnitPrice,
		CPT:              o.CPT,
		DiscountPercent:  o.DiscountPercent,
		MinOrderValue:    o.MinOrderValue,
		QuantityUnits:    o.QuantityUnits,
		Impressions:      o.Impressions,
		TotalPrice:       o.TotalPrice,
		Note:             o.Note,
		Status:           o.Status,
		CommissionRate:   o.CommissionRate,
		CommissionAmount: o.CommissionAmount,
		ClosedAt:         o.ClosedAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func NewOrderResponses(orders []models.Order) []*OrderResponse {
	out := make([]*OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
