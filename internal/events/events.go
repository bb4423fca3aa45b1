package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Routing keys for order lifecycle events.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderClosed        = "order.closed"
)

// OrderEvent is the JSON body of every order event.
type OrderEvent struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OccurredAt       time.Time `json:"occurredAt"`
	OrderID          string    `json:"orderId"`
	OrderNumber      string    `json:"orderNumber"`
	OfferID          string    `json:"offerId"`
	AgencyUserID     string    `json:"agencyUserId"`
	MediaUserID      string    `json:"mediaUserId"`
	OldStatus        string    `json:"oldStatus,omitempty"`
	NewStatus        string    `json:"newStatus"`
	TotalPrice       string    `json:"totalPrice"`
	CommissionRate   string    `json:"commissionRate,omitempty"`
	CommissionAmount string    `json:"commissionAmount,omitempty"`
}

func NewOrderEvent(eventType string) OrderEvent {
	return OrderEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher emits order events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
