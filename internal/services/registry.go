package services

import (
	"mmh_backend/internal/email"
	"mmh_backend/internal/events"
)

// ServiceContainer holds every application service.
type ServiceContainer struct {
	UserService         UserService
	AuthService         AuthService
	OfferService        OfferService
	OrderService        OrderService
	DocumentService     OfferDocumentService
	NotificationService NotificationService
	CompanyVerifier     CompanyVerifier
	EmailProvider       email.Provider
	EventPublisher      events.Publisher
}
