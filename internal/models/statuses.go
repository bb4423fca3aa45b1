package models

// --- users ---

type UserRole string

const (
	UserRoleAgency UserRole = "agency"
	UserRoleMedia  UserRole = "media"
	UserRoleAdmin  UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAgency, UserRoleMedia, UserRoleAdmin:
		return true
	}
	return false
}

// CanSelfRegister reports whether the role is open for public sign-up.
func (r UserRole) CanSelfRegister() bool {
	return r == UserRoleAgency || r == UserRoleMedia
}

type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusVerified  UserStatus = "verified"
	UserStatusSuspended UserStatus = "suspended"
)

func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusPending, UserStatusVerified, UserStatusSuspended:
		return true
	}
	return false
}

// --- offers ---

type OfferStatus string

const (
	OfferStatusDraft     OfferStatus = "draft"
	OfferStatusPublished OfferStatus = "published"
	OfferStatusArchived  OfferStatus = "archived"
)

func (s OfferStatus) IsValid() bool {
	switch s {
	case OfferStatusDraft, OfferStatusPublished, OfferStatusArchived:
		return true
	}
	return false
}

type PricingModel string

const (
	PricingModelPerUnit PricingModel = "per_unit"
	PricingModelCPT     PricingModel = "cpt"
)

func (p PricingModel) IsValid() bool {
	return p == PricingModelPerUnit || p == PricingModelCPT
}

type MediaType string

const (
	MediaTypeTV      MediaType = "tv"
	MediaTypeRadio   MediaType = "radio"
	MediaTypePrint   MediaType = "print"
	MediaTypeOnline  MediaType = "online"
	MediaTypeOutdoor MediaType = "outdoor"
	MediaTypeCinema  MediaType = "cinema"
	MediaTypeOther   MediaType = "other"
)

func (m MediaType) IsValid() bool {
	switch m {
	case MediaTypeTV, MediaTypeRadio, MediaTypePrint, MediaTypeOnline,
		MediaTypeOutdoor, MediaTypeCinema, MediaTypeOther:
		return true
	}
	return false
}

// --- orders ---

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusClosed     OrderStatus = "closed"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusInProgress, OrderStatusClosed:
		return true
	}
	return false
}
