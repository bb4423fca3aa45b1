package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OfferService interface {
	Create(ctx context.Context, db *gorm.DB, actor Actor, req *dto.OfferRequest) (*models.Offer, error)
	GetByID(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Offer, error)
	Update(ctx context.Context, db *gorm.DB, actor Actor, id string, req *dto.OfferRequest) (*models.Offer, error)
	Delete(ctx context.Context, db *gorm.DB, actor Actor, id string) error
	Publish(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Offer, error)
	Archive(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Offer, error)
	List(ctx context.Context, db *gorm.DB, actor Actor, filter *dto.OfferFilter) ([]models.Offer, int64, error)
	ListPublishedNow(ctx context.Context, db *gorm.DB, page, pageSize int) ([]models.Offer, int64, error)
	ArchiveExpired(ctx context.Context, db *gorm.DB) (int64, error)
}

type OfferServiceImpl struct {
	offerRepo repositories.OfferRepository
	userRepo  repositories.UserRepository
	now       func() time.Time
}

func NewOfferService(offerRepo repositories.OfferRepository, userRepo repositories.UserRepository) OfferService {
	return &OfferServiceImpl{
		offerRepo: offerRepo,
		userRepo:  userRepo,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a Draft offer. Media users own what they create; admins
// must name the media owner.
func (s *OfferServiceImpl) Create(ctx context.Context, db *gorm.DB, actor Actor, req *dto.OfferRequest) (*models.Offer, error) {
	offer := &models.Offer{Status: models.OfferStatusDraft}
	if err := applyOfferRequest(offer, req); err != nil {
		return nil, err
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	switch {
	case actor.IsMedia():
		offer.MediaUserID = actor.UserID
	case actor.IsAdmin():
		if req.MediaUserID == "" {
			return nil, apperrors.FieldError("mediaUserId", "Required when an admin creates an offer")
		}
		owner, err := s.userRepo.FindByID(tx, req.MediaUserID)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, apperrors.FieldError("mediaUserId", "User not found")
			}
			return nil, apperrors.InternalError(err)
		}
		if owner.Role != models.UserRoleMedia {
			return nil, apperrors.FieldError("mediaUserId", "Offer owner must be a media user")
		}
		offer.MediaUserID = owner.ID
	default:
		return nil, apperrors.ErrInsufficientPermissions
	}

	if err := s.offerRepo.Create(tx, offer); err != nil {
		return nil, apperrors.InternalError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Offer created", "offer_id", offer.ID, "media_user_id", offer.MediaUserID)
	return offer, nil
}

func (s *OfferServiceImpl) GetByID(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Offer, error) {
	offer, err := s.offerRepo.FindByID(db, id)
	if err != nil {
		return nil, handleOfferError(err)
	}
	if !canSeeOffer(actor, offer) {
		return nil, apperrors.ErrOfferNotFound
	}
	return offer, nil
}

var errOfferNotEditable = apperrors.ErrInvalidStatus("offer", "Archived offers cannot be edited")

// Update replaces every mutable field. Status and owner are kept, and the
// write is refused if the offer was archived after it was read.
func (s *OfferServiceImpl) Update(ctx context.Context, db *gorm.DB, actor Actor, id string, req *dto.OfferRequest) (*models.Offer, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	offer, err := s.loadManaged(tx, actor, id)
	if err != nil {
		return nil, err
	}
	if offer.Status == models.OfferStatusArchived {
		return nil, errOfferNotEditable
	}

	if err := applyOfferRequest(offer, req); err != nil {
		return nil, err
	}
	offer.UpdatedAt = s.now()

	if err := s.offerRepo.Update(tx, offer); err != nil {
		return nil, handleOfferError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return offer, nil
}

func (s *OfferServiceImpl) Delete(ctx context.Context, db *gorm.DB, actor Actor, id string) error {
	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if _, err := s.loadManaged(tx, actor, id); err != nil {
		return err
	}

	orders, err := s.offerRepo.CountOrders(tx, id)
	if err != nil {
		return apperrors.InternalError(err)
	}
	if orders > 0 {
		return apperrors.ErrOfferHasOrders.WithDetails(map[string]int64{"orders": orders})
	}

	if err := s.offerRepo.Delete(tx, id); err != nil {
		if repositories.IsForeignKeyViolation(err) {
			return apperrors.ErrOfferHasOrders
		}
		return handleOfferError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Offer deleted", "offer_id", id)
	return nil
}

// Publish moves a Draft offer to Published. Publishing twice succeeds;
// Archived offers stay archived.
func (s *OfferServiceImpl) Publish(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Offer, error) {
	return s.transition(ctx, db, actor, id,
		[]models.OfferStatus{models.OfferStatusDraft}, models.OfferStatusPublished)
}

// Archive retires a Draft or Published offer. Archiving twice succeeds.
func (s *OfferServiceImpl) Archive(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Offer, error) {
	return s.transition(ctx, db, actor, id,
		[]models.OfferStatus{models.OfferStatusDraft, models.OfferStatusPublished}, models.OfferStatusArchived)
}

func (s *OfferServiceImpl) transition(ctx context.Context, db *gorm.DB, actor Actor, id string, from []models.OfferStatus, to models.OfferStatus) (*models.Offer, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	offer, err := s.loadManaged(tx, actor, id)
	if err != nil {
		return nil, err
	}
	if offer.Status == to {
		return offer, nil
	}
	if offer.Status == models.OfferStatusArchived {
		return nil, apperrors.ErrOfferArchived
	}

	changed, err := s.offerRepo.TransitionStatus(tx, id, from, to)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !changed {
		return nil, apperrors.ErrInvalidStatus("offer", "Offer status changed concurrently")
	}

	offer, err = s.offerRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleOfferError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Offer status changed", "offer_id", id, "status", to)
	return offer, nil
}

// List applies role scoping on top of the caller's filter: agencies see
// published offers only, media users see published offers and their own.
func (s *OfferServiceImpl) List(ctx context.Context, db *gorm.DB, actor Actor, filter *dto.OfferFilter) ([]models.Offer, int64, error) {
	repoFilter := repositories.OfferFilter{
		MediaUserID: filter.MediaUserID,
		Status:      filter.Status,
		MediaType:   filter.MediaType,
		From:        filter.From,
		To:          filter.To,
		Page:        repositories.Page{Page: filter.Page, PageSize: filter.PageSize},
	}
	switch {
	case actor.IsAdmin():
	case actor.IsMedia():
		repoFilter.VisibleTo = actor.UserID
	default:
		repoFilter.Statuses = []models.OfferStatus{models.OfferStatusPublished}
	}

	offers, total, err := s.offerRepo.FindWithFilter(db, repoFilter)
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return offers, total, nil
}

func (s *OfferServiceImpl) ListPublishedNow(ctx context.Context, db *gorm.DB, page, pageSize int) ([]models.Offer, int64, error) {
	now := s.now()
	offers, total, err := s.offerRepo.FindWithFilter(db, repositories.OfferFilter{
		PublishedAt: &now,
		Page:        repositories.Page{Page: page, PageSize: pageSize},
	})
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return offers, total, nil
}

// ArchiveExpired archives published offers whose validity window has ended.
func (s *OfferServiceImpl) ArchiveExpired(ctx context.Context, db *gorm.DB) (int64, error) {
	n, err := s.offerRepo.ArchiveExpired(db, s.now())
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return n, nil
}

// loadManaged returns the offer when the actor may change it. Offers the
// actor cannot even see are reported as missing.
func (s *OfferServiceImpl) loadManaged(db *gorm.DB, actor Actor, id string) (*models.Offer, error) {
	return loadManagedOffer(s.offerRepo, db, actor, id)
}

// loadManagedOffer hides offers the actor cannot see and refuses offers the
// actor may see but not change.
func loadManagedOffer(repo repositories.OfferRepository, db *gorm.DB, actor Actor, id string) (*models.Offer, error) {
	offer, err := repo.FindByID(db, id)
	if err != nil {
		return nil, handleOfferError(err)
	}
	if !canSeeOffer(actor, offer) {
		return nil, apperrors.ErrOfferNotFound
	}
	if !canManageOffer(actor, offer) {
		return nil, apperrors.ErrInsufficientPermissions
	}
	return offer, nil
}

func canManageOffer(actor Actor, offer *models.Offer) bool {
	return actor.IsAdmin() || (actor.IsMedia() && offer.MediaUserID == actor.UserID)
}

func canSeeOffer(actor Actor, offer *models.Offer) bool {
	return offer.Status == models.OfferStatusPublished || canManageOffer(actor, offer)
}

// applyOfferRequest validates the cross-field rules and copies the request
// onto offer. Nothing is copied when validation fails.
func applyOfferRequest(offer *models.Offer, req *dto.OfferRequest) error {
	details := map[string]string{}

	if !req.ValidTo.After(req.ValidFrom) {
		details["validTo"] = "Must be after validFrom"
	}

	switch req.PricingModel {
	case models.PricingModelPerUnit:
		if req.UnitPrice == nil || !req.UnitPrice.IsPositive() {
			details["unitPrice"] = "Must be greater than 0 for per_unit pricing"
		}
		if req.CPT != nil {
			details["cpt"] = "Must be empty for per_unit pricing"
		}
	case models.PricingModelCPT:
		if req.CPT == nil || !req.CPT.IsPositive() {
			details["cpt"] = "Must be greater than 0 for cpt pricing"
		}
		if req.UnitPrice != nil {
			details["unitPrice"] = "Must be empty for cpt pricing"
		}
	default:
		details["pricingModel"] = "Must be per_unit or cpt"
	}

	if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(hundred) {
		details["discountPercent"] = "Must be between 0 and 100"
	}
	if req.MinOrderValue != nil && req.MinOrderValue.IsNegative() {
		details["minOrderValue"] = "Must not be negative"
	}

	tags, unknown := models.OfferTagsFromNames(req.Tags)
	if len(unknown) > 0 {
		details["tags"] = "Unknown tags: " + strings.Join(unknown, ", ")
	}

	assetDeadline, err := parseDate(req.AssetDeadline)
	if err != nil {
		details["assetDeadline"] = "Must be a date in YYYY-MM-DD format"
	}
	lastOrderDay, err := parseDate(req.LastOrderDay)
	if err != nil {
		details["lastOrderDay"] = "Must be a date in YYYY-MM-DD format"
	}

	if len(details) > 0 {
		return apperrors.ValidationError(details)
	}

	offer.Title = strings.TrimSpace(req.Title)
	offer.Format = req.Format
	offer.Description = req.Description
	offer.MediaType = req.MediaType
	offer.Pricing = req.PricingModel
	offer.UnitPrice = req.UnitPrice
	offer.CPT = req.CPT
	offer.MinOrderValue = req.MinOrderValue
	offer.DiscountPercent = req.DiscountPercent
	offer.Tags = tags
	offer.AssetDeadline = assetDeadline
	offer.LastOrderDay = lastOrderDay
	offer.ValidFrom = req.ValidFrom.UTC()
	offer.ValidTo = req.ValidTo.UTC()
	offer.TechnicalConditions = req.TechnicalConditions
	offer.TechnicalConditionsURL = req.TechnicalConditionsURL
	return nil
}

func parseDate(value *string) (*datatypes.Date, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, *value)
	if err != nil {
		return nil, err
	}
	d := datatypes.Date(t)
	return &d, nil
}

func handleOfferError(err error) error {
	if errors.Is(err, repositories.ErrOfferNotFound) {
		return apperrors.ErrOfferNotFound
	}
	if errors.Is(err, repositories.ErrOfferArchived) {
		return errOfferNotEditable
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.InternalError(err)
}
