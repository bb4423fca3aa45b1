package repositories

import (
	"errors"
	"time"

	"mmh_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OfferRepository interface {
	Create(db *gorm.DB, offer *models.Offer) error
	FindByID(db *gorm.DB, id string) (*models.Offer, error)
	Update(db *gorm.DB, offer *models.Offer) error
	TransitionStatus(db *gorm.DB, id string, from []models.OfferStatus, to models.OfferStatus) (bool, error)
	Delete(db *gorm.DB, id string) error
	FindWithFilter(db *gorm.DB, filter OfferFilter) ([]models.Offer, int64, error)
	CountOrders(db *gorm.DB, offerID string) (int64, error)
	ArchiveExpired(db *gorm.DB, now time.Time) (int64, error)
}

// OfferFilter combines the catalog queries. MediaType and the date range
// only ever match published offers.
type OfferFilter struct {
	MediaUserID string
	Status      models.OfferStatus
	Statuses    []models.OfferStatus
	MediaType   models.MediaType
	From        *time.Time
	To          *time.Time
	// PublishedAt selects offers published and valid at that instant.
	PublishedAt *time.Time
	// VisibleTo limits results to published offers plus this owner's own.
	VisibleTo string
	Page
}

type OfferRepositoryImpl struct{}

func NewOfferRepository() OfferRepository {
	return &OfferRepositoryImpl{}
}

func (r *OfferRepositoryImpl) Create(db *gorm.DB, offer *models.Offer) error {
	return db.Omit(clause.Associations).Create(offer).Error
}

func (r *OfferRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Offer, error) {
	var offer models.Offer
	if err := db.First(&offer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

// Update writes the editable columns; status and owner only change through
// their own operations. Archived rows are never written: ErrOfferArchived
// reports that the row exists but is archived.
func (r *OfferRepositoryImpl) Update(db *gorm.DB, offer *models.Offer) error {
	result := db.Model(offer).
		Where("status <> ?", models.OfferStatusArchived).
		Select("*").
		Omit(clause.Associations, "id", "created_at", "status", "media_user_id").
		Updates(offer)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Offer{}).Where("id = ?", offer.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrOfferNotFound
	}
	return ErrOfferArchived
}

// TransitionStatus moves the offer to `to` only if its current status is in
// `from`. It reports whether a row changed.
func (r *OfferRepositoryImpl) TransitionStatus(db *gorm.DB, id string, from []models.OfferStatus, to models.OfferStatus) (bool, error) {
	result := db.Model(&models.Offer{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *OfferRepositoryImpl) Delete(db *gorm.DB, id string) error {
	result := db.Delete(&models.Offer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOfferNotFound
	}
	return nil
}

func (r *OfferRepositoryImpl) FindWithFilter(db *gorm.DB, filter OfferFilter) ([]models.Offer, int64, error) {
	query := db.Model(&models.Offer{})

	if filter.MediaUserID != "" {
		query = query.Where("media_user_id = ?", filter.MediaUserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.VisibleTo != "" {
		query = query.Where("(status = ? OR media_user_id = ?)", models.OfferStatusPublished, filter.VisibleTo)
	}

	publishedOnly := false
	if filter.MediaType != "" {
		query = query.Where("media_type = ?", filter.MediaType)
		publishedOnly = true
	}
	if filter.From != nil || filter.To != nil {
		// Overlap of [valid_from, valid_to] with the requested range.
		if filter.To != nil {
			query = query.Where("valid_from <= ?", filter.To.UTC())
		}
		if filter.From != nil {
			query = query.Where("valid_to >= ?", filter.From.UTC())
		}
		publishedOnly = true
	}
	if filter.PublishedAt != nil {
		at := filter.PublishedAt.UTC()
		query = query.Where("valid_from <= ? AND valid_to >= ?", at, at)
		publishedOnly = true
	}
	if publishedOnly {
		query = query.Where("status = ?", models.OfferStatusPublished)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var offers []models.Offer
	err := filter.Page.apply(query.Order("created_at DESC").Order("id DESC")).Find(&offers).Error
	return offers, total, err
}

func (r *OfferRepositoryImpl) CountOrders(db *gorm.DB, offerID string) (int64, error) {
	var count int64
	err := db.Model(&models.Order{}).Where("offer_id = ?", offerID).Count(&count).Error
	return count, err
}

// ArchiveExpired archives published offers whose window closed before now.
func (r *OfferRepositoryImpl) ArchiveExpired(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&models.Offer{}).
		Where("status = ? AND valid_to < ?", models.OfferStatusPublished, now.UTC()).
		Updates(map[string]interface{}{
			"status":     models.OfferStatusArchived,
			"updated_at": now.UTC(),
		})
	return result.RowsAffected, result.Error
}
