package repositories

import (
	"errors"
	"time"

	"mmh_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(db *gorm.DB, order *models.Order) error
	FindByID(db *gorm.DB, id string) (*models.Order, error)
	FindByNumber(db *gorm.DB, number string) (*models.Order, error)
	FindByIDWithParties(db *gorm.DB, id string) (*models.Order, error)
	LastNumberWithPrefix(db *gorm.DB, prefix string) (string, error)
	LockSequence(db *gorm.DB, year int) (*models.OrderSequence, error)
	InitSequence(db *gorm.DB, year int) error
	AdvanceSequence(db *gorm.DB, year, value int) error
	GuardedUpdate(db *gorm.DB, id string, version int, allowed []models.OrderStatus, updates map[string]interface{}) error
	Delete(db *gorm.DB, id string) error
	FindWithFilter(db *gorm.DB, filter OrderFilter) ([]models.Order, int64, error)
}

type OrderFilter struct {
	AgencyUserID string
	MediaUserID  string
	OfferID      string
	Status       models.OrderStatus
	// Participant matches orders where the user is buyer or seller.
	Participant string
	Page
}

type OrderRepositoryImpl struct{}

func NewOrderRepository() OrderRepository {
	return &OrderRepositoryImpl{}
}

// Create inserts the order. A clash on order_number is reported as
// ErrOrderNumberTaken so the caller can allocate a new number.
func (r *OrderRepositoryImpl) Create(db *gorm.DB, order *models.Order) error {
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrOrderNumberTaken
		}
		return err
	}
	return nil
}

func (r *OrderRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Order, error) {
	return r.first(db, "id = ?", id)
}

func (r *OrderRepositoryImpl) FindByNumber(db *gorm.DB, number string) (*models.Order, error) {
	return r.first(db, "order_number = ?", number)
}

// FindByIDWithParties loads the order with its offer and both users, as
// needed for notifications.
func (r *OrderRepositoryImpl) FindByIDWithParties(db *gorm.DB, id string) (*models.Order, error) {
	return r.first(db.Preload("Offer").Preload("AgencyUser").Preload("MediaUser"), "id = ?", id)
}

func (r *OrderRepositoryImpl) first(db *gorm.DB, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	if err := db.Where(query, args...).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// LastNumberWithPrefix returns the highest order number starting with prefix,
// or "" when there is none. Sequences are zero padded to six digits and grow
// wider past 999999, so longer numbers sort first.
func (r *OrderRepositoryImpl) LastNumberWithPrefix(db *gorm.DB, prefix string) (string, error) {
	var numbers []string
	err := db.Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("LENGTH(order_number) DESC").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

// LockSequence reads the year's counter with SELECT ... FOR UPDATE. The lock
// lasts until the surrounding transaction ends. SQLite ignores the clause and
// serialises writers on its own.
func (r *OrderRepositoryImpl) LockSequence(db *gorm.DB, year int) (*models.OrderSequence, error) {
	var seq models.OrderSequence
	err := db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&seq, "year = ?", year).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSequenceNotFound
		}
		return nil, err
	}
	return &seq, nil
}

// InitSequence creates the year's counter at zero unless a concurrent
// caller already did.
func (r *OrderRepositoryImpl) InitSequence(db *gorm.DB, year int) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.OrderSequence{Year: year}).Error
}

func (r *OrderRepositoryImpl) AdvanceSequence(db *gorm.DB, year, value int) error {
	return db.Model(&models.OrderSequence{}).
		Where("year = ?", year).
		Update("last_value", value).Error
}

// GuardedUpdate applies updates only when the row still has the given version
// and one of the allowed statuses, bumping the version. It returns
// ErrStaleWrite when the guard did not match and ErrOrderNotFound when the
// row does not exist.
func (r *OrderRepositoryImpl) GuardedUpdate(db *gorm.DB, id string, version int, allowed []models.OrderStatus, updates map[string]interface{}) error {
	values := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now().UTC()

	query := db.Model(&models.Order{}).Where("id = ? AND version = ?", id, version)
	if len(allowed) > 0 {
		query = query.Where("status IN ?", allowed)
	}

	result := query.Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrOrderNotFound
		}
		return ErrStaleWrite
	}
	return nil
}

func (r *OrderRepositoryImpl) Delete(db *gorm.DB, id string) error {
	result := db.Delete(&models.Order{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepositoryImpl) FindWithFilter(db *gorm.DB, filter OrderFilter) ([]models.Order, int64, error) {
	query := db.Model(&models.Order{})

	if filter.AgencyUserID != "" {
		query = query.Where("agency_user_id = ?", filter.AgencyUserID)
	}
	if filter.MediaUserID != "" {
		query = query.Where("media_user_id = ?", filter.MediaUserID)
	}
	if filter.OfferID != "" {
		query = query.Where("offer_id = ?", filter.OfferID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Participant != "" {
		query = query.Where("(agency_user_id = ? OR media_user_id = ?)", filter.Participant, filter.Participant)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := filter.Page.apply(query.Order("created_at DESC").Order("id DESC")).Find(&orders).Error
	return orders, total, err
}
