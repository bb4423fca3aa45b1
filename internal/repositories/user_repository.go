package repositories

import (
	"errors"
	"strings"
	"time"

	"mmh_backend/internal/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	FindByID(db *gorm.DB, id string) (*models.User, error)
	FindByEmail(db *gorm.DB, email string) (*models.User, error)
	FindByVerificationToken(db *gorm.DB, digest string) (*models.User, error)
	FindByResetToken(db *gorm.DB, digest string) (*models.User, error)
	Update(db *gorm.DB, user *models.User) error
	UpdateStatus(db *gorm.DB, userID string, status models.UserStatus) error
	Delete(db *gorm.DB, userID string) error
	FindWithFilter(db *gorm.DB, filter UserFilter) ([]models.User, int64, error)
	CountDependents(db *gorm.DB, userID string) (offers int64, orders int64, err error)
}

type UserFilter struct {
	Role   models.UserRole
	Status models.UserStatus
	Search string
	Page
}

type UserRepositoryImpl struct{}

func NewUserRepository() UserRepository {
	return &UserRepositoryImpl{}
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepositoryImpl) Create(db *gorm.DB, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExists
	}

	if err := db.Create(user).Error; err != nil {
		// Two concurrent sign-ups can both pass the count above.
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (r *UserRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.User, error) {
	return r.first(db, "id = ?", id)
}

func (r *UserRepositoryImpl) FindByEmail(db *gorm.DB, email string) (*models.User, error) {
	return r.first(db, "email = ?", NormalizeEmail(email))
}

func (r *UserRepositoryImpl) FindByVerificationToken(db *gorm.DB, digest string) (*models.User, error) {
	if digest == "" {
		return nil, ErrUserNotFound
	}
	return r.first(db, "verification_token_hash = ?", digest)
}

func (r *UserRepositoryImpl) FindByResetToken(db *gorm.DB, digest string) (*models.User, error) {
	if digest == "" {
		return nil, ErrUserNotFound
	}
	return r.first(db, "reset_token_hash = ?", digest)
}

func (r *UserRepositoryImpl) first(db *gorm.DB, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := db.Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Update(db *gorm.DB, user *models.User) error {
	result := db.Model(user).Select("*").Omit("id", "created_at").Updates(user)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrUserAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) UpdateStatus(db *gorm.DB, userID string, status models.UserStatus) error {
	result := db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) Delete(db *gorm.DB, userID string) error {
	result := db.Delete(&models.User{}, "id = ?", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) FindWithFilter(db *gorm.DB, filter UserFilter) ([]models.User, int64, error) {
	query := db.Model(&models.User{})

	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(contact_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := filter.Page.apply(query.Order("created_at DESC").Order("id DESC")).Find(&users).Error
	return users, total, err
}

// CountDependents counts offers owned by the user and orders where the user
// is either party.
func (r *UserRepositoryImpl) CountDependents(db *gorm.DB, userID string) (int64, int64, error) {
	var offers, orders int64
	if err := db.Model(&models.Offer{}).Where("media_user_id = ?", userID).Count(&offers).Error; err != nil {
		return 0, 0, err
	}
	err := db.Model(&models.Order{}).
		Where("agency_user_id = ? OR media_user_id = ?", userID, userID).
		Count(&orders).Error
	if err != nil {
		return 0, 0, err
	}
	return offers, orders, nil
}
