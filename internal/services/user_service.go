package services

import (
	"context"
	"errors"
	"time"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type UserService interface {
	Create(ctx context.Context, db *gorm.DB, req *dto.CreateUserRequest) (*models.User, error)
	GetByID(ctx context.Context, db *gorm.DB, id string) (*models.User, error)
	GetByEmail(ctx context.Context, db *gorm.DB, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, id string, req *dto.UpdateUserRequest) (*models.User, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id string, status models.UserStatus) (*models.User, error)
	Delete(ctx context.Context, db *gorm.DB, id string) error
	List(ctx context.Context, db *gorm.DB, filter *dto.UserFilter) ([]models.User, int64, error)
	ListByRole(ctx context.Context, db *gorm.DB, role models.UserRole) ([]models.User, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status models.UserStatus) ([]models.User, error)
	VerifyCredential(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error)
}

type UserServiceImpl struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &UserServiceImpl{userRepo: userRepo}
}

// Create stores a user on behalf of an admin. The password is hashed unless
// it already is a bcrypt hash.
func (s *UserServiceImpl) Create(ctx context.Context, db *gorm.DB, req *dto.CreateUserRequest) (*models.User, error) {
	hash, err := auth.HashIfNeeded(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	status := req.Status
	if status == "" {
		status = models.UserStatusPending
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       status,
		CompanyName:  req.CompanyName,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		ICO:          req.ICO,
	}
	if status == models.UserStatusVerified {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if err := s.userRepo.Create(tx, user); err != nil {
		return nil, handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *UserServiceImpl) GetByID(ctx context.Context, db *gorm.DB, id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(db, id)
	if err != nil {
		return nil, handleUserError(err)
	}
	return user, nil
}

func (s *UserServiceImpl) GetByEmail(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(db, email)
	if err != nil {
		return nil, handleUserError(err)
	}
	return user, nil
}

// UpdateProfile changes company name, contact name and phone only.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, db *gorm.DB, id string, req *dto.UpdateUserRequest) (*models.User, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	user, err := s.userRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleUserError(err)
	}

	if req.CompanyName != nil {
		user.CompanyName = *req.CompanyName
	}
	if req.ContactName != nil {
		user.ContactName = *req.ContactName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}

	if err := s.userRepo.Update(tx, user); err != nil {
		return nil, handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return user, nil
}

func (s *UserServiceImpl) UpdateStatus(ctx context.Context, db *gorm.DB, id string, status models.UserStatus) (*models.User, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	user, err := s.userRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleUserError(err)
	}

	user.Status = status
	if status == models.UserStatusVerified && user.EmailVerifiedAt == nil {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	if err := s.userRepo.Update(tx, user); err != nil {
		return nil, handleUserError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "User status changed", "user_id", id, "status", status)
	return user, nil
}

// Delete refuses while the user owns offers or takes part in orders.
func (s *UserServiceImpl) Delete(ctx context.Context, db *gorm.DB, id string) error {
	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	if _, err := s.userRepo.FindByID(tx, id); err != nil {
		return handleUserError(err)
	}

	offers, orders, err := s.userRepo.CountDependents(tx, id)
	if err != nil {
		return apperrors.InternalError(err)
	}
	if offers > 0 || orders > 0 {
		return apperrors.ErrUserHasDependents.WithDetails(map[string]int64{"offers": offers, "orders": orders})
	}

	if err := s.userRepo.Delete(tx, id); err != nil {
		if repositories.IsForeignKeyViolation(err) {
			return apperrors.ErrUserHasDependents
		}
		return handleUserError(err)
	}
	return tx.Commit().Error
}

func (s *UserServiceImpl) List(ctx context.Context, db *gorm.DB, filter *dto.UserFilter) ([]models.User, int64, error) {
	users, total, err := s.userRepo.FindWithFilter(db, repositories.UserFilter{
		Role:   filter.Role,
		Status: filter.Status,
		Search: filter.Search,
		Page:   repositories.Page{Page: filter.Page, PageSize: filter.PageSize},
	})
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return users, total, nil
}

func (s *UserServiceImpl) ListByRole(ctx context.Context, db *gorm.DB, role models.UserRole) ([]models.User, error) {
	users, _, err := s.userRepo.FindWithFilter(db, repositories.UserFilter{Role: role})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return users, nil
}

func (s *UserServiceImpl) ListByStatus(ctx context.Context, db *gorm.DB, status models.UserStatus) ([]models.User, error) {
	users, _, err := s.userRepo.FindWithFilter(db, repositories.UserFilter{Status: status})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return users, nil
}

// dummyHash keeps the unknown-email path as slow as a real comparison.
var dummyHash, _ = auth.HashPassword("not-a-real-password")

// VerifyCredential returns the user when password matches the stored hash.
// Unknown email and wrong password produce the same error.
func (s *UserServiceImpl) VerifyCredential(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(db, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			auth.CheckPasswordHash(password, dummyHash)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

func handleUserError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperrors.ErrUserNotFound
	case errors.Is(err, repositories.ErrUserAlreadyExists):
		return apperrors.ErrEmailAlreadyExists
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.InternalError(err)
}
