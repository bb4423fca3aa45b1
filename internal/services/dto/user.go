package dto

import (
	"time"

	"mmh_backend/internal/models"
)

// CreateUserRequest is used by admins. Password may already be a bcrypt hash
// when importing accounts.
type CreateUserRequest struct {
	Email       string            `json:"email" validate:"required,email,max=255"`
	Password    string            `json:"password" validate:"required,min=8"`
	Role        models.UserRole   `json:"role" validate:"required,is-user-role"`
	Status      models.UserStatus `json:"status" validate:"omitempty,is-user-status"`
	CompanyName string            `json:"companyName" validate:"omitempty,max=255"`
	ContactName string            `json:"contactName" validate:"omitempty,max=255"`
	Phone       string            `json:"phone" validate:"omitempty,max=32"`
	ICO         string            `json:"ico" validate:"omitempty,ico"`
}

// UpdateUserRequest carries profile fields only; role and credential are not
// changeable here.
type UpdateUserRequest struct {
	CompanyName *string `json:"companyName" validate:"omitempty,max=255"`
	ContactName *string `json:"contactName" validate:"omitempty,max=255"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
}

type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,is-user-status"`
}

type UserFilter struct {
	Role     models.UserRole   `form:"role" validate:"omitempty,is-user-role"`
	Status   models.UserStatus `form:"status" validate:"omitempty,is-user-status"`
	Search   string            `form:"search"`
	Page     int               `form:"page" validate:"omitempty,min=1"`
	PageSize int               `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type UserResponse struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	Role            models.UserRole   `json:"role"`
	Status          models.UserStatus `json:"status"`
	CompanyName     string            `json:"companyName"`
	ContactName     string            `json:"contactName"`
	Phone           string            `json:"phone"`
	ICO             string            `json:"ico"`
	EmailVerifiedAt *time.Time        `json:"emailVerifiedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func NewUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Role:            u.Role,
		Status:          u.Status,
		CompanyName:     u.CompanyName,
		ContactName:     u.ContactName,
		Phone:           u.Phone,
		ICO:             u.ICO,
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func NewUserResponses(users []models.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
