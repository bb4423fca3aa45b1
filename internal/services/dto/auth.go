package dto

import (
	"time"

	"mmh_backend/internal/models"
)

// RegisterRequest is the public sign-up payload. Admin cannot self-register.
type RegisterRequest struct {
	Email       string          `json:"email" validate:"required,email,max=255"`
	Password    string          `json:"password" validate:"required,min=8,max=72"`
	CompanyName string          `json:"companyName" validate:"omitempty,max=255"`
	ContactName string          `json:"contactName" validate:"omitempty,max=255"`
	Phone       string          `json:"phone" validate:"omitempty,max=32"`
	ICO         string          `json:"ico" validate:"required,ico"`
	Role        models.UserRole `json:"role" validate:"required,is-signup-role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

const (
	VerifyTypeSignup   = "signup"
	VerifyTypeRecovery = "recovery"
)

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=signup recovery"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// UserSummary is the user block returned by login.
type UserSummary struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Role        models.UserRole `json:"role"`
	CompanyName string          `json:"companyName"`
	ContactName string          `json:"contactName"`
}

// AuthResponse is shared by register, login, refresh and recovery.
type AuthResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	AccessToken  string       `json:"accessToken,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time   `json:"expiresAt,omitempty"`
	UserID       string       `json:"userId,omitempty"`
	User         *UserSummary `json:"user,omitempty"`
}

// AckResponse is returned by endpoints that only confirm an action.
type AckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewUserSummary(u *models.User) *UserSummary {
	return &UserSummary{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		CompanyName: u.CompanyName,
		ContactName: u.ContactName,
	}
}
