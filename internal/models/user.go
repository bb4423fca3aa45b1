package models

import "time"

type User struct {
	BaseModel
	Email           string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash    string     `gorm:"type:varchar(255);not null"`
	Role            UserRole   `gorm:"type:varchar(20);not null;index"`
	Status          UserStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	CompanyName     string     `gorm:"type:varchar(255)"`
	ContactName     string     `gorm:"type:varchar(255)"`
	Phone           string     `gorm:"type:varchar(32)"`
	ICO             string     `gorm:"column:ico;type:varchar(8);index"`
	EmailVerifiedAt *time.Time

	// Single-use tokens are stored as SHA-256 digests.
	VerificationTokenHash string `gorm:"type:varchar(64);index"`
	VerificationTokenExp  *time.Time
	ResetTokenHash        string `gorm:"type:varchar(64);index"`
	ResetTokenExp         *time.Time
}

func (u *User) IsVerified() bool {
	return u.Status == UserStatusVerified
}
