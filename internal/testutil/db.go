package testutil

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"mmh_backend/database"
	"mmh_backend/internal/auth"
	"mmh_backend/internal/config"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB returns a migrated SQLite database private to the test.
// A single connection serialises writers the way row locks would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.InitWithWriter("test", io.Discard)

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.Join(t.TempDir(), "test.db"))
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1, MaxIdleConns: 1}, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Password is the plaintext password of every user created by CreateUser.
const Password = "password123"

var passwordHash string

func hashedPassword(t *testing.T) string {
	if passwordHash == "" {
		h, err := auth.HashPassword(Password)
		require.NoError(t, err)
		passwordHash = h
	}
	return passwordHash
}

// CreateUser inserts a verified user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, role models.UserRole, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	user := &models.User{
		Email:           email,
		PasswordHash:    hashedPassword(t),
		Role:            role,
		Status:          models.UserStatusVerified,
		CompanyName:     "Test Company s.r.o.",
		ContactName:     "Test Contact",
		ICO:             "12345678",
		EmailVerifiedAt: &now,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// OfferOption tweaks an offer before insertion.
type OfferOption func(*models.Offer)

func WithStatus(s models.OfferStatus) OfferOption {
	return func(o *models.Offer) { o.Status = s }
}

func WithCPT(rate int64) OfferOption {
	return func(o *models.Offer) {
		d := decimal.NewFromInt(rate)
		o.Pricing = models.PricingModelCPT
		o.CPT = &d
		o.UnitPrice = nil
	}
}

func WithDiscount(percent int64) OfferOption {
	return func(o *models.Offer) { o.DiscountPercent = decimal.NewFromInt(percent) }
}

func WithMinOrderValue(v int64) OfferOption {
	return func(o *models.Offer) {
		d := decimal.NewFromInt(v)
		o.MinOrderValue = &d
	}
}

func WithWindow(from, to time.Time) OfferOption {
	return func(o *models.Offer) {
		o.ValidFrom = from.UTC()
		o.ValidTo = to.UTC()
	}
}

func WithMediaType(m models.MediaType) OfferOption {
	return func(o *models.Offer) { o.MediaType = m }
}

// CreateOffer inserts a published per-unit offer (unit price 100) valid
// from yesterday to 30 days ahead, adjusted by opts.
func CreateOffer(t *testing.T, db *gorm.DB, owner *models.User, opts ...OfferOption) *models.Offer {
	t.Helper()
	price := decimal.NewFromInt(100)
	now := time.Now().UTC().Truncate(time.Second)
	offer := &models.Offer{
		MediaUserID: owner.ID,
		Title:       "Prime time spot",
		Description: "30s spot",
		MediaType:   models.MediaTypeTV,
		Pricing:     models.PricingModelPerUnit,
		UnitPrice:   &price,
		ValidFrom:   now.Add(-24 * time.Hour),
		ValidTo:     now.Add(30 * 24 * time.Hour),
		Status:      models.OfferStatusPublished,
	}
	for _, opt := range opts {
		opt(offer)
	}
	require.NoError(t, db.Omit("MediaUser").Create(offer).Error)
	return offer
}
