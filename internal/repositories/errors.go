package repositories

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrOfferArchived     = errors.New("offer is archived")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNumberTaken  = errors.New("order number already taken")
	ErrSequenceNotFound  = errors.New("order sequence not initialised")
	ErrStaleWrite        = errors.New("row changed since it was read")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// isUniqueViolation recognises duplicate-key errors from every supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Error 1062") // mysql
}

// IsForeignKeyViolation reports a restrict-on-delete hit.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "Error 1451")
}

// Page is a 1-based page request. Zero values mean "no paging".
type Page struct {
	Page     int
	PageSize int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.PageSize <= 0 {
		return q
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	return q.Offset((page - 1) * p.PageSize).Limit(p.PageSize)
}
