package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mmh_backend/internal/repositories"

	"gorm.io/gorm"
)

const orderNumberPrefix = "MMH"

// OrderNumberSource proposes the next order number for a year. The unique
// index on orders.order_number still guards the insert.
type OrderNumberSource interface {
	Next(db *gorm.DB, year int) (string, error)
}

// SequentialOrderNumbers allocates from a per-year counter row locked for
// the rest of the caller's transaction, so concurrent creates take turns.
// The highest number already issued is consulted as well, which keeps the
// counter ahead of orders written before it existed.
type SequentialOrderNumbers struct {
	repo repositories.OrderRepository
}

func NewSequentialOrderNumbers(repo repositories.OrderRepository) *SequentialOrderNumbers {
	return &SequentialOrderNumbers{repo: repo}
}

func (s *SequentialOrderNumbers) Next(db *gorm.DB, year int) (string, error) {
	seq, err := s.repo.LockSequence(db, year)
	if errors.Is(err, repositories.ErrSequenceNotFound) {
		if err = s.repo.InitSequence(db, year); err != nil {
			return "", err
		}
		seq, err = s.repo.LockSequence(db, year)
	}
	if err != nil {
		return "", err
	}

	issued, err := s.highestIssued(db, year)
	if err != nil {
		return "", err
	}

	next := max(seq.LastValue, issued) + 1
	if err := s.repo.AdvanceSequence(db, year, next); err != nil {
		return "", err
	}
	return FormatOrderNumber(year, next), nil
}

func (s *SequentialOrderNumbers) highestIssued(db *gorm.DB, year int) (int, error) {
	prefix := OrderNumberPrefix(year)
	last, err := s.repo.LastNumberWithPrefix(db, prefix)
	if err != nil || last == "" {
		return 0, err
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil {
		return 0, fmt.Errorf("malformed order number %q: %w", last, err)
	}
	return seq, nil
}

// OrderNumberPrefix is "MMH-<year>-".
func OrderNumberPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", orderNumberPrefix, year)
}

// FormatOrderNumber renders MMH-2026-000042.
func FormatOrderNumber(year, seq int) string {
	return fmt.Sprintf("%s%06d", OrderNumberPrefix(year), seq)
}

func currentYear(now time.Time) int {
	return now.UTC().Year()
}
