package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"mmh_backend/internal/logger"
	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/internal/storage"
	"mmh_backend/pkg/apperrors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultMaxUploadBytes int64 = 10 << 20

var allowedDocumentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// OfferDocumentService stores files attached to offers.
type OfferDocumentService interface {
	AttachTechnicalConditions(ctx context.Context, db *gorm.DB, actor Actor, offerID string, upload *dto.DocumentUpload) (*models.Offer, error)
}

type OfferDocumentServiceImpl struct {
	offerRepo repositories.OfferRepository
	store     storage.Storage
	maxBytes  int64
	now       func() time.Time
}

func NewOfferDocumentService(offerRepo repositories.OfferRepository, store storage.Storage, maxBytes int64) OfferDocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &OfferDocumentServiceImpl{
		offerRepo: offerRepo,
		store:     store,
		maxBytes:  maxBytes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AttachTechnicalConditions replaces the offer's technical conditions link
// with a freshly stored document.
func (s *OfferDocumentServiceImpl) AttachTechnicalConditions(ctx context.Context, db *gorm.DB, actor Actor, offerID string, upload *dto.DocumentUpload) (*models.Offer, error) {
	if upload.Size > s.maxBytes {
		return nil, apperrors.ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(upload.Content, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.ErrFileTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedDocumentTypes...) {
		logger.CtxDebug(ctx, "Rejected upload", "filename", upload.Filename, "detected", mt.String())
		return nil, apperrors.ErrUnsupportedFileType
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	offer, err := loadManagedOffer(s.offerRepo, tx, actor, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status == models.OfferStatusArchived {
		return nil, errOfferNotEditable
	}

	key := fmt.Sprintf("offers/%s/technical-conditions/%s%s", offer.ID, uuid.NewString(), mt.Extension())
	if err := s.store.Save(ctx, key, bytes.NewReader(data), mt.String()); err != nil {
		return nil, apperrors.ErrExternalService(err, "storage", "Failed to store document")
	}

	url := s.store.URL(key)
	offer.TechnicalConditionsURL = &url
	offer.UpdatedAt = s.now()

	if err := s.offerRepo.Update(tx, offer); err != nil {
		s.discard(ctx, key)
		return nil, handleOfferError(err)
	}
	if err := tx.Commit().Error; err != nil {
		s.discard(ctx, key)
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Technical conditions attached", "offer_id", offer.ID, "key", key, "bytes", len(data))
	return offer, nil
}

func (s *OfferDocumentServiceImpl) discard(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.CtxWithError(ctx, "Failed to remove orphaned document", err, "key", key)
	}
}
