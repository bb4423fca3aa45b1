package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/internal/storage"
	"mmh_backend/internal/testutil"
	"mmh_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func pdfUpload() *dto.DocumentUpload {
	return &dto.DocumentUpload{Filename: "conditions.pdf", Size: int64(len(samplePDF)), Content: bytes.NewReader(samplePDF)}
}

type brokenStore struct{}

func (brokenStore) Save(context.Context, string, io.Reader, string) error {
	return errors.New("bucket unreachable")
}
func (brokenStore) Open(context.Context, string) (io.ReadCloser, error) { return nil, errors.New("nope") }
func (brokenStore) Delete(context.Context, string) error                { return nil }
func (brokenStore) URL(key string) string                               { return "https://broken/" + key }

func newDocumentService(t *testing.T, maxBytes int64) (OfferDocumentService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "/files")
	require.NoError(t, err)
	return NewOfferDocumentService(repositories.NewOfferRepository(), store, maxBytes), dir
}

func TestAttachTechnicalConditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	offer := testutil.CreateOffer(t, h.db, media, testutil.WithStatus(models.OfferStatusDraft))
	docs, dir := newDocumentService(t, 0)

	updated, err := docs.AttachTechnicalConditions(ctx, h.db, actorOf(media), offer.ID, pdfUpload())
	require.NoError(t, err)
	require.NotNil(t, updated.TechnicalConditionsURL)
	url := *updated.TechnicalConditionsURL
	assert.True(t, strings.HasPrefix(url, "/files/offers/"+offer.ID+"/technical-conditions/"), url)
	assert.True(t, strings.HasSuffix(url, ".pdf"), url)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "/files/"))))
	require.NoError(t, err)
	assert.Equal(t, samplePDF, stored)

	reloaded, err := h.offers.GetByID(ctx, h.db, actorOf(media), offer.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.TechnicalConditionsURL)
	assert.Equal(t, url, *reloaded.TechnicalConditionsURL)
}

func TestAttachTechnicalConditions_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	rival := testutil.CreateUser(t, h.db, models.UserRoleMedia, "rival@example.com")
	agency := testutil.CreateUser(t, h.db, models.UserRoleAgency, "agency@example.com")
	published := testutil.CreateOffer(t, h.db, media)
	draft := testutil.CreateOffer(t, h.db, media, testutil.WithStatus(models.OfferStatusDraft))
	archived := testutil.CreateOffer(t, h.db, media, testutil.WithStatus(models.OfferStatusArchived))
	docs, _ := newDocumentService(t, 64)

	_, err := docs.AttachTechnicalConditions(ctx, h.db, actorOf(rival), published.ID, pdfUpload())
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge, "size is checked first")

	docs, _ = newDocumentService(t, 0)

	_, err = docs.AttachTechnicalConditions(ctx, h.db, actorOf(rival), published.ID, pdfUpload())
	assert.ErrorIs(t, err, apperrors.ErrInsufficientPermissions)

	_, err = docs.AttachTechnicalConditions(ctx, h.db, actorOf(agency), draft.ID, pdfUpload())
	assert.ErrorIs(t, err, apperrors.ErrOfferNotFound)

	_, err = docs.AttachTechnicalConditions(ctx, h.db, actorOf(media), archived.ID, pdfUpload())
	requireAppCode(t, err, apperrors.CodeInvalidStatus)

	text := &dto.DocumentUpload{Filename: "notes.pdf", Size: 11, Content: strings.NewReader("hello world")}
	_, err = docs.AttachTechnicalConditions(ctx, h.db, actorOf(media), published.ID, text)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFileType, "extension is not trusted")

	lying := &dto.DocumentUpload{Filename: "c.pdf", Size: 1, Content: bytes.NewReader(samplePDF)}
	small := NewOfferDocumentService(repositories.NewOfferRepository(), brokenStore{}, 16)
	_, err = small.AttachTechnicalConditions(ctx, h.db, actorOf(media), published.ID, lying)
	assert.ErrorIs(t, err, apperrors.ErrFileTooLarge, "declared size is not trusted")
}

func TestAttachTechnicalConditions_StoreDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	offer := testutil.CreateOffer(t, h.db, media)
	docs := NewOfferDocumentService(repositories.NewOfferRepository(), brokenStore{}, 0)

	_, err := docs.AttachTechnicalConditions(ctx, h.db, actorOf(media), offer.ID, pdfUpload())
	requireAppCode(t, err, apperrors.CodeExternalServiceError)

	reloaded, err := h.offers.GetByID(ctx, h.db, actorOf(media), offer.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.TechnicalConditionsURL)
}
