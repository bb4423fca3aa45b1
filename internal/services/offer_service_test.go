package services

import (
	"context"
	"testing"
	"time"

	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/internal/testutil"
	"mmh_backend/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func offerRequest() *dto.OfferRequest {
	now := time.Now().UTC().Truncate(time.Second)
	deadline := now.Add(10 * 24 * time.Hour).Format(dto.DateLayout)
	return &dto.OfferRequest{
		Title:           "Morning show spot",
		Description:     "20s spot before the news",
		MediaType:       models.MediaTypeRadio,
		PricingModel:    models.PricingModelPerUnit,
		UnitPrice:       decPtr("1500"),
		DiscountPercent: decimal.NewFromInt(5),
		Tags:            []string{"new", "regional"},
		AssetDeadline:   &deadline,
		ValidFrom:       now,
		ValidTo:         now.Add(30 * 24 * time.Hour),
	}
}

func TestOfferCreate_MediaOwnsDraft(t *testing.T) {
	h := newHarness(t)
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")

	offer, err := h.offers.Create(context.Background(), h.db, actorOf(media), offerRequest())
	require.NoError(t, err)
	assert.Equal(t, media.ID, offer.MediaUserID)
	assert.Equal(t, models.OfferStatusDraft, offer.Status)
	assert.False(t, offer.CreatedAt.IsZero())
	assert.Equal(t, []string{"new", "regional"}, offer.Tags.Names())
	require.NotNil(t, offer.AssetDeadline)
}

func TestOfferCreate_AdminNeedsMediaOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, h.db, models.UserRoleAdmin, "admin@example.com")
	agency := testutil.CreateUser(t, h.db, models.UserRoleAgency, "agency@example.com")
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")

	_, err := h.offers.Create(ctx, h.db, actorOf(admin), offerRequest())
	requireAppCode(t, err, apperrors.CodeValidationFailed)

	req := offerRequest()
	req.MediaUserID = agency.ID
	_, err = h.offers.Create(ctx, h.db, actorOf(admin), req)
	requireAppCode(t, err, apperrors.CodeValidationFailed)

	req.MediaUserID = media.ID
	offer, err := h.offers.Create(ctx, h.db, actorOf(admin), req)
	require.NoError(t, err)
	assert.Equal(t, media.ID, offer.MediaUserID)

	_, err = h.offers.Create(ctx, h.db, actorOf(agency), offerRequest())
	assert.ErrorIs(t, err, apperrors.ErrInsufficientPermissions)
}

func TestOfferCreate_Validation(t *testing.T) {
	h := newHarness(t)
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")

	tests := []struct {
		name   string
		mutate func(*dto.OfferRequest)
		field  string
	}{
		{"validTo equal to validFrom", func(r *dto.OfferRequest) { r.ValidTo = r.ValidFrom }, "validTo"},
		{"validTo before validFrom", func(r *dto.OfferRequest) { r.ValidTo = r.ValidFrom.Add(-time.Hour) }, "validTo"},
		{"per unit without price", func(r *dto.OfferRequest) { r.UnitPrice = nil }, "unitPrice"},
		{"per unit with zero price", func(r *dto.OfferRequest) { r.UnitPrice = decPtr("0") }, "unitPrice"},
		{"per unit carrying cpt", func(r *dto.OfferRequest) { r.CPT = decPtr("20") }, "cpt"},
		{"cpt without rate", func(r *dto.OfferRequest) {
			r.PricingModel = models.PricingModelCPT
			r.UnitPrice = nil
		}, "cpt"},
		{"cpt carrying unit price", func(r *dto.OfferRequest) {
			r.PricingModel = models.PricingModelCPT
			r.CPT = decPtr("20")
		}, "unitPrice"},
		{"discount above 100", func(r *dto.OfferRequest) { r.DiscountPercent = decimal.NewFromInt(101) }, "discountPercent"},
		{"negative discount", func(r *dto.OfferRequest) { r.DiscountPercent = decimal.NewFromInt(-1) }, "discountPercent"},
		{"unknown tag", func(r *dto.OfferRequest) { r.Tags = []string{"viral"} }, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := offerRequest()
			tt.mutate(req)
			_, err := h.offers.Create(context.Background(), h.db, actorOf(media), req)
			appErr := requireAppCode(t, err, apperrors.CodeValidationFailed)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}

	var count int64
	h.db.Model(&models.Offer{}).Count(&count)
	assert.Zero(t, count)
}

func TestOfferPublishArchive_StateMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	owner := actorOf(media)

	offer, err := h.offers.Create(ctx, h.db, owner, offerRequest())
	require.NoError(t, err)

	published, err := h.offers.Publish(ctx, h.db, owner, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPublished, published.Status)

	again, err := h.offers.Publish(ctx, h.db, owner, offer.ID)
	require.NoError(t, err, "publishing twice is a no-op")
	assert.Equal(t, models.OfferStatusPublished, again.Status)

	archived, err := h.offers.Archive(ctx, h.db, owner, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusArchived, archived.Status)

	archivedAgain, err := h.offers.Archive(ctx, h.db, owner, offer.ID)
	require.NoError(t, err, "archiving twice is a no-op")
	assert.Equal(t, models.OfferStatusArchived, archivedAgain.Status)

	_, err = h.offers.Publish(ctx, h.db, owner, offer.ID)
	assert.ErrorIs(t, err, apperrors.ErrOfferArchived)

	_, err = h.offers.Update(ctx, h.db, owner, offer.ID, offerRequest())
	requireAppCode(t, err, apperrors.CodeInvalidStatus)
}

func TestOfferArchive_FromDraft(t *testing.T) {
	h := newHarness(t)
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	offer := testutil.CreateOffer(t, h.db, media, testutil.WithStatus(models.OfferStatusDraft))

	archived, err := h.offers.Archive(context.Background(), h.db, actorOf(media), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusArchived, archived.Status)
}

func TestOfferPublishArchive_UnknownID(t *testing.T) {
	h := newHarness(t)
	admin := testutil.CreateUser(t, h.db, models.UserRoleAdmin, "admin@example.com")

	_, err := h.offers.Publish(context.Background(), h.db, actorOf(admin), "missing")
	assert.ErrorIs(t, err, apperrors.ErrOfferNotFound)

	_, err = h.offers.Archive(context.Background(), h.db, actorOf(admin), "missing")
	assert.ErrorIs(t, err, apperrors.ErrOfferNotFound)
}

func TestOfferOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, models.UserRoleMedia, "owner@example.com")
	other := testutil.CreateUser(t, h.db, models.UserRoleMedia, "other@example.com")
	agency := testutil.CreateUser(t, h.db, models.UserRoleAgency, "agency@example.com")

	draft := testutil.CreateOffer(t, h.db, owner, testutil.WithStatus(models.OfferStatusDraft))
	published := testutil.CreateOffer(t, h.db, owner)

	_, err := h.offers.GetByID(ctx, h.db, actorOf(agency), draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrOfferNotFound, "drafts are hidden from agencies")
	_, err = h.offers.GetByID(ctx, h.db, actorOf(other), draft.ID)
	assert.ErrorIs(t, err, apperrors.ErrOfferNotFound, "drafts are hidden from other sellers")
	_, err = h.offers.GetByID(ctx, h.db, actorOf(owner), draft.ID)
	assert.NoError(t, err)

	_, err = h.offers.GetByID(ctx, h.db, actorOf(agency), published.ID)
	assert.NoError(t, err)

	_, err = h.offers.Archive(ctx, h.db, actorOf(other), published.ID)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientPermissions)
	_, err = h.offers.Update(ctx, h.db, actorOf(agency), published.ID, offerRequest())
	assert.ErrorIs(t, err, apperrors.ErrInsufficientPermissions)
}

func TestOfferUpdate_ReplacesFieldsAndStampsUpdatedAt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")

	offer, err := h.offers.Create(ctx, h.db, actorOf(media), offerRequest())
	require.NoError(t, err)

	req := offerRequest()
	req.Title = "Evening show spot"
	req.PricingModel = models.PricingModelCPT
	req.UnitPrice = nil
	req.CPT = decPtr("35")
	req.Tags = nil
	req.AssetDeadline = nil

	time.Sleep(10 * time.Millisecond)
	updated, err := h.offers.Update(ctx, h.db, actorOf(media), offer.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(offer.UpdatedAt))

	stored, err := h.offers.GetByID(ctx, h.db, actorOf(media), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening show spot", stored.Title)
	assert.Equal(t, models.PricingModelCPT, stored.Pricing)
	assert.Nil(t, stored.UnitPrice)
	require.NotNil(t, stored.CPT)
	assert.Equal(t, "35", stored.CPT.String())
	assert.Empty(t, stored.Tags.Names())
	assert.Nil(t, stored.AssetDeadline)
	assert.Equal(t, models.OfferStatusDraft, stored.Status)
}

func TestOfferUpdate_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")

	offer, err := h.offers.Create(ctx, h.db, actorOf(media), offerRequest())
	require.NoError(t, err)
	before, err := h.offers.GetByID(ctx, h.db, actorOf(media), offer.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*dto.OfferRequest)
		field  string
	}{
		{"validTo equal to validFrom", func(r *dto.OfferRequest) { r.ValidTo = r.ValidFrom }, "validTo"},
		{"validTo before validFrom", func(r *dto.OfferRequest) { r.ValidTo = r.ValidFrom.Add(-time.Hour) }, "validTo"},
		{"per unit carrying cpt", func(r *dto.OfferRequest) { r.CPT = decPtr("20") }, "cpt"},
		{"cpt without rate", func(r *dto.OfferRequest) {
			r.PricingModel = models.PricingModelCPT
			r.UnitPrice = nil
		}, "cpt"},
		{"cpt carrying unit price", func(r *dto.OfferRequest) {
			r.PricingModel = models.PricingModelCPT
			r.CPT = decPtr("20")
		}, "unitPrice"},
		{"discount above 100", func(r *dto.OfferRequest) { r.DiscountPercent = decimal.NewFromInt(101) }, "discountPercent"},
		{"negative discount", func(r *dto.OfferRequest) { r.DiscountPercent = decimal.NewFromInt(-1) }, "discountPercent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := offerRequest()
			req.Title = "Changed title"
			tt.mutate(req)

			_, err := h.offers.Update(ctx, h.db, actorOf(media), offer.ID, req)
			appErr := requireAppCode(t, err, apperrors.CodeValidationFailed)
			assert.Contains(t, appErr.Details, tt.field)

			after, err := h.offers.GetByID(ctx, h.db, actorOf(media), offer.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Title, after.Title)
			assert.Equal(t, before.Pricing, after.Pricing)
			require.NotNil(t, after.UnitPrice)
			assert.Equal(t, before.UnitPrice.String(), after.UnitPrice.String())
			assert.Nil(t, after.CPT)
			assert.Equal(t, before.DiscountPercent.String(), after.DiscountPercent.String())
			assert.True(t, before.ValidFrom.Equal(after.ValidFrom))
			assert.True(t, before.ValidTo.Equal(after.ValidTo))
			assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
		})
	}
}

// archivingOfferRepo archives the offer right after handing out the read,
// as the expiry worker would between an editor's read and write.
type archivingOfferRepo struct {
	repositories.OfferRepository
}

func (r *archivingOfferRepo) FindByID(db *gorm.DB, id string) (*models.Offer, error) {
	offer, err := r.OfferRepository.FindByID(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(&models.Offer{}).Where("id = ?", id).Update("status", models.OfferStatusArchived).Error; err != nil {
		return nil, err
	}
	return offer, nil
}

func TestOfferUpdate_ArchivedBetweenReadAndWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	offer := testutil.CreateOffer(t, h.db, media)

	offers := NewOfferService(&archivingOfferRepo{OfferRepository: repositories.NewOfferRepository()}, repositories.NewUserRepository())

	req := offerRequest()
	req.Title = "Changed title"
	_, err := offers.Update(ctx, h.db, actorOf(media), offer.ID, req)
	requireAppCode(t, err, apperrors.CodeInvalidStatus)

	stored, err := repositories.NewOfferRepository().FindByID(h.db, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPublished, stored.Status, "rolled back with the refused update")
	assert.Equal(t, offer.Title, stored.Title)
}

func TestOfferDelete_RejectedWhileOrdered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	agency := testutil.CreateUser(t, h.db, models.UserRoleAgency, "agency@example.com")

	offer := testutil.CreateOffer(t, h.db, media)
	_, err := h.orders.Create(ctx, h.db, actorOf(agency), orderRequest(offer.ID, intPtr(1), nil))
	require.NoError(t, err)

	err = h.offers.Delete(ctx, h.db, actorOf(media), offer.ID)
	assert.ErrorIs(t, err, apperrors.ErrOfferHasOrders)

	unordered := testutil.CreateOffer(t, h.db, media)
	require.NoError(t, h.offers.Delete(ctx, h.db, actorOf(media), unordered.ID))
	_, err = h.offers.GetByID(ctx, h.db, actorOf(media), unordered.ID)
	assert.ErrorIs(t, err, apperrors.ErrOfferNotFound)
}

func TestOfferList_RoleScoping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, h.db, models.UserRoleMedia, "owner@example.com")
	other := testutil.CreateUser(t, h.db, models.UserRoleMedia, "other@example.com")
	agency := testutil.CreateUser(t, h.db, models.UserRoleAgency, "agency@example.com")
	admin := testutil.CreateUser(t, h.db, models.UserRoleAdmin, "admin@example.com")

	testutil.CreateOffer(t, h.db, owner, testutil.WithStatus(models.OfferStatusDraft))
	testutil.CreateOffer(t, h.db, owner)
	testutil.CreateOffer(t, h.db, other, testutil.WithStatus(models.OfferStatusDraft))
	testutil.CreateOffer(t, h.db, other)

	count := func(actor Actor, filter dto.OfferFilter) int64 {
		_, total, err := h.offers.List(ctx, h.db, actor, &filter)
		require.NoError(t, err)
		return total
	}

	assert.EqualValues(t, 4, count(actorOf(admin), dto.OfferFilter{}))
	assert.EqualValues(t, 3, count(actorOf(owner), dto.OfferFilter{}))
	assert.EqualValues(t, 2, count(actorOf(agency), dto.OfferFilter{}))
	assert.EqualValues(t, 0, count(actorOf(agency), dto.OfferFilter{Status: models.OfferStatusDraft}))
	assert.EqualValues(t, 1, count(actorOf(owner), dto.OfferFilter{Status: models.OfferStatusDraft}))
	assert.EqualValues(t, 2, count(actorOf(admin), dto.OfferFilter{MediaUserID: other.ID}))
}

func TestOfferListPublishedNow(t *testing.T) {
	h := newHarness(t)
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	now := time.Now().UTC()

	current := testutil.CreateOffer(t, h.db, media)
	testutil.CreateOffer(t, h.db, media, testutil.WithWindow(now.Add(24*time.Hour), now.Add(48*time.Hour)))
	testutil.CreateOffer(t, h.db, media, testutil.WithWindow(now.Add(-48*time.Hour), now.Add(-24*time.Hour)))
	testutil.CreateOffer(t, h.db, media, testutil.WithStatus(models.OfferStatusDraft))

	offers, total, err := h.offers.ListPublishedNow(context.Background(), h.db, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, offers, 1)
	assert.Equal(t, current.ID, offers[0].ID)
}

func TestOfferArchiveExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	media := testutil.CreateUser(t, h.db, models.UserRoleMedia, "media@example.com")
	now := time.Now().UTC()

	expired := testutil.CreateOffer(t, h.db, media, testutil.WithWindow(now.Add(-48*time.Hour), now.Add(-time.Hour)))
	live := testutil.CreateOffer(t, h.db, media)

	n, err := h.offers.ArchiveExpired(ctx, h.db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := h.offers.GetByID(ctx, h.db, actorOf(media), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusArchived, got.Status)

	got, err = h.offers.GetByID(ctx, h.db, actorOf(media), live.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPublished, got.Status)
}
