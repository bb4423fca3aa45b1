package services

import (
	"context"
	"errors"
	"time"

	"mmh_backend/internal/events"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/services/dto"
	"mmh_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// maxOrderNumberAttempts bounds how often a clashing order number is
// regenerated before giving up.
const maxOrderNumberAttempts = 5

var openOrderStatuses = []models.OrderStatus{models.OrderStatusNew, models.OrderStatusInProgress}

type OrderService interface {
	Create(ctx context.Context, db *gorm.DB, actor Actor, req *dto.CreateOrderRequest) (*models.Order, error)
	GetByID(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Order, error)
	GetByNumber(ctx context.Context, db *gorm.DB, actor Actor, number string) (*models.Order, error)
	Update(ctx context.Context, db *gorm.DB, actor Actor, id string, req *dto.UpdateOrderRequest) (*models.Order, error)
	Delete(ctx context.Context, db *gorm.DB, actor Actor, id string) error
	List(ctx context.Context, db *gorm.DB, actor Actor, filter *dto.OrderFilter) ([]models.Order, int64, error)
	ChangeStatus(ctx context.Context, db *gorm.DB, actor Actor, id string, status models.OrderStatus) (*models.Order, error)
	Close(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Order, error)
}

type OrderServiceImpl struct {
	orderRepo  repositories.OrderRepository
	offerRepo  repositories.OfferRepository
	numbers    OrderNumberSource
	commission CommissionPolicy
	minOrder   MinOrderPolicy
	notifier   NotificationService
	publisher  events.Publisher
	metrics    *metrics.Metrics
	runAsync   AsyncRunner
	now        func() time.Time
}

func NewOrderService(
	orderRepo repositories.OrderRepository,
	offerRepo repositories.OfferRepository,
	numbers OrderNumberSource,
	commission CommissionPolicy,
	minOrder MinOrderPolicy,
	notifier NotificationService,
	publisher events.Publisher,
	m *metrics.Metrics,
	runAsync AsyncRunner,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if runAsync == nil {
		runAsync = GoRunner
	}
	return &OrderServiceImpl{
		orderRepo:  orderRepo,
		offerRepo:  offerRepo,
		numbers:    numbers,
		commission: commission,
		minOrder:   minOrder,
		notifier:   notifier,
		publisher:  publisher,
		metrics:    m,
		runAsync:   runAsync,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create places an order for the calling agency. The offer's pricing is
// copied onto the order and the total is computed once, here.
func (s *OrderServiceImpl) Create(ctx context.Context, db *gorm.DB, actor Actor, req *dto.CreateOrderRequest) (*models.Order, error) {
	if !actor.IsAgency() {
		return nil, apperrors.ErrInsufficientPermissions
	}
	if err := validateOrderVolume(req.QuantityUnits, req.Impressions); err != nil {
		return nil, err
	}
	if req.PreferredTo.Before(req.PreferredFrom) {
		return nil, apperrors.FieldError("preferredTo", "Must not be before preferredFrom")
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order, err := s.createOnce(db, actor, req)
		if errors.Is(err, repositories.ErrOrderNumberTaken) {
			s.metrics.OrderNumberRetried()
			logger.CtxWarn(ctx, "Order number collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.OrderCreated()
		logger.CtxInfo(ctx, "Order created",
			"order_id", order.ID,
			"order_number", order.OrderNumber,
			"offer_id", order.OfferID,
			"total", order.TotalPrice.StringFixed(2),
		)
		s.afterCommit(ctx, db, order.ID, events.OrderCreated, "")
		return order, nil
	}

	logger.CtxError(ctx, "Could not allocate order number", "attempts", maxOrderNumberAttempts)
	return nil, apperrors.ErrOrderNumberExhausted
}

// createOnce runs one insert attempt in its own transaction. A clash on the
// order number comes back as repositories.ErrOrderNumberTaken.
func (s *OrderServiceImpl) createOnce(db *gorm.DB, actor Actor, req *dto.CreateOrderRequest) (*models.Order, error) {
	now := s.now()

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	offer, err := s.offerRepo.FindByID(tx, req.OfferID)
	if err != nil {
		return nil, handleOfferError(err)
	}
	if !offer.IsOrderableAt(now) {
		return nil, apperrors.ErrOfferNotOrderable
	}

	snap := models.SnapshotOf(offer)
	switch {
	case snap.Model == models.PricingModelPerUnit && req.QuantityUnits == nil:
		return nil, apperrors.FieldError("quantityUnits", "Required for per_unit offers")
	case snap.Model == models.PricingModelCPT && req.Impressions == nil:
		return nil, apperrors.FieldError("impressions", "Required for cpt offers")
	}

	quote, err := ComputeTotal(snap, req.QuantityUnits, req.Impressions, s.minOrder)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if quote.BelowMinimum {
		return nil, apperrors.ErrBelowMinimumOrderValue.WithDetails(map[string]string{
			"total":         quote.Total.StringFixed(2),
			"minOrderValue": snap.MinOrderValue.StringFixed(2),
		})
	}

	number, err := s.numbers.Next(tx, currentYear(now))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	order := &models.Order{
		OrderNumber:     number,
		OfferID:         offer.ID,
		AgencyUserID:    actor.UserID,
		MediaUserID:     offer.MediaUserID,
		PreferredFrom:   req.PreferredFrom.UTC(),
		PreferredTo:     req.PreferredTo.UTC(),
		Pricing:         snap.Model,
		UnitPrice:       snap.UnitPrice,
		CPT:             snap.CPT,
		DiscountPercent: snap.DiscountPercent,
		MinOrderValue:   snap.MinOrderValue,
		QuantityUnits:   req.QuantityUnits,
		Impressions:     req.Impressions,
		TotalPrice:      quote.Total,
		Note:            req.Note,
		Status:          models.OrderStatusNew,
		Version:         1,
	}

	if err := s.orderRepo.Create(tx, order); err != nil {
		if errors.Is(err, repositories.ErrOrderNumberTaken) {
			return nil, err
		}
		return nil, apperrors.InternalError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return order, nil
}

func (s *OrderServiceImpl) GetByID(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(db, id)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if !isOrderParty(actor, order) {
		return nil, apperrors.ErrInsufficientPermissions
	}
	return order, nil
}

func (s *OrderServiceImpl) GetByNumber(ctx context.Context, db *gorm.DB, actor Actor, number string) (*models.Order, error) {
	order, err := s.orderRepo.FindByNumber(db, number)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if !isOrderParty(actor, order) {
		return nil, apperrors.ErrInsufficientPermissions
	}
	return order, nil
}

// Update changes the preferred dates and note of an open order.
func (s *OrderServiceImpl) Update(ctx context.Context, db *gorm.DB, actor Actor, id string, req *dto.UpdateOrderRequest) (*models.Order, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	order, err := s.orderRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if !actor.IsAdmin() && !(actor.IsAgency() && order.AgencyUserID == actor.UserID) {
		return nil, apperrors.ErrInsufficientPermissions
	}
	if order.IsClosed() {
		return nil, apperrors.ErrOrderAlreadyClosed
	}

	from, to := order.PreferredFrom, order.PreferredTo
	if req.PreferredFrom != nil {
		from = req.PreferredFrom.UTC()
	}
	if req.PreferredTo != nil {
		to = req.PreferredTo.UTC()
	}
	if to.Before(from) {
		return nil, apperrors.FieldError("preferredTo", "Must not be before preferredFrom")
	}
	note := order.Note
	if req.Note != nil {
		note = *req.Note
	}

	err = s.orderRepo.GuardedUpdate(tx, id, order.Version, openOrderStatuses, map[string]interface{}{
		"preferred_from": from,
		"preferred_to":   to,
		"note":           note,
	})
	if err != nil {
		return nil, s.guardError(tx, id, err)
	}

	updated, err := s.orderRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}
	return updated, nil
}

// Delete is open to admins, and to the buying agency while the order is New.
func (s *OrderServiceImpl) Delete(ctx context.Context, db *gorm.DB, actor Actor, id string) error {
	tx := db.Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	order, err := s.orderRepo.FindByID(tx, id)
	if err != nil {
		return handleOrderError(err)
	}
	if !actor.IsAdmin() {
		if !actor.IsAgency() || order.AgencyUserID != actor.UserID {
			return apperrors.ErrInsufficientPermissions
		}
		if order.Status != models.OrderStatusNew {
			return apperrors.ErrInvalidStatus("order", "Only new orders can be deleted")
		}
	}

	if err := s.orderRepo.Delete(tx, id); err != nil {
		return handleOrderError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Order deleted", "order_id", id)
	return nil
}

// List scopes non-admins to orders on their own side of the market.
func (s *OrderServiceImpl) List(ctx context.Context, db *gorm.DB, actor Actor, filter *dto.OrderFilter) ([]models.Order, int64, error) {
	repoFilter := repositories.OrderFilter{
		AgencyUserID: filter.AgencyUserID,
		MediaUserID:  filter.MediaUserID,
		OfferID:      filter.OfferID,
		Status:       filter.Status,
		Page:         repositories.Page{Page: filter.Page, PageSize: filter.PageSize},
	}
	switch {
	case actor.IsAdmin():
	case actor.IsAgency():
		repoFilter.AgencyUserID = actor.UserID
	case actor.IsMedia():
		repoFilter.MediaUserID = actor.UserID
	default:
		return nil, 0, apperrors.ErrInsufficientPermissions
	}

	orders, total, err := s.orderRepo.FindWithFilter(db, repoFilter)
	if err != nil {
		return nil, 0, apperrors.InternalError(err)
	}
	return orders, total, nil
}

// ChangeStatus moves an open order between New and InProgress. Closing is
// delegated to Close so commission is always set.
func (s *OrderServiceImpl) ChangeStatus(ctx context.Context, db *gorm.DB, actor Actor, id string, status models.OrderStatus) (*models.Order, error) {
	if status == models.OrderStatusClosed {
		return s.Close(ctx, db, actor, id)
	}
	if !status.IsValid() {
		return nil, apperrors.FieldError("status", "Must be new, in_progress or closed")
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	order, err := s.loadForSeller(tx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.IsClosed() {
		return nil, apperrors.ErrOrderAlreadyClosed
	}
	if order.Status == status {
		return order, nil
	}
	oldStatus := order.Status

	err = s.orderRepo.GuardedUpdate(tx, id, order.Version, openOrderStatuses, map[string]interface{}{
		"status": status,
	})
	if err != nil {
		return nil, s.guardError(tx, id, err)
	}

	updated, err := s.orderRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "Order status changed", "order_id", id, "from", oldStatus, "to", status)
	s.afterCommit(ctx, db, id, events.OrderStatusChanged, oldStatus)
	return updated, nil
}

// Close is the only path that sets commission. The update is guarded on
// status and version, so a second close never touches the stored values.
func (s *OrderServiceImpl) Close(ctx context.Context, db *gorm.DB, actor Actor, id string) (*models.Order, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	order, err := s.loadForSeller(tx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.IsClosed() {
		return nil, apperrors.ErrOrderAlreadyClosed
	}

	var mediaType models.MediaType
	if offer, err := s.offerRepo.FindByID(tx, order.OfferID); err == nil {
		mediaType = offer.MediaType
	} else if !errors.Is(err, repositories.ErrOfferNotFound) {
		return nil, apperrors.InternalError(err)
	}

	rate := s.commission.Rate(order, mediaType)
	amount := CommissionAmount(order.TotalPrice, rate)
	closedAt := s.now()
	oldStatus := order.Status

	err = s.orderRepo.GuardedUpdate(tx, id, order.Version, openOrderStatuses, map[string]interface{}{
		"status":            models.OrderStatusClosed,
		"commission_rate":   rate,
		"commission_amount": amount,
		"closed_at":         closedAt,
	})
	if err != nil {
		return nil, s.guardError(tx, id, err)
	}

	closed, err := s.orderRepo.FindByID(tx, id)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	s.metrics.OrderClosed()
	logger.CtxInfo(ctx, "Order closed",
		"order_id", id,
		"commission_rate", rate.String(),
		"commission_amount", amount.StringFixed(2),
	)
	s.afterCommit(ctx, db, id, events.OrderClosed, oldStatus)
	return closed, nil
}

// loadForSeller reads the order for a status change by the selling media
// user or an admin.
func (s *OrderServiceImpl) loadForSeller(db *gorm.DB, actor Actor, id string) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(db, id)
	if err != nil {
		return nil, handleOrderError(err)
	}
	if !actor.IsAdmin() && !(actor.IsMedia() && order.MediaUserID == actor.UserID) {
		return nil, apperrors.ErrInsufficientPermissions
	}
	return order, nil
}

// guardError explains why a guarded update matched no row.
func (s *OrderServiceImpl) guardError(db *gorm.DB, id string, err error) error {
	if !errors.Is(err, repositories.ErrStaleWrite) {
		return handleOrderError(err)
	}
	current, findErr := s.orderRepo.FindByID(db, id)
	if findErr != nil {
		return handleOrderError(findErr)
	}
	if current.IsClosed() {
		return apperrors.ErrOrderAlreadyClosed
	}
	return apperrors.ErrOrderConcurrentUpdate
}

// afterCommit notifies both parties and publishes the event off the request
// path. Failures are logged and counted only.
func (s *OrderServiceImpl) afterCommit(ctx context.Context, db *gorm.DB, orderID, eventType string, oldStatus models.OrderStatus) {
	bg := context.WithoutCancel(ctx)
	s.runAsync(func() {
		order, err := s.orderRepo.FindByIDWithParties(db.WithContext(bg), orderID)
		if err != nil {
			logger.CtxWithError(bg, "Failed to load order for notification", err, "order_id", orderID)
			return
		}

		if eventType == events.OrderCreated {
			s.notifier.NotifyNewOrder(bg, order)
		} else {
			s.notifier.NotifyStatusChanged(bg, order, oldStatus)
		}

		ev := newOrderEvent(eventType, order, oldStatus)
		err = s.publisher.PublishOrderEvent(bg, ev)
		s.metrics.EventPublished(eventType, err == nil)
		if err != nil {
			logger.CtxWithError(bg, "Failed to publish order event", err, "order_id", orderID, "type", eventType)
		}
	})
}

func newOrderEvent(eventType string, order *models.Order, oldStatus models.OrderStatus) events.OrderEvent {
	ev := events.NewOrderEvent(eventType)
	ev.OrderID = order.ID
	ev.OrderNumber = order.OrderNumber
	ev.OfferID = order.OfferID
	ev.AgencyUserID = order.AgencyUserID
	ev.MediaUserID = order.MediaUserID
	ev.OldStatus = string(oldStatus)
	ev.NewStatus = string(order.Status)
	ev.TotalPrice = order.TotalPrice.StringFixed(2)
	if order.CommissionRate != nil {
		ev.CommissionRate = order.CommissionRate.String()
	}
	if order.CommissionAmount != nil {
		ev.CommissionAmount = order.CommissionAmount.StringFixed(2)
	}
	return ev
}

// validateOrderVolume enforces exactly one of quantity (1..100) and
// impressions (> 0).
func validateOrderVolume(qty *int, impressions *int64) error {
	switch {
	case qty == nil && impressions == nil:
		msg := "Provide either quantityUnits or impressions"
		return apperrors.ValidationError(map[string]string{"quantityUnits": msg, "impressions": msg})
	case qty != nil && impressions != nil:
		msg := "Provide only one of quantityUnits and impressions"
		return apperrors.ValidationError(map[string]string{"quantityUnits": msg, "impressions": msg})
	case qty != nil && (*qty < 1 || *qty > 100):
		return apperrors.FieldError("quantityUnits", "Must be between 1 and 100")
	case impressions != nil && *impressions <= 0:
		return apperrors.FieldError("impressions", "Must be greater than 0")
	}
	return nil
}

func isOrderParty(actor Actor, order *models.Order) bool {
	return actor.IsAdmin() || order.AgencyUserID == actor.UserID || order.MediaUserID == actor.UserID
}

func handleOrderError(err error) error {
	if errors.Is(err, repositories.ErrOrderNotFound) {
		return apperrors.ErrOrderNotFound
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.InternalError(err)
}
