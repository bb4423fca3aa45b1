package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"mmh_backend/internal/email"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/models"
)

var orderStatusLabels = map[models.OrderStatus]string{
	models.OrderStatusNew:        "New",
	models.OrderStatusInProgress: "In progress",
	models.OrderStatusClosed:     "Closed",
}

// StatusLabel returns the human label for an order status, or the raw value
// for statuses it does not know.
func StatusLabel(s models.OrderStatus) string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// NotificationService sends transactional emails. Methods report delivery
// as a bool and never return errors; callers carry on either way.
type NotificationService interface {
	NotifyNewOrder(ctx context.Context, order *models.Order) bool
	NotifyStatusChanged(ctx context.Context, order *models.Order, oldStatus models.OrderStatus) bool
	SendVerificationEmail(ctx context.Context, user *models.User, token string, expiresAt time.Time) bool
	SendPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) bool
}

type NotificationServiceImpl struct {
	provider    email.Provider
	renderer    email.TemplateRenderer
	frontendURL string
	metrics     *metrics.Metrics
}

func NewNotificationService(provider email.Provider, renderer email.TemplateRenderer, frontendURL string, m *metrics.Metrics) NotificationService {
	return &NotificationServiceImpl{
		provider:    provider,
		renderer:    renderer,
		frontendURL: frontendURL,
		metrics:     m,
	}
}

const (
	eventNewOrder      = "new_order"
	eventStatusChanged = "status_changed"
	eventVerifyEmail   = "verify_email"
	eventResetPassword = "reset_password"
)

func (s *NotificationServiceImpl) NotifyNewOrder(ctx context.Context, order *models.Order) (ok bool) {
	defer s.guard(ctx, eventNewOrder, order, &ok)

	if !hasParties(order) {
		logger.CtxError(ctx, "Cannot notify about order without offer and parties")
		return false
	}

	data := s.orderData(order)
	subject := fmt.Sprintf("New order %s: %s", order.OrderNumber, order.Offer.Title)

	mediaOK := s.send(ctx, order.MediaUser.Email, subject, email.TemplateOrderNewMedia, data)
	agencyOK := s.send(ctx, order.AgencyUser.Email, fmt.Sprintf("Order %s received", order.OrderNumber), email.TemplateOrderNewAgency, data)
	return mediaOK && agencyOK
}

func (s *NotificationServiceImpl) NotifyStatusChanged(ctx context.Context, order *models.Order, oldStatus models.OrderStatus) (ok bool) {
	defer s.guard(ctx, eventStatusChanged, order, &ok)

	if !hasParties(order) {
		logger.CtxError(ctx, "Cannot notify about order without offer and parties")
		return false
	}

	data := s.orderData(order)
	data["OldStatus"] = StatusLabel(oldStatus)
	data["NewStatus"] = StatusLabel(order.Status)
	if order.CommissionAmount != nil && order.CommissionRate != nil {
		data["CommissionAmount"] = order.CommissionAmount.StringFixed(2)
		data["CommissionRate"] = order.CommissionRate.Shift(2).String() + " %"
	}
	subject := fmt.Sprintf("Order %s is now %s", order.OrderNumber, StatusLabel(order.Status))

	mediaOK := s.send(ctx, order.MediaUser.Email, subject, email.TemplateOrderStatusMedia, data)
	agencyOK := s.send(ctx, order.AgencyUser.Email, subject, email.TemplateOrderStatusAgency, data)
	return mediaOK && agencyOK
}

func (s *NotificationServiceImpl) SendVerificationEmail(ctx context.Context, user *models.User, token string, expiresAt time.Time) (ok bool) {
	defer s.guard(ctx, eventVerifyEmail, nil, &ok)

	data := email.TemplateData{
		"ContactName": user.ContactName,
		"CompanyName": user.CompanyName,
		"Link":        s.link("/verify-email", token, "signup"),
		"ExpiresAt":   expiresAt.UTC().Format(time.RFC1123),
	}
	return s.send(ctx, user.Email, "Confirm your email", email.TemplateVerifyEmail, data)
}

func (s *NotificationServiceImpl) SendPasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) (ok bool) {
	defer s.guard(ctx, eventResetPassword, nil, &ok)

	data := email.TemplateData{
		"Email":     user.Email,
		"Link":      s.link("/verify-email", token, "recovery"),
		"ExpiresAt": expiresAt.UTC().Format(time.RFC1123),
	}
	return s.send(ctx, user.Email, "Password recovery", email.TemplateResetPassword, data)
}

func (s *NotificationServiceImpl) send(ctx context.Context, to, subject, templateName string, data email.TemplateData) bool {
	body, err := s.renderer.Render(templateName, data)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to render email", err, "template", templateName)
		return false
	}

	if err := s.provider.Send(ctx, &email.Email{To: []string{to}, Subject: subject, HTMLBody: body}); err != nil {
		logger.CtxWithError(ctx, "Failed to send email", err, "template", templateName, "to", to)
		return false
	}
	return true
}

// guard turns panics into a failed delivery and records the outcome.
func (s *NotificationServiceImpl) guard(ctx context.Context, event string, order *models.Order, ok *bool) {
	if r := recover(); r != nil {
		args := []any{"event", event, "panic", r}
		if order != nil {
			args = append(args, "order_id", order.ID)
		}
		logger.CtxError(ctx, "Notification panicked", args...)
		*ok = false
	}
	s.metrics.Notification(event, *ok)
}

func (s *NotificationServiceImpl) orderData(order *models.Order) email.TemplateData {
	volume := ""
	switch {
	case order.QuantityUnits != nil:
		volume = fmt.Sprintf("%d units", *order.QuantityUnits)
	case order.Impressions != nil:
		volume = fmt.Sprintf("%d impressions", *order.Impressions)
	}

	return email.TemplateData{
		"OrderNumber":   order.OrderNumber,
		"OfferTitle":    order.Offer.Title,
		"PreferredFrom": order.PreferredFrom.Format("2006-01-02"),
		"PreferredTo":   order.PreferredTo.Format("2006-01-02"),
		"Volume":        volume,
		"TotalPrice":    order.TotalPrice.StringFixed(2),
		"Note":          order.Note,
		"AgencyCompany": order.AgencyUser.CompanyName,
		"AgencyContact": order.AgencyUser.ContactName,
		"AgencyEmail":   order.AgencyUser.Email,
		"MediaCompany":  order.MediaUser.CompanyName,
	}
}

func (s *NotificationServiceImpl) link(path, token, kind string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("type", kind)
	return s.frontendURL + path + "?" + q.Encode()
}

func hasParties(order *models.Order) bool {
	return order != nil && order.Offer != nil && order.AgencyUser != nil && order.MediaUser != nil
}
