package services

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/config"
	"mmh_backend/internal/email"
	"mmh_backend/internal/models"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/testutil"
	"mmh_backend/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harnessOptions struct {
	minOrder    MinOrderPolicy
	authCfg     config.AuthConfig
	allowFree   bool
	numbers     OrderNumberSource
	commission  CommissionPolicy
	companies   map[string]string
	registryOff bool
}

type harness struct {
	db        *gorm.DB
	mail      *testutil.RecordingProvider
	registry  *testutil.FakeRegistry
	publisher *testutil.RecordingPublisher
	tokens    *auth.TokenManager

	users  UserService
	auth   AuthService
	offers OfferService
	orders OrderService
}

func defaultHarnessOptions() harnessOptions {
	return harnessOptions{
		minOrder: MinOrderRaise,
		authCfg: config.AuthConfig{
			RequireVerifiedEmail: true,
			VerificationTTL:      24 * time.Hour,
			ResetTTL:             time.Hour,
			FrontendURL:          "http://frontend.test",
		},
		allowFree: true,
		companies: map[string]string{
			"12345678": "ACME s.r.o.",
			"87654321": "Mediální dům a.s.",
		},
	}
}

func newHarness(t *testing.T, tweaks ...func(*harnessOptions)) *harness {
	t.Helper()
	opts := defaultHarnessOptions()
	for _, tweak := range tweaks {
		tweak(&opts)
	}

	db := testutil.NewTestDB(t)
	mail := &testutil.RecordingProvider{}
	reg := &testutil.FakeRegistry{Companies: opts.companies, Down: opts.registryOff}
	pub := &testutil.RecordingPublisher{}
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})

	templates, err := email.NewBuiltinTemplateManager()
	require.NoError(t, err)

	userRepo := repositories.NewUserRepository()
	offerRepo := repositories.NewOfferRepository()
	orderRepo := repositories.NewOrderRepository()

	numbers := opts.numbers
	if numbers == nil {
		numbers = NewSequentialOrderNumbers(orderRepo)
	}
	commission := opts.commission
	if commission == nil {
		commission = testCommissionPolicy()
	}

	notifier := NewNotificationService(mail, templates, opts.authCfg.FrontendURL, nil)
	verifier := NewCompanyVerifier(reg, opts.allowFree, nil)
	users := NewUserService(userRepo)

	return &harness{
		db:        db,
		mail:      mail,
		registry:  reg,
		publisher: pub,
		tokens:    tokens,
		users:     users,
		auth:      NewAuthService(userRepo, users, verifier, notifier, tokens, opts.authCfg, InlineRunner),
		offers:    NewOfferService(offerRepo, userRepo),
		orders: NewOrderService(orderRepo, offerRepo, numbers, commission, opts.minOrder,
			notifier, pub, nil, InlineRunner),
	}
}

func testCommissionPolicy() *TieredCommissionPolicy {
	return &TieredCommissionPolicy{
		StandardRate: decimal.RequireFromString("0.05"),
		ReducedRate:  decimal.RequireFromString("0.025"),
		ReducedFrom:  decimal.NewFromInt(100000),
	}
}

func actorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

// tokenFrom pulls the single-use token out of the last mail sent to addr.
func tokenFrom(t *testing.T, mail *testutil.RecordingProvider, addr string) string {
	t.Helper()
	sent := mail.SentTo(addr)
	require.NotEmpty(t, sent, "no mail sent to %s", addr)
	m := tokenPattern.FindStringSubmatch(sent[len(sent)-1].HTMLBody)
	require.Len(t, m, 2, "no token in mail body")
	return m[1]
}

func requireAppCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}
