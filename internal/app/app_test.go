package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"mmh_backend/internal/config"
	"mmh_backend/internal/events"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/models"
	"mmh_backend/internal/services"
	"mmh_backend/internal/services/dto"
	"mmh_backend/internal/storage"
	"mmh_backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	Server    *httptest.Server
	DB        *gorm.DB
	App       *Application
	Mail      *testutil.RecordingProvider
	Publisher *testutil.RecordingPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.JWT.Secret = "integration-secret"
	cfg.Auth.FrontendURL = "https://mmh.example"

	db := testutil.NewTestDB(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)
	mail := &testutil.RecordingProvider{}
	pub := &testutil.RecordingPublisher{}
	deps := Dependencies{
		Registry: &testutil.FakeRegistry{Companies: map[string]string{
			"12345678": "ACME s.r.o.",
			"87654321": "Mediální dům a.s.",
		}},
		EmailProvider: mail,
		Publisher:     pub,
		Storage:       store,
		Metrics:       metrics.New("mmh"),
		RunAsync:      services.InlineRunner,
	}

	application, err := SetupRouter(cfg, db, deps)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: db, App: application, Mail: mail, Publisher: pub}
}

// sendRequest sends body as JSON and returns the response with its body read.
func (ts *testServer) sendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func (ts *testServer) sendFile(t *testing.T, path, token, filename string, content []byte) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Domain  string          `json:"domain"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

func (ts *testServer) lastToken(t *testing.T, to string) string {
	t.Helper()
	sent := ts.Mail.SentTo(to)
	require.NotEmpty(t, sent, "no mail to %s", to)
	m := tokenPattern.FindStringSubmatch(sent[len(sent)-1].HTMLBody)
	require.Len(t, m, 2, "no token in mail")
	return m[1]
}

// signUp registers, confirms the email and logs in. It returns the access token.
func (ts *testServer) signUp(t *testing.T, req dto.RegisterRequest) string {
	t.Helper()

	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/register", "", req)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	registered := decode[dto.AuthResponse](t, body)
	assert.Empty(t, registered.AccessToken, "no session before email verification")

	login := dto.LoginRequest{Email: req.Email, Password: req.Password}
	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/login", "", login)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(body))

	verify := dto.VerifyEmailRequest{Token: ts.lastToken(t, req.Email), Type: dto.VerifyTypeSignup}
	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/verify-email", "", verify)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/login", "", login)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	session := decode[dto.AuthResponse](t, body)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	return session.AccessToken
}

func agencySignup() dto.RegisterRequest {
	return dto.RegisterRequest{
		Email:       "jana@acme.cz",
		Password:    "secret-password",
		CompanyName: "Acme",
		ContactName: "Jana Nováková",
		ICO:         "12345678",
		Role:        models.UserRoleAgency,
	}
}

func mediaSignup() dto.RegisterRequest {
	return dto.RegisterRequest{
		Email:       "info@medialnidum.cz",
		Password:    "secret-password",
		CompanyName: "Mediální dům",
		ICO:         "87654321",
		Role:        models.UserRoleMedia,
	}
}

func TestMarketplaceFlow(t *testing.T) {
	ts := newTestServer(t)
	agencyToken := ts.signUp(t, agencySignup())
	mediaToken := ts.signUp(t, mediaSignup())

	now := time.Now().UTC().Truncate(time.Second)
	offerReq := map[string]interface{}{
		"title":        "Morning drive spot",
		"mediaType":    "radio",
		"pricingModel": "per_unit",
		"unitPrice":    "100",
		"tags":         []string{},
		"validFrom":    now.Add(-24 * time.Hour),
		"validTo":      now.Add(30 * 24 * time.Hour),
	}

	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/offers", agencyToken, offerReq)
	assert.Equal(t, http.StatusForbidden, res.StatusCode, "agencies cannot sell")

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/offers", mediaToken, offerReq)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	offer := decode[dto.OfferResponse](t, body)
	assert.Equal(t, models.OfferStatusDraft, offer.Status)

	orderReq := dto.CreateOrderRequest{
		OfferID:       offer.ID,
		PreferredFrom: now.Add(48 * time.Hour),
		PreferredTo:   now.Add(7 * 24 * time.Hour),
		QuantityUnits: intPtr(5),
	}
	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/orders", agencyToken, orderReq)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
	assert.Equal(t, "OFFER_NOT_ORDERABLE", decode[errorEnvelope](t, body).Error.Code)

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/offers/"+offer.ID+"/publish", mediaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, models.OfferStatusPublished, decode[dto.OfferResponse](t, body).Status)

	res, body = ts.sendRequest(t, http.MethodGet, "/api/v1/offers/published", agencyToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	page := decode[dto.PaginatedResponse](t, body)
	assert.EqualValues(t, 1, page.Total)

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/orders", agencyToken, orderReq)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	order := decode[dto.OrderResponse](t, body)
	assert.Regexp(t, `^MMH-\d{4}-000001$`, order.OrderNumber)
	assert.Equal(t, "500.00", order.TotalPrice.StringFixed(2))
	assert.Equal(t, models.OrderStatusNew, order.Status)
	assert.Nil(t, order.CommissionRate)

	assert.Len(t, ts.Mail.SentTo("info@medialnidum.cz"), 2, "verification plus new order")

	res, body = ts.sendRequest(t, http.MethodGet, "/api/v1/orders/number/"+order.OrderNumber, mediaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, order.ID, decode[dto.OrderResponse](t, body).ID)

	res, _ = ts.sendRequest(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/close", agencyToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/close", mediaToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	closed := decode[dto.OrderResponse](t, body)
	assert.Equal(t, models.OrderStatusClosed, closed.Status)
	require.NotNil(t, closed.CommissionAmount)
	assert.Equal(t, "25.00", closed.CommissionAmount.StringFixed(2))

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/close", mediaToken, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode, string(body))

	evs := ts.Publisher.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, events.OrderCreated, evs[0].Type)
	assert.Equal(t, events.OrderClosed, evs[1].Type)

	res, body = ts.sendRequest(t, http.MethodGet, "/api/v1/orders", agencyToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.EqualValues(t, 1, decode[dto.PaginatedResponse](t, body).Total)
}

func TestTechnicalConditionsUpload(t *testing.T) {
	ts := newTestServer(t)
	agencyToken := ts.signUp(t, agencySignup())
	mediaToken := ts.signUp(t, mediaSignup())

	now := time.Now().UTC()
	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/offers", mediaToken, map[string]interface{}{
		"title":        "Billboard D1",
		"mediaType":    "outdoor",
		"pricingModel": "per_unit",
		"unitPrice":    "12000",
		"validFrom":    now,
		"validTo":      now.Add(60 * 24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	offer := decode[dto.OfferResponse](t, body)
	path := "/api/v1/offers/" + offer.ID + "/technical-conditions"

	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

	res, _ = ts.sendFile(t, path, agencyToken, "conditions.pdf", pdf)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = ts.sendFile(t, path, mediaToken, "conditions.pdf", []byte("just text"))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
	assert.Contains(t, string(decode[errorEnvelope](t, body).Error.Details), "file")

	res, body = ts.sendRequest(t, http.MethodPost, path, mediaToken, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))

	res, body = ts.sendFile(t, path, mediaToken, "conditions.pdf", pdf)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	updated := decode[dto.OfferResponse](t, body)
	require.NotNil(t, updated.TechnicalConditionsURL)
	assert.Contains(t, *updated.TechnicalConditionsURL, "/files/offers/"+offer.ID+"/technical-conditions/")

	res, body = ts.sendRequest(t, http.MethodGet, *updated.TechnicalConditionsURL, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, pdf, body)
}

func TestRegister_CompanyMismatch(t *testing.T) {
	ts := newTestServer(t)

	req := agencySignup()
	req.Email = "jana@globex.com"
	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/register", "", req)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
	env := decode[errorEnvelope](t, body)
	assert.Equal(t, "COMPANY_MISMATCH", env.Error.Code)
	assert.Contains(t, string(env.Error.Details), "email")
	assert.Empty(t, ts.Mail.Sent())

	req = agencySignup()
	req.ICO = "1234"
	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/register", "", req)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
	env = decode[errorEnvelope](t, body)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, string(env.Error.Details), "ico")
}

func TestErrorEnvelopes(t *testing.T) {
	ts := newTestServer(t)
	agencyToken := ts.signUp(t, agencySignup())

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", http.MethodGet, "/api/v1/orders", "not-a-jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"admin only", http.MethodGet, "/api/v1/users", agencyToken, http.StatusForbidden, "FORBIDDEN"},
		{"missing offer", http.MethodGet, "/api/v1/offers/00000000-0000-0000-0000-000000000000", agencyToken, http.StatusNotFound, "NOT_FOUND"},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := ts.sendRequest(t, tt.method, tt.path, tt.token, nil)
			require.Equal(t, tt.status, res.StatusCode, string(body))
			assert.Equal(t, tt.code, decode[errorEnvelope](t, body).Error.Code)
		})
	}
}

func TestMe_AndRefresh(t *testing.T) {
	ts := newTestServer(t)
	req := agencySignup()
	ts.signUp(t, req)

	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: req.Email, Password: req.Password})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	session := decode[dto.AuthResponse](t, body)

	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	refreshed := decode[dto.AuthResponse](t, body)
	require.NotEmpty(t, refreshed.AccessToken)

	res, body = ts.sendRequest(t, http.MethodGet, "/api/v1/auth/me", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	me := decode[dto.UserResponse](t, body)
	assert.Equal(t, "jana@acme.cz", me.Email)
	assert.Equal(t, models.UserStatusVerified, me.Status)
	assert.Equal(t, "Acme", me.CompanyName)
}

func TestSuspendedUserLosesSession(t *testing.T) {
	ts := newTestServer(t)
	req := agencySignup()
	token := ts.signUp(t, req)

	res, body := ts.sendRequest(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	ctx := context.Background()
	user, err := ts.App.Services.UserService.GetByEmail(ctx, ts.DB, req.Email)
	require.NoError(t, err)
	_, err = ts.App.Services.UserService.UpdateStatus(ctx, ts.DB, user.ID, models.UserStatusSuspended)
	require.NoError(t, err)

	res, body = ts.sendRequest(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode, string(body))
	assert.Equal(t, "FORBIDDEN", decode[errorEnvelope](t, body).Error.Code)
}

func TestForgotPassword_DoesNotLeakAccounts(t *testing.T) {
	ts := newTestServer(t)
	req := agencySignup()
	ts.signUp(t, req)

	res, unknown := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/forgot-password", "", dto.ForgotPasswordRequest{Email: "nobody@acme.cz"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, known := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/forgot-password", "", dto.ForgotPasswordRequest{Email: req.Email})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, string(unknown), string(known))

	verify := dto.VerifyEmailRequest{Token: ts.lastToken(t, req.Email), Type: dto.VerifyTypeRecovery}
	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/verify-email", "", verify)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	recovery := decode[dto.AuthResponse](t, body)
	require.NotEmpty(t, recovery.AccessToken)

	reset := dto.ResetPasswordRequest{NewPassword: "brand-new-password", ConfirmPassword: "brand-new-password"}
	res, body = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/reset-password", recovery.AccessToken, reset)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, _ = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: req.Email, Password: req.Password})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	res, _ = ts.sendRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: req.Email, Password: "brand-new-password"})
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		res, body := ts.sendRequest(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode, string(body))
		assert.JSONEq(t, `{"status":"ok","database":"ok"}`, string(body))
	}

	res, body := ts.sendRequest(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `mmh_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	res, _ := ts.sendRequest(t, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestSeedFirstAdmin(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	users := ts.App.Services.UserService

	cfg := config.Default()
	require.NoError(t, seedFirstAdmin(ctx, ts.DB, users, cfg), "skipped without credentials")

	cfg.FirstAdminEmail = "ops@mmh.local"
	cfg.FirstAdminPassword = "admin-password"
	require.NoError(t, seedFirstAdmin(ctx, ts.DB, users, cfg))
	require.NoError(t, seedFirstAdmin(ctx, ts.DB, users, cfg))

	admins, err := users.ListByRole(ctx, ts.DB, models.UserRoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, models.UserStatusVerified, admins[0].Status)

	res, body := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "ops@mmh.local", Password: "admin-password"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	adminToken := decode[dto.AuthResponse](t, body).AccessToken

	res, body = ts.sendRequest(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.EqualValues(t, 1, decode[dto.PaginatedResponse](t, body).Total)
}

func intPtr(v int) *int { return &v }
