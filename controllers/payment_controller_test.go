package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/scotthooker/commerce-stripe/config"
	"github.com/scotthooker/commerce-stripe/controllers"
	gwerrors "github.com/scotthooker/commerce-stripe/errors"
	"github.com/scotthooker/commerce-stripe/models"
	"github.com/scotthooker/commerce-stripe/routes"
	"github.com/scotthooker/commerce-stripe/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mocks ----

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreatePayment(ctx context.Context, p *models.Payment, capture bool) error {
	return m.Called(ctx, p, capture).Error(0)
}

func (m *MockGateway) CapturePayment(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error {
	return m.Called(ctx, p, amount).Error(0)
}

func (m *MockGateway) VoidPayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockGateway) RefundPayment(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error {
	return m.Called(ctx, p, amount).Error(0)
}

func (m *MockGateway) CreatePaymentMethod(ctx context.Context, owner *models.Account, details services.PaymentMethodDetails) (*models.PaymentMethod, error) {
	args := m.Called(ctx, owner, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMethod), args.Error(1)
}

func (m *MockGateway) DeletePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	return m.Called(ctx, pm).Error(0)
}

type MockPayments struct{ mock.Mock }

func (m *MockPayments) Create(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPayments) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPayments) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPayments) Update(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

type MockMethods struct{ mock.Mock }

func (m *MockMethods) Create(ctx context.Context, pm *models.PaymentMethod) error {
	return m.Called(ctx, pm).Error(0)
}

func (m *MockMethods) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMethod), args.Error(1)
}

func (m *MockMethods) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockAccounts struct{ mock.Mock }

func (m *MockAccounts) Create(ctx context.Context, a *models.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockAccounts) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return m.Called(ctx, id, customerID).Error(0)
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name]++
	return nil
}

func (f *countingMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (f *countingMetrics) IsEnabled() bool { return true }

// ---- helpers ----

type fixture struct {
	gateway  *MockGateway
	payments *MockPayments
	methods  *MockMethods
	accounts *MockAccounts
	metrics  *countingMetrics
	router   *gin.Engine
	user     uuid.UUID
}

func setupRouter(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		gateway:  new(MockGateway),
		payments: new(MockPayments),
		methods:  new(MockMethods),
		accounts: new(MockAccounts),
		metrics:  &countingMetrics{counts: map[string]int{}},
		user:     uuid.New(),
	}
	pc := &controllers.PaymentController{
		Gateway:  f.gateway,
		Config:   config.GatewayConfig{Mode: config.ModeTest, PublishableKey: "pk_test_abc"},
		Payments: f.payments,
		Methods:  f.methods,
		Accounts: f.accounts,
		Metrics:  f.metrics,
		Logger:   zap.NewNop(),
	}
	f.router = gin.New()
	routes.RegisterPaymentRoutes(f.router, pc)
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", f.user.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) ownedMethod() *models.PaymentMethod {
	owner := f.user
	return &models.PaymentMethod{
		ID:           uuid.New(),
		OwnerID:      &owner,
		Owner:        &models.Account{ID: owner, Email: "jane@example.com"},
		RemoteID:     "card_1",
		CardBrand:    models.CardBrandVisa,
		CardLastFour: "4242",
		ExpiresAt:    time.Date(2030, 1, 31, 23, 59, 59, 0, time.UTC),
	}
}

func (f *fixture) authorizedPayment() *models.Payment {
	pm := f.ownedMethod()
	remote := "ch_1"
	return &models.Payment{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		PaymentMethodID: pm.ID,
		PaymentMethod:   pm,
		State:           models.PaymentStateAuthorization,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
		RefundedAmount:  decimal.Zero,
		RemoteID:        &remote,
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ---- tests ----

func TestGetConfig(t *testing.T) {
	f := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/config", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mode":"test","publishable_key":"pk_test_abc"}`, w.Body.String())
}

func TestProtectedRoutesRequireUser(t *testing.T) {
	f := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePaymentMethod_CreatesAccountOnFirstUse(t *testing.T) {
	f := setupRouter(t)
	pm := f.ownedMethod()

	f.accounts.On("FindByID", mock.Anything, f.user).Return(nil, gwerrors.ErrNotFound)
	f.accounts.On("Create", mock.Anything, mock.MatchedBy(func(a *models.Account) bool {
		return a.ID == f.user && a.Email == "jane@example.com"
	})).Return(nil)
	f.gateway.On("CreatePaymentMethod", mock.Anything, mock.AnythingOfType("*models.Account"),
		services.PaymentMethodDetails{StripeToken: "tok_visa", Email: "jane@example.com"}).Return(pm, nil)

	w := f.do(http.MethodPost, "/payment-methods", gin.H{"stripe_token": "tok_visa", "email": "jane@example.com"})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	method := body["payment_method"].(map[string]any)
	assert.Equal(t, "4242", method["card_last_four"])
	assert.Equal(t, "visa", method["card_brand"])
	f.accounts.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestCreatePaymentMethod_FirstUseNeedsEmail(t *testing.T) {
	f := setupRouter(t)
	f.accounts.On("FindByID", mock.Anything, f.user).Return(nil, gwerrors.ErrNotFound)

	w := f.do(http.MethodPost, "/payment-methods", gin.H{"stripe_token": "tok_visa"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, gwerrors.CodeMissingField, decode(t, w)["code"])
	f.gateway.AssertNotCalled(t, "CreatePaymentMethod", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePaymentMethod_DeclinedToken(t *testing.T) {
	f := setupRouter(t)
	account := &models.Account{ID: f.user, Email: "jane@example.com"}
	f.accounts.On("FindByID", mock.Anything, f.user).Return(account, nil)
	f.gateway.On("CreatePaymentMethod", mock.Anything, account, mock.Anything).
		Return(nil, gwerrors.New(gwerrors.KindHardDecline, "card_declined", "Your card was declined.", nil))

	w := f.do(http.MethodPost, "/payment-methods", gin.H{"stripe_token": "tok_chargeDeclined"})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Your card was declined.", body["error"])
	assert.Equal(t, "hard_decline", body["kind"])
}

func TestDeletePaymentMethod(t *testing.T) {
	f := setupRouter(t)
	pm := f.ownedMethod()
	f.methods.On("FindByID", mock.Anything, pm.ID).Return(pm, nil)
	f.gateway.On("DeletePaymentMethod", mock.Anything, pm).Return(nil)

	w := f.do(http.MethodDelete, "/payment-methods/"+pm.ID.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	f.gateway.AssertExpectations(t)
}

func TestDeletePaymentMethod_OtherUsersCard(t *testing.T) {
	f := setupRouter(t)
	pm := f.ownedMethod()
	stranger := uuid.New()
	pm.OwnerID = &stranger
	f.methods.On("FindByID", mock.Anything, pm.ID).Return(pm, nil)

	w := f.do(http.MethodDelete, "/payment-methods/"+pm.ID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	f.gateway.AssertNotCalled(t, "DeletePaymentMethod", mock.Anything, mock.Anything)
}

func TestCreatePayment_Authorizes(t *testing.T) {
	f := setupRouter(t)
	pm := f.ownedMethod()
	orderID := uuid.New()

	f.methods.On("FindByID", mock.Anything, pm.ID).Return(pm, nil)
	f.payments.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.State == models.PaymentStateNew && p.Currency == "USD" &&
			p.Amount.Equal(decimal.RequireFromString("49.99")) && p.PaymentMethod == pm
	})).Return(nil)
	f.gateway.On("CreatePayment", mock.Anything, mock.AnythingOfType("*models.Payment"), false).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Payment).State = models.PaymentStateAuthorization
		}).Return(nil)

	w := f.do(http.MethodPost, "/payments", gin.H{
		"order_id":          orderID,
		"payment_method_id": pm.ID,
		"amount":            "49.99",
		"currency":          "usd",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	payment := body["payment"].(map[string]any)
	assert.Equal(t, "authorization", payment["state"])
	assert.Equal(t, orderID.String(), payment["order_id"])
	assert.Equal(t, []any{"capture", "void"}, body["operations"])
	assert.Equal(t, 1, f.metrics.counts["PaymentSucceeded"])
}

func TestCreatePayment_Declined(t *testing.T) {
	f := setupRouter(t)
	pm := f.ownedMethod()
	f.methods.On("FindByID", mock.Anything, pm.ID).Return(pm, nil)
	f.payments.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreatePayment", mock.Anything, mock.Anything, true).
		Return(gwerrors.New(gwerrors.KindSoftDecline, "insufficient_funds", "Your card has insufficient funds.", nil))

	w := f.do(http.MethodPost, "/payments", gin.H{
		"order_id":          uuid.New(),
		"payment_method_id": pm.ID,
		"amount":            "10",
		"currency":          "USD",
		"capture":           true,
	})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decode(t, w)
	assert.Equal(t, "soft_decline", body["kind"])
	assert.Equal(t, "insufficient_funds", body["code"])
	assert.Equal(t, 1, f.metrics.counts["PaymentDeclined"])
}

func TestCreatePayment_InvalidBody(t *testing.T) {
	f := setupRouter(t)

	w := f.do(http.MethodPost, "/payments", gin.H{"order_id": uuid.New(), "amount": "10"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCapturePayment_PartialAmount(t *testing.T) {
	f := setupRouter(t)
	p := f.authorizedPayment()
	f.payments.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	f.gateway.On("CapturePayment", mock.Anything, p, mock.MatchedBy(func(a *decimal.Decimal) bool {
		return a != nil && a.Equal(decimal.NewFromInt(40))
	})).Run(func(args mock.Arguments) {
		got := args.Get(1).(*models.Payment)
		got.State = models.PaymentStateCaptureCompleted
		got.Amount = decimal.NewFromInt(40)
	}).Return(nil)

	w := f.do(http.MethodPost, "/payments/"+p.ID.String()+"/capture", gin.H{"amount": "40.00"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "capture_completed", body["payment"].(map[string]any)["state"])
	assert.Equal(t, []any{"refund"}, body["operations"])
}

func TestRefundPayment_NoBodyRefundsBalance(t *testing.T) {
	f := setupRouter(t)
	p := f.authorizedPayment()
	p.State = models.PaymentStateCaptureCompleted
	f.payments.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	f.gateway.On("RefundPayment", mock.Anything, p, (*decimal.Decimal)(nil)).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/"+p.ID.String()+"/refund", nil)
	req.Header.Set("X-User-ID", f.user.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.gateway.AssertExpectations(t)
}

func TestRefundPayment_ExceedsBalance(t *testing.T) {
	f := setupRouter(t)
	p := f.authorizedPayment()
	p.State = models.PaymentStateCaptureCompleted
	f.payments.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	f.gateway.On("RefundPayment", mock.Anything, p, mock.Anything).
		Return(gwerrors.InvalidRequest(gwerrors.CodeRefundExceedsBalance, "Cannot refund more than 100.00 USD."))

	w := f.do(http.MethodPost, "/payments/"+p.ID.String()+"/refund", gin.H{"amount": "130"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Cannot refund more than 100.00 USD.", body["error"])
	assert.Equal(t, 1, f.metrics.counts["PaymentFailed"])
}

func TestVoidPayment_ProviderOutageIsGeneric(t *testing.T) {
	f := setupRouter(t)
	p := f.authorizedPayment()
	f.payments.On("FindByID", mock.Anything, p.ID).Return(p, nil)
	f.gateway.On("VoidPayment", mock.Anything, p).
		Return(gwerrors.New(gwerrors.KindInvalidResponse, gwerrors.CodeServerError, "Stripe returned HTTP 500", nil))

	w := f.do(http.MethodPost, "/payments/"+p.ID.String()+"/void", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "payment unavailable", body["error"])
	assert.Equal(t, "invalid_response", body["kind"])
}

func TestGetPayment(t *testing.T) {
	f := setupRouter(t)
	p := f.authorizedPayment()
	f.payments.On("FindByID", mock.Anything, p.ID).Return(p, nil)

	w := f.do(http.MethodGet, "/payments/"+p.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, p.ID.String(), body["payment"].(map[string]any)["id"])
	assert.Equal(t, "100", body["payment"].(map[string]any)["amount"])
}

func TestGetPayment_NotFound(t *testing.T) {
	f := setupRouter(t)
	id := uuid.New()
	f.payments.On("FindByID", mock.Anything, id).
		Return(nil, gwerrors.New(gwerrors.KindInvalidRequest, gwerrors.CodeNotFound, "payment not found.", nil))

	w := f.do(http.MethodGet, "/payments/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPayment_OtherUsersPayment(t *testing.T) {
	f := setupRouter(t)
	p := f.authorizedPayment()
	stranger := uuid.New()
	p.PaymentMethod.OwnerID = &stranger
	f.payments.On("FindByID", mock.Anything, p.ID).Return(p, nil)

	w := f.do(http.MethodGet, "/payments/"+p.ID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPayment_BadID(t *testing.T) {
	f := setupRouter(t)

	w := f.do(http.MethodGet, "/payments/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
