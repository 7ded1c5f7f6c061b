package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	awspkg "github.com/scotthooker/commerce-stripe/aws"
	"github.com/scotthooker/commerce-stripe/config"
	gwerrors "github.com/scotthooker/commerce-stripe/errors"
	"github.com/scotthooker/commerce-stripe/middleware"
	"github.com/scotthooker/commerce-stripe/models"
	"github.com/scotthooker/commerce-stripe/repository"
	"github.com/scotthooker/commerce-stripe/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentController serves the payment and payment method endpoints.
type PaymentController struct {
	Gateway  services.Gateway
	Config   config.GatewayConfig
	Payments repository.PaymentRepository
	Methods  repository.PaymentMethodRepository
	Accounts repository.AccountRepository
	Metrics  awspkg.MetricsRecorder // optional
	Logger   *zap.Logger
}

type createPaymentMethodRequest struct {
	StripeToken string `json:"stripe_token"`
	Email       string `json:"email"`
}

type createPaymentRequest struct {
	OrderID         uuid.UUID       `json:"order_id" binding:"required"`
	PaymentMethodID uuid.UUID       `json:"payment_method_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" binding:"required,len=3"`
	Capture         bool            `json:"capture"`
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// GetConfig handles GET /payments/config
func (pc *PaymentController) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":            pc.Config.Mode,
		"publishable_key": pc.Config.PublishableKey,
	})
}

// CreatePaymentMethod handles POST /payment-methods
func (pc *PaymentController) CreatePaymentMethod(c *gin.Context) {
	var req createPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	owner, err := pc.accountFor(ctx, middleware.GetUserID(c), req.Email)
	if err != nil {
		pc.writeError(c, err)
		return
	}

	pm, err := pc.Gateway.CreatePaymentMethod(ctx, owner, services.PaymentMethodDetails{
		StripeToken: req.StripeToken,
		Email:       req.Email,
	})
	if err != nil {
		pc.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment_method": pm})
}

// accountFor loads the caller's account, creating it on first use.
func (pc *PaymentController) accountFor(ctx context.Context, userID uuid.UUID, email string) (*models.Account, error) {
	account, err := pc.Accounts.FindByID(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, gwerrors.ErrNotFound) {
		return nil, err
	}
	if strings.TrimSpace(email) == "" {
		return nil, gwerrors.InvalidRequest(gwerrors.CodeMissingField, "email is required for the first payment method.")
	}
	account = &models.Account{ID: userID, Email: strings.TrimSpace(email)}
	if err := pc.Accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeletePaymentMethod handles DELETE /payment-methods/:id
func (pc *PaymentController) DeletePaymentMethod(c *gin.Context) {
	pm, ok := pc.loadPaymentMethod(c, c.Param("id"))
	if !ok {
		return
	}
	if err := pc.Gateway.DeletePaymentMethod(c.Request.Context(), pm); err != nil {
		pc.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreatePayment handles POST /payments
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	pm, ok := pc.loadPaymentMethod(c, req.PaymentMethodID.String())
	if !ok {
		return
	}

	ctx := c.Request.Context()
	payment := &models.Payment{
		OrderID:         req.OrderID,
		PaymentMethodID: pm.ID,
		PaymentMethod:   pm,
		State:           models.PaymentStateNew,
		Amount:          req.Amount,
		Currency:        strings.ToUpper(req.Currency),
		RefundedAmount:  decimal.Zero,
	}
	if err := pc.Payments.Create(ctx, payment); err != nil {
		pc.writeError(c, err)
		return
	}

	err := pc.Gateway.CreatePayment(ctx, payment, req.Capture)
	pc.recordOutcome(ctx, "create", err)
	if err != nil {
		pc.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, paymentResponse(payment))
}

// CapturePayment handles POST /payments/:id/capture
func (pc *PaymentController) CapturePayment(c *gin.Context) {
	pc.withAmount(c, "capture", pc.Gateway.CapturePayment)
}

// RefundPayment handles POST /payments/:id/refund
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	pc.withAmount(c, "refund", pc.Gateway.RefundPayment)
}

// VoidPayment handles POST /payments/:id/void
func (pc *PaymentController) VoidPayment(c *gin.Context) {
	payment, ok := pc.loadPayment(c)
	if !ok {
		return
	}
	err := pc.Gateway.VoidPayment(c.Request.Context(), payment)
	pc.recordOutcome(c.Request.Context(), "void", err)
	if err != nil {
		pc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

// GetPayment handles GET /payments/:id
func (pc *PaymentController) GetPayment(c *gin.Context) {
	payment, ok := pc.loadPayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

func (pc *PaymentController) withAmount(c *gin.Context, op string, fn func(context.Context, *models.Payment, *decimal.Decimal) error) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	payment, ok := pc.loadPayment(c)
	if !ok {
		return
	}
	err := fn(c.Request.Context(), payment, req.Amount)
	pc.recordOutcome(c.Request.Context(), op, err)
	if err != nil {
		pc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentResponse(payment))
}

// loadPayment fetches :id and checks it belongs to the caller. Payments of
// other users are reported as missing.
func (pc *PaymentController) loadPayment(c *gin.Context) (*models.Payment, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
		return nil, false
	}
	payment, err := pc.Payments.FindByID(c.Request.Context(), id)
	if err != nil {
		pc.writeError(c, err)
		return nil, false
	}
	if pm := payment.PaymentMethod; pm == nil || !ownedBy(pm, middleware.GetUserID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found", "code": gwerrors.CodeNotFound})
		return nil, false
	}
	return payment, true
}

func (pc *PaymentController) loadPaymentMethod(c *gin.Context, rawID string) (*models.PaymentMethod, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment method id"})
		return nil, false
	}
	pm, err := pc.Methods.FindByID(c.Request.Context(), id)
	if err != nil {
		pc.writeError(c, err)
		return nil, false
	}
	if !ownedBy(pm, middleware.GetUserID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment method not found", "code": gwerrors.CodeNotFound})
		return nil, false
	}
	return pm, true
}

func ownedBy(pm *models.PaymentMethod, userID uuid.UUID) bool {
	return pm.OwnerID != nil && *pm.OwnerID == userID
}

func paymentResponse(p *models.Payment) gin.H {
	return gin.H{"payment": p, "operations": services.PaymentOperations(p)}
}

// writeError renders domain errors by kind. Operator-facing kinds get a
// generic message; the detail only goes to the log.
func (pc *PaymentController) writeError(c *gin.Context, err error) {
	var de *gwerrors.Error
	if !errors.As(err, &de) {
		pc.Logger.Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	msg := de.Message
	if !de.CustomerFacing() {
		pc.Logger.Error("Payment provider unavailable",
			zap.String("kind", string(de.Kind)), zap.String("code", de.Code), zap.Error(err))
		msg = "payment unavailable"
	}
	_ = c.Error(err)
	c.JSON(de.HTTPStatus(), gin.H{"error": msg, "code": de.Code, "kind": de.Kind})
}

func (pc *PaymentController) recordOutcome(ctx context.Context, op string, err error) {
	if pc.Metrics == nil || !pc.Metrics.IsEnabled() {
		return
	}
	metric := awspkg.MetricPaymentSucceeded
	switch {
	case gwerrors.IsKind(err, gwerrors.KindHardDecline), gwerrors.IsKind(err, gwerrors.KindSoftDecline):
		metric = awspkg.MetricPaymentDeclined
	case err != nil:
		metric = awspkg.MetricPaymentFailed
	}
	dims := map[string]string{"Operation": op, "Mode": pc.Config.Mode}
	if err := pc.Metrics.RecordCount(ctx, metric, dims); err != nil {
		pc.Logger.Warn("Failed to record payment metric", zap.Error(err))
	}
}
