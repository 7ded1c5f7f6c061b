package services

import (
	"context"

	"github.com/scotthooker/commerce-stripe/config"
	"github.com/scotthooker/commerce-stripe/models"

	"github.com/shopspring/decimal"
)

// Gateway is the set of operations an on-site card gateway offers to the
// order system.
type Gateway interface {
	CreatePayment(ctx context.Context, p *models.Payment, capture bool) error
	CapturePayment(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error
	VoidPayment(ctx context.Context, p *models.Payment) error
	RefundPayment(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error
	CreatePaymentMethod(ctx context.Context, owner *models.Account, details PaymentMethodDetails) (*models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error
}

// StripeGateway is the Stripe-backed Gateway.
type StripeGateway struct {
	*PaymentService
	*PaymentMethodService
	cfg config.GatewayConfig
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway composes the lifecycle and payment method services with
// the mode-selected configuration they were built for.
func NewStripeGateway(cfg config.GatewayConfig, payments *PaymentService, methods *PaymentMethodService) *StripeGateway {
	return &StripeGateway{PaymentService: payments, PaymentMethodService: methods, cfg: cfg}
}

// Mode is "test" or "live".
func (g *StripeGateway) Mode() string { return g.cfg.Mode }

// PublishableKey is the non-secret key handed to the tokenization widget.
func (g *StripeGateway) PublishableKey() string { return g.cfg.PublishableKey }

// Operation is a follow-up action a payment currently allows.
type Operation string

const (
	OperationCapture Operation = "capture"
	OperationVoid    Operation = "void"
	OperationRefund  Operation = "refund"
)

// PaymentOperations lists the operations p's state allows.
func PaymentOperations(p *models.Payment) []Operation {
	switch {
	case p.State == models.PaymentStateAuthorization:
		return []Operation{OperationCapture, OperationVoid}
	case p.State.IsCaptured():
		return []Operation{OperationRefund}
	}
	return []Operation{}
}
