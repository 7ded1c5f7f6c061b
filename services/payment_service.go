package services

import (
	"context"
	"time"

	gwerrors "github.com/scotthooker/commerce-stripe/errors"
	"github.com/scotthooker/commerce-stripe/models"
	"github.com/scotthooker/commerce-stripe/money"
	"github.com/scotthooker/commerce-stripe/providers"
	"github.com/scotthooker/commerce-stripe/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService drives a Payment through its lifecycle against the remote
// provider. Every operation checks its preconditions locally, makes the
// remote call, persists, and only then mutates the caller's Payment.
type PaymentService struct {
	provider providers.PaymentProvider
	payments repository.PaymentRepository
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// PaymentServiceOption configures a PaymentService.
type PaymentServiceOption func(*PaymentService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) PaymentServiceOption {
	return func(s *PaymentService) { s.now = now }
}

// NewPaymentService creates a new PaymentService. A nil events publisher
// disables event publishing.
func NewPaymentService(
	provider providers.PaymentProvider,
	payments repository.PaymentRepository,
	events EventPublisher,
	logger *zap.Logger,
	opts ...PaymentServiceOption,
) *PaymentService {
	if events == nil {
		events = NoopEventPublisher{}
	}
	s := &PaymentService{
		provider: provider,
		payments: payments,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePayment authorizes p, and captures it too when capture is set.
func (s *PaymentService) CreatePayment(ctx context.Context, p *models.Payment, capture bool) error {
	if err := requireState(p, models.PaymentStateNew); err != nil {
		return err
	}
	pm := p.PaymentMethod
	if pm == nil {
		return gwerrors.InvalidRequest(gwerrors.CodeMissingPaymentMethod,
			"Payment %s has no payment method.", p.ID)
	}
	now := s.now()
	if pm.IsExpired(now) {
		return gwerrors.HardDecline(gwerrors.CodeExpiredPaymentMethod,
			"The provided payment method has expired.")
	}
	if !p.Amount.IsPositive() {
		return gwerrors.InvalidRequest(gwerrors.CodeInvalidAmount, "Payment amount must be positive.")
	}
	units, err := minorUnits(p.Amount, p.Currency)
	if err != nil {
		return err
	}

	charge, err := s.provider.CreateCharge(ctx, providers.CreateChargeRequest{
		Amount:     units,
		Currency:   p.Currency,
		CustomerID: pm.Owner.RemoteCustomerID(),
		SourceID:   pm.RemoteID,
		Capture:    capture,
		Metadata: map[string]string{
			"order_id":   p.OrderID.String(),
			"payment_id": p.ID.String(),
		},
	})
	if err != nil {
		return err
	}

	next := *p
	next.RemoteID = &charge.ID
	next.AuthorizedAt = &now
	next.State = models.PaymentStateAuthorization
	event := models.EventPaymentAuthorized
	if capture {
		next.State = models.PaymentStateCaptureCompleted
		next.CapturedAt = &now
		event = models.EventPaymentCaptured
	}
	return s.commit(ctx, p, &next, event)
}

// CapturePayment captures an authorized payment. A nil amount captures the
// full authorized amount; a smaller amount permanently lowers Payment.Amount.
func (s *PaymentService) CapturePayment(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error {
	if err := requireState(p, models.PaymentStateAuthorization); err != nil {
		return err
	}
	captured := p.Amount
	if amount != nil {
		captured = *amount
	}
	if !captured.IsPositive() {
		return gwerrors.InvalidRequest(gwerrors.CodeInvalidAmount, "Capture amount must be positive.")
	}
	if captured.GreaterThan(p.Amount) {
		return gwerrors.InvalidRequest(gwerrors.CodeCaptureExceedsAmount,
			"Cannot capture more than the authorized %s.", money.New(p.Amount, p.Currency))
	}
	units, err := minorUnits(captured, p.Currency)
	if err != nil {
		return err
	}

	if _, err := s.provider.RetrieveCharge(ctx, p.GetRemoteID()); err != nil {
		return err
	}
	if _, err := s.provider.CaptureCharge(ctx, p.GetRemoteID(), units); err != nil {
		return err
	}

	now := s.now()
	next := *p
	next.State = models.PaymentStateCaptureCompleted
	next.Amount = captured
	next.CapturedAt = &now
	return s.commit(ctx, p, &next, models.EventPaymentCaptured)
}

// RefundPayment refunds a captured payment. A nil amount refunds the whole
// remaining balance.
func (s *PaymentService) RefundPayment(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error {
	if !p.State.IsCaptured() {
		return invalidState(p)
	}
	balance := p.Balance()
	refund := balance
	if amount != nil {
		refund = *amount
	}
	if !refund.IsPositive() {
		return gwerrors.InvalidRequest(gwerrors.CodeInvalidAmount, "Refund amount must be positive.")
	}
	if refund.GreaterThan(balance) {
		return gwerrors.InvalidRequest(gwerrors.CodeRefundExceedsBalance,
			"Cannot refund more than %s.", money.New(balance, p.Currency))
	}
	units, err := minorUnits(refund, p.Currency)
	if err != nil {
		return err
	}

	if _, err := s.provider.CreateRefund(ctx, p.GetRemoteID(), units); err != nil {
		return err
	}

	next := *p
	next.RefundedAmount = p.RefundedAmount.Add(refund)
	if next.RefundedAmount.Equal(next.Amount) {
		next.State = models.PaymentStateCaptureRefunded
	} else {
		next.State = models.PaymentStateCapturePartiallyRefunded
	}
	return s.commit(ctx, p, &next, models.EventPaymentRefunded)
}

// VoidPayment releases the hold of an authorized, uncaptured payment.
func (s *PaymentService) VoidPayment(ctx context.Context, p *models.Payment) error {
	if err := requireState(p, models.PaymentStateAuthorization); err != nil {
		return err
	}
	if _, err := s.provider.ReleaseCharge(ctx, p.GetRemoteID()); err != nil {
		return err
	}

	now := s.now()
	next := *p
	next.State = models.PaymentStateAuthorizationVoided
	next.VoidedAt = &now
	return s.commit(ctx, p, &next, models.EventPaymentVoided)
}

// commit persists next and, on success, copies it over p and publishes.
func (s *PaymentService) commit(ctx context.Context, p, next *models.Payment, eventType string) error {
	if err := s.payments.Update(ctx, next); err != nil {
		s.logger.Error("Failed to persist payment after remote success",
			zap.String("payment_id", p.ID.String()),
			zap.String("remote_id", next.GetRemoteID()),
			zap.String("state", string(next.State)),
			zap.Error(err),
		)
		return err
	}
	from := p.State
	*p = *next

	s.logger.Info("Payment transitioned",
		zap.String("payment_id", p.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(p.State)),
	)
	s.publish(ctx, models.NewPaymentEvent(eventType, p, s.now()))
	return nil
}

// publish is non-fatal.
func (s *PaymentService) publish(ctx context.Context, event models.PaymentEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("type", event.Type),
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
	}
}

// minorUnits rejects amounts the currency cannot express so the stored
// figure always matches what the provider moved.
func minorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if !money.Representable(amount, currency) {
		return 0, gwerrors.InvalidRequest(gwerrors.CodeInvalidAmount,
			"Amount %s has more decimal places than %s allows.", amount.String(), currency)
	}
	return money.ToMinorUnits(amount, currency)
}

func requireState(p *models.Payment, want models.PaymentState) error {
	if p.State != want {
		return invalidState(p)
	}
	return nil
}

func invalidState(p *models.Payment) error {
	return gwerrors.InvalidRequest(gwerrors.CodeInvalidState,
		"Payment %s cannot do that in state %q.", p.ID, p.State)
}
