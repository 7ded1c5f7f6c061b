package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	gwerrors "github.com/scotthooker/commerce-stripe/errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"go.uber.org/zap"
)

// StripeProvider implements PaymentProvider on the Stripe Charges, Refunds,
// Customers and Cards APIs. Each instance owns its API client and key.
type StripeProvider struct {
	api    *client.API
	logger *zap.Logger
}

// StripeOptions overrides the transport used by the Stripe client.
type StripeOptions struct {
	// APIURL points the client at another host, e.g. stripe-mock.
	APIURL     string
	HTTPClient *http.Client
}

// NewStripeProvider creates a new StripeProvider for the given secret key.
func NewStripeProvider(secretKey string, logger *zap.Logger) *StripeProvider {
	return NewStripeProviderWithOptions(secretKey, StripeOptions{}, logger)
}

// NewStripeProviderWithOptions creates a StripeProvider with a custom transport.
func NewStripeProviderWithOptions(secretKey string, opts StripeOptions, logger *zap.Logger) *StripeProvider {
	cfg := &stripe.BackendConfig{
		// Retry policy belongs to the caller.
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
	}
	if opts.APIURL != "" {
		cfg.URL = stripe.String(opts.APIURL)
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	api := client.New(secretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &StripeProvider{api: api, logger: logger}
}

// ---- PaymentProvider implementation ----

func (s *StripeProvider) CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error) {
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Capture:  stripe.Bool(req.Capture),
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	// Sent as a raw field so card ids, source ids and one-off tokens all work.
	params.AddExtra("source", req.SourceID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	s.withContext(ctx, &params.Params, "charge")

	ch, err := s.api.Charges.New(params)
	if err != nil {
		return nil, s.fail("CreateCharge", err)
	}
	return toCharge(ch)
}

func (s *StripeProvider) RetrieveCharge(ctx context.Context, chargeID string) (*Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := s.api.Charges.Get(chargeID, params)
	if err != nil {
		return nil, s.fail("RetrieveCharge", err)
	}
	return toCharge(ch)
}

func (s *StripeProvider) CaptureCharge(ctx context.Context, chargeID string, amount int64) (*Charge, error) {
	params := &stripe.ChargeCaptureParams{
		Amount: stripe.Int64(amount),
	}
	s.withContext(ctx, &params.Params, "capture")

	ch, err := s.api.Charges.Capture(chargeID, params)
	if err != nil {
		return nil, s.fail("CaptureCharge", err)
	}
	return toCharge(ch)
}

// ReleaseCharge refunds an uncaptured charge, which is how the Charges API
// cancels an authorization. No funds have moved, so nothing is paid back.
func (s *StripeProvider) ReleaseCharge(ctx context.Context, chargeID string) (*Refund, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(chargeID),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	s.withContext(ctx, &params.Params, "release")

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, s.fail("ReleaseCharge", err)
	}
	return toRefund(r)
}

func (s *StripeProvider) CreateRefund(ctx context.Context, chargeID string, amount int64) (*Refund, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(chargeID),
		Amount: stripe.Int64(amount),
	}
	s.withContext(ctx, &params.Params, "refund")

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, s.fail("CreateRefund", err)
	}
	return toRefund(r)
}

func (s *StripeProvider) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	params := &stripe.CustomerParams{}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddExtra("source", req.Token)
	s.withContext(ctx, &params.Params, "customer")

	c, err := s.api.Customers.New(params)
	if err != nil {
		return nil, s.fail("CreateCustomer", err)
	}
	return toCustomer(c)
}

func (s *StripeProvider) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddExpand("default_source")

	c, err := s.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, s.fail("RetrieveCustomer", err)
	}
	if c.Deleted {
		return nil, gwerrors.Classify(&gwerrors.ProviderError{
			Category:   gwerrors.CategoryNotFound,
			Message:    fmt.Sprintf("customer %s has been deleted", customerID),
			HTTPStatus: http.StatusNotFound,
		})
	}
	return toCustomer(c)
}

func (s *StripeProvider) CreateCardForCustomer(ctx context.Context, customerID, token string) (*Card, error) {
	params := &stripe.CardParams{
		Customer: stripe.String(customerID),
		Token:    stripe.String(token),
	}
	s.withContext(ctx, &params.Params, "card")

	c, err := s.api.Cards.New(params)
	if err != nil {
		return nil, s.fail("CreateCardForCustomer", err)
	}
	return toCard(c)
}

func (s *StripeProvider) DeleteCard(ctx context.Context, customerID, cardID string) error {
	params := &stripe.CardParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	if _, err := s.api.Cards.Del(cardID, params); err != nil {
		return s.fail("DeleteCard", err)
	}
	return nil
}

// ---- helpers ----

func (s *StripeProvider) withContext(ctx context.Context, p *stripe.Params, op string) {
	p.Context = ctx
	if key, ok := IdempotencyKey(ctx); ok {
		p.SetIdempotencyKey(key + ":" + op)
	}
}

// fail classifies a Stripe failure exactly once and logs it.
func (s *StripeProvider) fail(op string, err error) error {
	classified := gwerrors.Classify(toProviderError(err))
	s.logger.Warn("Stripe request failed",
		zap.String("operation", op),
		zap.String("kind", string(classified.Kind)),
		zap.String("code", classified.Code),
		zap.Error(err),
	)
	return classified
}

func toProviderError(err error) *gwerrors.ProviderError {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		pe := &gwerrors.ProviderError{
			Message:     serr.Msg,
			DeclineCode: string(serr.DeclineCode),
			HTTPStatus:  serr.HTTPStatusCode,
			Err:         err,
		}
		switch {
		case serr.Type == stripe.ErrorTypeCard:
			pe.Category = gwerrors.CategoryDecline
			if pe.DeclineCode == "" {
				pe.DeclineCode = string(serr.Code)
			}
		case serr.HTTPStatusCode == http.StatusUnauthorized:
			pe.Category = gwerrors.CategoryAuthentication
		case serr.HTTPStatusCode == http.StatusForbidden:
			pe.Category = gwerrors.CategoryPermission
		case serr.HTTPStatusCode == http.StatusNotFound:
			pe.Category = gwerrors.CategoryNotFound
		case serr.HTTPStatusCode == http.StatusUpgradeRequired:
			pe.Category = gwerrors.CategoryUpgradeRequired
		case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.Code == stripe.ErrorCodeRateLimit:
			pe.Category = gwerrors.CategoryRateLimit
		case serr.HTTPStatusCode >= http.StatusInternalServerError || serr.Type == stripe.ErrorTypeAPI:
			pe.Category = gwerrors.CategoryServer
		case serr.Type == stripe.ErrorTypeInvalidRequest || serr.Type == stripe.ErrorTypeIdempotency:
			pe.Category = gwerrors.CategoryValidation
			pe.DeclineCode = string(serr.Code)
		default:
			pe.Category = gwerrors.CategoryUnknown
		}
		return pe
	}

	pe := &gwerrors.ProviderError{Category: gwerrors.CategoryUnknown, Message: err.Error(), Err: err}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		pe.Category = gwerrors.CategoryTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			pe.Category = gwerrors.CategoryTimeout
		} else {
			pe.Category = gwerrors.CategoryNetwork
		}
	case errors.Is(err, context.Canceled):
		pe.Category = gwerrors.CategoryNetwork
	}
	return pe
}

func unparseable(what string) error {
	return gwerrors.New(gwerrors.KindInvalidResponse, gwerrors.CodeUnexpectedResponse,
		fmt.Sprintf("Provider returned an unparseable %s.", what), nil)
}

func toCharge(ch *stripe.Charge) (*Charge, error) {
	if ch == nil || ch.ID == "" {
		return nil, unparseable("charge")
	}
	out := &Charge{
		ID:             ch.ID,
		Status:         string(ch.Status),
		Amount:         ch.Amount,
		AmountRefunded: ch.AmountRefunded,
		Currency:       string(ch.Currency),
		Captured:       ch.Captured,
	}
	if ch.Customer != nil {
		out.CustomerID = ch.Customer.ID
	}
	return out, nil
}

func toRefund(r *stripe.Refund) (*Refund, error) {
	if r == nil || r.ID == "" {
		return nil, unparseable("refund")
	}
	out := &Refund{
		ID:     r.ID,
		Amount: r.Amount,
		Status: string(r.Status),
	}
	if r.Charge != nil {
		out.ChargeID = r.Charge.ID
	}
	return out, nil
}

func toCard(c *stripe.Card) (*Card, error) {
	if c == nil || c.ID == "" {
		return nil, unparseable("card")
	}
	out := &Card{
		ID:       c.ID,
		Brand:    string(c.Brand),
		Last4:    c.Last4,
		ExpMonth: int(c.ExpMonth),
		ExpYear:  int(c.ExpYear),
	}
	if c.Customer != nil {
		out.CustomerID = c.Customer.ID
	}
	return out, nil
}

func toCustomer(c *stripe.Customer) (*Customer, error) {
	if c == nil || c.ID == "" {
		return nil, unparseable("customer")
	}
	out := &Customer{ID: c.ID, Email: c.Email}
	if ds := c.DefaultSource; ds != nil && ds.Card != nil {
		card, err := toCard(ds.Card)
		if err != nil {
			return nil, err
		}
		out.DefaultCard = card
	}
	return out, nil
}
