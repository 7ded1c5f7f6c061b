package services

import (
	"context"
	"strings"

	gwerrors "github.com/scotthooker/commerce-stripe/errors"
	"github.com/scotthooker/commerce-stripe/models"
	"github.com/scotthooker/commerce-stripe/providers"
	"github.com/scotthooker/commerce-stripe/repository"

	"go.uber.org/zap"
)

// PaymentMethodDetails is what the tokenization widget posts back.
type PaymentMethodDetails struct {
	StripeToken string `json:"stripe_token"`
	// Email is used for the remote customer when there is no owning account.
	Email string `json:"email,omitempty"`
}

// cardBrands maps the provider's brand spelling to the stored card type.
var cardBrands = map[string]models.CardBrand{
	"American Express": models.CardBrandAmex,
	"China UnionPay":   models.CardBrandUnionPay,
	"UnionPay":         models.CardBrandUnionPay,
	"Diners Club":      models.CardBrandDinersClub,
	"Discover":         models.CardBrandDiscover,
	"JCB":              models.CardBrandJCB,
	"Maestro":          models.CardBrandMaestro,
	"MasterCard":       models.CardBrandMastercard,
	"Visa":             models.CardBrandVisa,
}

// MapCardBrand returns the CardBrand for a provider brand string.
func MapCardBrand(brand string) (models.CardBrand, error) {
	if b, ok := cardBrands[brand]; ok {
		return b, nil
	}
	return "", gwerrors.InvalidRequest(gwerrors.CodeUnsupportedCardType,
		"Unsupported card type %q.", brand)
}

// PaymentMethodService stores tokenized cards against provider customers.
type PaymentMethodService struct {
	provider providers.PaymentProvider
	methods  repository.PaymentMethodRepository
	accounts repository.AccountRepository
	logger   *zap.Logger
}

// NewPaymentMethodService creates a new PaymentMethodService.
func NewPaymentMethodService(
	provider providers.PaymentProvider,
	methods repository.PaymentMethodRepository,
	accounts repository.AccountRepository,
	logger *zap.Logger,
) *PaymentMethodService {
	return &PaymentMethodService{
		provider: provider,
		methods:  methods,
		accounts: accounts,
		logger:   logger,
	}
}

// CreatePaymentMethod turns a single-use token into a stored card. The card
// is attached to owner's remote customer, so owner is required.
func (s *PaymentMethodService) CreatePaymentMethod(ctx context.Context, owner *models.Account, details PaymentMethodDetails) (*models.PaymentMethod, error) {
	token := strings.TrimSpace(details.StripeToken)
	if token == "" {
		return nil, gwerrors.InvalidRequest(gwerrors.CodeMissingField, "stripe_token is required.")
	}
	if owner == nil {
		return nil, gwerrors.InvalidRequest(gwerrors.CodeMissingField, "An account is required to store a payment method.")
	}

	var card *providers.Card
	if customerID := owner.RemoteCustomerID(); customerID != "" {
		c, err := s.provider.CreateCardForCustomer(ctx, customerID, token)
		if err != nil {
			return nil, err
		}
		card = c
	} else {
		c, err := s.createCustomerWithCard(ctx, owner, details, token)
		if err != nil {
			return nil, err
		}
		card = c
	}

	brand, err := MapCardBrand(card.Brand)
	if err != nil {
		return nil, err
	}

	pm := &models.PaymentMethod{
		OwnerID:      &owner.ID,
		Owner:        owner,
		RemoteID:     card.ID,
		CardBrand:    brand,
		CardLastFour: card.Last4,
		CardExpMonth: card.ExpMonth,
		CardExpYear:  card.ExpYear,
		ExpiresAt:    models.CardExpiresAt(card.ExpMonth, card.ExpYear),
	}

	if err := s.methods.Create(ctx, pm); err != nil {
		s.logger.Error("Failed to persist payment method",
			zap.String("remote_id", card.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Payment method created",
		zap.String("payment_method_id", pm.ID.String()),
		zap.String("card_brand", string(pm.CardBrand)),
	)
	return pm, nil
}

// createCustomerWithCard creates the remote customer with token as its first
// card and binds it to owner. The two remote calls and the local save are
// not atomic.
func (s *PaymentMethodService) createCustomerWithCard(ctx context.Context, owner *models.Account, details PaymentMethodDetails, token string) (*providers.Card, error) {
	email := owner.Email
	if email == "" {
		email = details.Email
	}
	req := providers.CreateCustomerRequest{Email: email, Token: token}
	if email != "" {
		req.Description = "Customer for " + email
	}

	customer, err := s.provider.CreateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	full, err := s.provider.RetrieveCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if full.DefaultCard == nil {
		return nil, gwerrors.New(gwerrors.KindInvalidResponse, gwerrors.CodeUnexpectedResponse,
			"Provider returned a customer without a default card.", nil)
	}

	if err := s.accounts.SetStripeCustomerID(ctx, owner.ID, customer.ID); err != nil {
		s.logger.Error("Orphaned remote customer: failed to bind to account",
			zap.String("account_id", owner.ID.String()),
			zap.String("customer_id", customer.ID),
			zap.Error(err),
		)
		return nil, err
	}
	owner.StripeCustomerID = &customer.ID
	return full.DefaultCard, nil
}

// DeletePaymentMethod removes the remote card, when there is one, and then
// the local record. A remote card that is already gone is not an error.
func (s *PaymentMethodService) DeletePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	if customerID := pm.Owner.RemoteCustomerID(); customerID != "" {
		if err := s.provider.DeleteCard(ctx, customerID, pm.RemoteID); err != nil {
			if !gwerrors.IsKind(err, gwerrors.KindInvalidRequest) {
				return err
			}
			s.logger.Warn("Remote card already removed",
				zap.String("payment_method_id", pm.ID.String()),
				zap.String("remote_id", pm.RemoteID),
				zap.Error(err),
			)
		}
	}

	if err := s.methods.Delete(ctx, pm.ID); err != nil {
		return err
	}
	s.logger.Info("Payment method deleted", zap.String("payment_method_id", pm.ID.String()))
	return nil
}
