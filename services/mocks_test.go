package services_test

import (
	"context"

	"github.com/scotthooker/commerce-stripe/models"
	"github.com/scotthooker/commerce-stripe/providers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// --- provider ---

type MockProvider struct{ mock.Mock }

func (m *MockProvider) CreateCharge(ctx context.Context, req providers.CreateChargeRequest) (*providers.Charge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Charge), args.Error(1)
}

func (m *MockProvider) RetrieveCharge(ctx context.Context, chargeID string) (*providers.Charge, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Charge), args.Error(1)
}

func (m *MockProvider) CaptureCharge(ctx context.Context, chargeID string, amount int64) (*providers.Charge, error) {
	args := m.Called(ctx, chargeID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Charge), args.Error(1)
}

func (m *MockProvider) ReleaseCharge(ctx context.Context, chargeID string) (*providers.Refund, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Refund), args.Error(1)
}

func (m *MockProvider) CreateRefund(ctx context.Context, chargeID string, amount int64) (*providers.Refund, error) {
	args := m.Called(ctx, chargeID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Refund), args.Error(1)
}

func (m *MockProvider) CreateCustomer(ctx context.Context, req providers.CreateCustomerRequest) (*providers.Customer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Customer), args.Error(1)
}

func (m *MockProvider) RetrieveCustomer(ctx context.Context, customerID string) (*providers.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Customer), args.Error(1)
}

func (m *MockProvider) CreateCardForCustomer(ctx context.Context, customerID, token string) (*providers.Card, error) {
	args := m.Called(ctx, customerID, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Card), args.Error(1)
}

func (m *MockProvider) DeleteCard(ctx context.Context, customerID, cardID string) error {
	return m.Called(ctx, customerID, cardID).Error(0)
}

// --- repositories ---

type MockPaymentRepository struct{ mock.Mock }

func (m *MockPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

type MockPaymentMethodRepository struct{ mock.Mock }

func (m *MockPaymentMethodRepository) Create(ctx context.Context, pm *models.PaymentMethod) error {
	return m.Called(ctx, pm).Error(0)
}

func (m *MockPaymentMethodRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMethod), args.Error(1)
}

func (m *MockPaymentMethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockAccountRepository struct{ mock.Mock }

func (m *MockAccountRepository) Create(ctx context.Context, a *models.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return m.Called(ctx, id, customerID).Error(0)
}

// --- events ---

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	return m.Called(ctx, event).Error(0)
}

type MockSNS struct{ mock.Mock }

func (m *MockSNS) Publish(ctx context.Context, topicArn string, message []byte) error {
	return m.Called(ctx, topicArn, message).Error(0)
}
