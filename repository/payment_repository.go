package repository

import (
	"context"
	"errors"
	"fmt"

	gwerrors "github.com/scotthooker/commerce-stripe/errors"
	"github.com/scotthooker/commerce-stripe/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentRepository defines data-access operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	// Update writes payment only if its Version still matches the stored row,
	// then bumps payment.Version.
	Update(ctx context.Context, payment *models.Payment) error
}

// GormPaymentRepository implements PaymentRepository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Omit("PaymentMethod").Create(payment).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	// A deleted card still identifies the payment's owner.
	err := r.db.WithContext(ctx).
		Preload("PaymentMethod", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("PaymentMethod.Owner").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &p, nil
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("find payments for order %s: %w", orderID, err)
	}
	return payments, nil
}

func (r *GormPaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]interface{}{
			"state":           payment.State,
			"amount":          payment.Amount,
			"refunded_amount": payment.RefundedAmount,
			"remote_id":       payment.RemoteID,
			"authorized_at":   payment.AuthorizedAt,
			"captured_at":     payment.CapturedAt,
			"voided_at":       payment.VoidedAt,
			"version":         payment.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("update payment %s: %w", payment.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gwerrors.New(gwerrors.KindInvalidRequest, gwerrors.CodeConcurrentModification,
			fmt.Sprintf("Payment %s was modified concurrently.", payment.ID), nil)
	}
	payment.Version++
	return nil
}

// notFound maps gorm's missing-row error onto the domain not-found error.
func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gwerrors.New(gwerrors.KindInvalidRequest, gwerrors.CodeNotFound,
			fmt.Sprintf("%s %s not found.", what, id), err)
	}
	return fmt.Errorf("find %s %s: %w", what, id, err)
}
