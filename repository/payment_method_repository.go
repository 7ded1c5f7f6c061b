package repository

import (
	"context"
	"fmt"

	"github.com/scotthooker/commerce-stripe/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentMethodRepository defines data-access operations for stored cards.
type PaymentMethodRepository interface {
	Create(ctx context.Context, pm *models.PaymentMethod) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormPaymentMethodRepository struct {
	db *gorm.DB
}

func NewGormPaymentMethodRepository(db *gorm.DB) PaymentMethodRepository {
	return &GormPaymentMethodRepository{db: db}
}

func (r *GormPaymentMethodRepository) Create(ctx context.Context, pm *models.PaymentMethod) error {
	if err := r.db.WithContext(ctx).Omit("Owner").Create(pm).Error; err != nil {
		return fmt.Errorf("create payment method: %w", err)
	}
	return nil
}

// FindByID loads the payment method together with its owning account.
func (r *GormPaymentMethodRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	if err := r.db.WithContext(ctx).Preload("Owner").First(&pm, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "payment method", id)
	}
	return &pm, nil
}

func (r *GormPaymentMethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.PaymentMethod{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete payment method %s: %w", id, err)
	}
	return nil
}
