package repository

import (
	"context"
	"fmt"

	"github.com/scotthooker/commerce-stripe/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountRepository persists payment accounts and their provider customer binding.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "account", id)
	}
	return &a, nil
}

func (r *GormAccountRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return fmt.Errorf("bind customer %s to account %s: %w", customerID, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "account", id)
	}
	return nil
}
