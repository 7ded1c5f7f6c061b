package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the local owner of payment methods. StripeCustomerID binds it to
// the provider-side customer and is set lazily on the first saved card.
type Account struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email            string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	StripeCustomerID *string   `gorm:"type:varchar(255);uniqueIndex" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "payment_accounts"
}

// RemoteCustomerID returns the bound provider customer id, or "".
func (a *Account) RemoteCustomerID() string {
	if a == nil || a.StripeCustomerID == nil {
		return ""
	}
	return *a.StripeCustomerID
}
