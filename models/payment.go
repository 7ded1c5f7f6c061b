package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentState is the lifecycle state of a Payment.
type PaymentState string

// PaymentState constants.
const (
	PaymentStateNew                      PaymentState = "new"
	PaymentStateAuthorization            PaymentState = "authorization"
	PaymentStateAuthorizationVoided      PaymentState = "authorization_voided"
	PaymentStateCaptureCompleted         PaymentState = "capture_completed"
	PaymentStateCapturePartiallyRefunded PaymentState = "capture_partially_refunded"
	PaymentStateCaptureRefunded          PaymentState = "capture_refunded"
)

// IsCaptured reports whether funds have been captured and can be refunded.
func (s PaymentState) IsCaptured() bool {
	return s == PaymentStateCaptureCompleted || s == PaymentStateCapturePartiallyRefunded
}

// Payment is one attempt to move money for an order.
type Payment struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID         uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	PaymentMethodID uuid.UUID       `gorm:"type:uuid;index" json:"payment_method_id"`
	PaymentMethod   *PaymentMethod  `gorm:"foreignKey:PaymentMethodID" json:"-"`
	State           PaymentState    `gorm:"type:varchar(32);not null;index" json:"state"`
	Amount          decimal.Decimal `gorm:"type:numeric(19,6);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	RefundedAmount  decimal.Decimal `gorm:"type:numeric(19,6);not null;default:0" json:"refunded_amount"`
	RemoteID        *string         `gorm:"type:varchar(255);uniqueIndex" json:"remote_id,omitempty"`
	AuthorizedAt    *time.Time      `json:"authorized_at,omitempty"`
	CapturedAt      *time.Time      `json:"captured_at,omitempty"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	Version         int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Balance is the amount that can still be refunded.
func (p *Payment) Balance() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// GetRemoteID returns the provider charge id, or "" when none has been set.
func (p *Payment) GetRemoteID() string {
	if p.RemoteID == nil {
		return ""
	}
	return *p.RemoteID
}
