package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CardBrand is the canonical card type stored on a PaymentMethod.
type CardBrand string

const (
	CardBrandAmex       CardBrand = "amex"
	CardBrandDinersClub CardBrand = "dinersclub"
	CardBrandDiscover   CardBrand = "discover"
	CardBrandJCB        CardBrand = "jcb"
	CardBrandMaestro    CardBrand = "maestro"
	CardBrandMastercard CardBrand = "mastercard"
	CardBrandUnionPay   CardBrand = "unionpay"
	CardBrandVisa       CardBrand = "visa"
)

// PaymentMethod is a tokenized, reusable card.
type PaymentMethod struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID      *uuid.UUID     `gorm:"type:uuid;index" json:"owner_id,omitempty"`
	Owner        *Account       `gorm:"foreignKey:OwnerID" json:"-"`
	RemoteID     string         `gorm:"type:varchar(255);not null;index" json:"remote_id"`
	CardBrand    CardBrand      `gorm:"type:varchar(20);not null" json:"card_brand"`
	CardLastFour string         `gorm:"type:varchar(4);not null" json:"card_last_four"`
	CardExpMonth int            `gorm:"not null" json:"card_exp_month"`
	CardExpYear  int            `gorm:"not null" json:"card_exp_year"`
	ExpiresAt    time.Time      `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsExpired reports whether the card can no longer be charged at now.
func (pm *PaymentMethod) IsExpired(now time.Time) bool {
	return !now.Before(pm.ExpiresAt)
}

// CardExpiresAt returns the last instant of the expiration month, in UTC.
func CardExpiresAt(month, year int) time.Time {
	// time.Date normalizes month 13 into January of the next year.
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.Add(-time.Nanosecond)
}
