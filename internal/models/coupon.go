package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

type Coupon struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"code"`
	Type           CouponType       `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"` // Montant max de réduction (percentage)
	MaxUses        int              `json:"max_uses"`                // 0 = illimité
	UsedCount      int              `json:"used_count"`
	StartsAt       *time.Time       `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (c *Coupon) Exhausted() bool {
	return c.MaxUses > 0 && c.UsedCount >= c.MaxUses
}

type CouponValidation struct {
	IsValid  bool            `json:"is_valid"`
	Message  string          `json:"message,omitempty"`
	Discount decimal.Decimal `json:"discount"`
	Type     CouponType      `json:"type,omitempty"`
	Code     string          `json:"code"`
}

type CouponRequest struct {
	Code           string           `json:"code" binding:"required"`
	Type           CouponType       `json:"type" binding:"required,oneof=percentage fixed"`
	Value          decimal.Decimal  `json:"value" binding:"required"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount"`
	MaxUses        int              `json:"max_uses" binding:"min=0"`
	StartsAt       *time.Time       `json:"starts_at"`
	ExpiresAt      *time.Time       `json:"expires_at"`
}

// CouponUpdate : seuls les champs renseignés sont modifiés
type CouponUpdate struct {
	IsActive  *bool      `json:"is_active"`
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
}
