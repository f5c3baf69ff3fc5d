package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	CartID          uuid.UUID       `json:"cart_id"`
	ContactEmail    string          `json:"contact_email"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	BookID    uuid.UUID       `json:"book_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingAddress est copiée dans la commande (snapshot)
type ShippingAddress struct {
	Recipient string `json:"recipient" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	Line1     string `json:"line1" binding:"required"`
	Ward      string `json:"ward"`
	District  string `json:"district"`
	City      string `json:"city" binding:"required"`
}

type CheckoutRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" binding:"required"`
	ContactEmail    string          `json:"contact_email" binding:"omitempty,email"`
	CouponCode      string          `json:"coupon_code"`
	Provider        PaymentProvider `json:"provider"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CheckoutResult : la commande est créée même si l'initiation du paiement a échoué
type CheckoutResult struct {
	Order        *Order              `json:"order"`
	Payment      *PaymentTransaction `json:"payment,omitempty"`
	PaymentError string              `json:"payment_error,omitempty"`
}
