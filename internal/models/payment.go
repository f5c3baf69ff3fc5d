package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentProvider string

const (
	ProviderVietQR PaymentProvider = "vietqr"
	ProviderStripe PaymentProvider = "stripe"
)

func (p PaymentProvider) Valid() bool {
	return p == ProviderVietQR || p == ProviderStripe
}

func (p PaymentProvider) Method() string {
	if p == ProviderStripe {
		return "card"
	}
	return "bank_transfer"
}

// Motifs d'échec enregistrés ; le texte libre de la passerelle n'est jamais stocké
const (
	FailureAmountMismatch = "amount_mismatch"
	FailureDeclined       = "gateway_declined"
	FailureExpired        = "expired"
	FailureOrderCancelled = "order_cancelled"
)

type PaymentTransaction struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	Provider        PaymentProvider `json:"provider"`
	Method          string          `json:"method"`
	TransactionCode *string         `json:"transaction_code,omitempty"`
	Memo            string          `json:"memo"`
	QRURL           string          `json:"qr_url,omitempty"`
	ClientSecret    string          `json:"client_secret,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CallbackPayload est le contenu normalisé d'une notification de la passerelle
type CallbackPayload struct {
	TransactionCode string          `json:"transaction_code"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	PaidAt          *time.Time      `json:"paid_at"`
	Message         string          `json:"message"`
}

const (
	GatewaySuccess = "success"
	GatewayFailed  = "failed"
)

type InitiatePaymentRequest struct {
	Provider PaymentProvider `json:"provider"`
}

// PaymentTransition décrit un changement d'état effectué par un appel
type PaymentTransition struct {
	Payment    *PaymentTransaction `json:"payment"`
	Order      *Order              `json:"order"`
	Transition bool                `json:"transitioned"`
}
