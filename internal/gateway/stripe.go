package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/webhook"

	"bookstore_back_end/internal/models"
)

var ErrStripeDisabled = errors.New("paiement par carte non configuré")

// Le đồng n'a pas de sous-unité : les montants Stripe sont en đồng
const stripeCurrency = "vnd"

type CardIntent struct {
	ID           string
	ClientSecret string
}

// CardProvider : paiement par carte (PaymentIntent, remboursement, webhook)
type CardProvider interface {
	CreateIntent(ctx context.Context, amount int64, orderNumber string, metadata map[string]string) (*CardIntent, error)
	// Refund : une même idempotencyKey rejouée renvoie le remboursement déjà créé
	Refund(ctx context.Context, intentID string, amount int64, idempotencyKey string) (string, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

type WebhookEvent struct {
	Type     string
	IntentID string
	Status   string // models.GatewaySuccess | models.GatewayFailed, vide si ignoré
	Amount   int64
	Message  string
}

// Callback convertit l'événement en notification normalisée
func (e *WebhookEvent) Callback() models.CallbackPayload {
	now := time.Now().UTC()
	return models.CallbackPayload{
		TransactionCode: e.IntentID,
		Status:          e.Status,
		Amount:          decimal.NewFromInt(e.Amount),
		PaidAt:          &now,
		Message:         e.Message,
	}
}

type StripeClient struct {
	webhookSecret string
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	stripe.Key = secretKey
	return &StripeClient{webhookSecret: webhookSecret}
}

func (s *StripeClient) CreateIntent(_ context.Context, amount int64, orderNumber string, metadata map[string]string) (*CardIntent, error) {
	if stripe.Key == "" {
		return nil, ErrStripeDisabled
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(stripeCurrency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Commande " + orderNumber),
		Metadata:    metadata,
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 500 {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	log.Printf("💳 PaymentIntent créé: %s (%d VND) pour %s", intent.ID, amount, orderNumber)
	return &CardIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (s *StripeClient) Refund(_ context.Context, intentID string, amount int64, idempotencyKey string) (string, error) {
	if stripe.Key == "" {
		return "", ErrStripeDisabled
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amount),
		Reason:        stripe.String("requested_by_customer"),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	r, err := refund.New(params)
	if err != nil {
		return "", err
	}
	log.Printf("✅ Remboursement Stripe: %s (intent %s)", r.ID, intentID)
	return r.ID, nil
}

// ParseWebhook vérifie la signature si un secret est configuré (sinon mode test)
func (s *StripeClient) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var event stripe.Event
	if s.webhookSecret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET, mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("JSON invalide: %w", err)
		}
	} else {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("signature invalide: %w", err)
		}
	}

	out := &WebhookEvent{Type: string(event.Type)}
	switch event.Type {
	case "payment_intent.succeeded":
		out.Status = models.GatewaySuccess
	case "payment_intent.payment_failed":
		out.Status = models.GatewayFailed
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, errors.New("événement sans données")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("décodage PaymentIntent: %w", err)
	}
	out.IntentID = pi.ID
	out.Amount = pi.Amount
	if out.Status == models.GatewaySuccess && pi.AmountReceived > 0 {
		out.Amount = pi.AmountReceived
	}
	if pi.LastPaymentError != nil {
		out.Message = pi.LastPaymentError.Msg
	}
	return out, nil
}
