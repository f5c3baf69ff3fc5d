package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"

	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/models"
)

func qrConfig(baseURL string, timeout time.Duration) config.QRConfig {
	return config.QRConfig{
		BaseURL: baseURL, BankCode: "970436", AccountNo: "0123456789",
		AccountName: "BOOKSTORE", Template: "compact2", Timeout: timeout,
	}
}

func TestGenerateQR(t *testing.T) {
	var gotPath, gotMemo, gotAmount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMemo = r.URL.Query().Get("addInfo")
		gotAmount = r.URL.Query().Get("amount")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	client := NewQRClient(qrConfig(srv.URL, time.Second))
	url, err := client.GenerateQR(context.Background(), 280000, "BKSORD2603011200ABCD")

	require.NoError(t, err)
	assert.Equal(t, "/970436-0123456789-compact2.png", gotPath)
	assert.Equal(t, "BKSORD2603011200ABCD", gotMemo)
	assert.Equal(t, "280000", gotAmount)
	assert.Contains(t, url, srv.URL)
}

func TestGenerateQRFailures(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		unavailable bool
	}{
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			unavailable: true,
		},
		{
			name:        "erreur serveur",
			handler:     func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			unavailable: true,
		},
		{
			name:        "requête refusée",
			handler:     func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) },
			unavailable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewQRClient(qrConfig(srv.URL, 50*time.Millisecond))
			_, err := client.GenerateQR(context.Background(), 1000, "BKS1")

			require.Error(t, err)
			assert.Equal(t, tt.unavailable, isUnavailable(err))
		})
	}
}

func isUnavailable(err error) bool {
	return err != nil && errors.Is(err, ErrUnavailable)
}

const succeededEvent = `{
	"id": "evt_1",
	"object": "event",
	"type": "payment_intent.succeeded",
	"data": {"object": {"id": "pi_123", "object": "payment_intent", "amount": 280000, "amount_received": 280000, "currency": "vnd", "status": "succeeded"}}
}`

func TestParseWebhookWithoutSecret(t *testing.T) {
	s := &StripeClient{}

	evt, err := s.ParseWebhook([]byte(succeededEvent), "")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", evt.IntentID)
	assert.Equal(t, models.GatewaySuccess, evt.Status)
	assert.Equal(t, int64(280000), evt.Amount)

	cb := evt.Callback()
	assert.Equal(t, "pi_123", cb.TransactionCode)
	assert.Equal(t, "280000", cb.Amount.String())
}

func TestParseWebhookSignature(t *testing.T) {
	s := &StripeClient{webhookSecret: "whsec_test"}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(succeededEvent),
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	evt, err := s.ParseWebhook(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", evt.IntentID)

	_, err = s.ParseWebhook([]byte(succeededEvent), "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	s := &StripeClient{}
	evt, err := s.ParseWebhook([]byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{}}}`), "")
	require.NoError(t, err)
	assert.Empty(t, evt.Status)
}
