package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/handlers"
	"bookstore_back_end/internal/handlers/admin"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository/memory"
	"bookstore_back_end/internal/services"
	"bookstore_back_end/internal/tracking"
)

var (
	testSecret     = []byte("routes-secret")
	callbackSecret = "cb-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQR struct{}

func (fakeQR) GenerateQR(_ context.Context, amount int64, memo string) (string, error) {
	return fmt.Sprintf("https://qr.test/img.png?amount=%d&addInfo=%s", amount, memo), nil
}

type server struct {
	router     *gin.Engine
	store      *memory.Store
	dispatcher *services.Dispatcher
	audit      *audit.MemoryLogger
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.New()
	auditLog := audit.NewMemoryLogger()
	broker := services.NewLocalBroker()
	dispatcher := services.NewDispatcher(services.NewInAppSink(store.Notifications()), services.NewPushSink(broker))

	pricing := services.NewPricingService(store, services.NewShippingPolicy(config.ShippingConfig{
		BaseFee: 30000, IncludedGrams: 1000, StepGrams: 500, StepFee: 5000, FreeThreshold: 500000,
	}))
	carts := services.NewCartService(store, pricing, broker)
	shipments := services.NewShipmentService(store, tracking.NewMemoryStore(), dispatcher, auditLog)
	payments := services.NewPaymentService(store, services.PaymentDeps{
		QR:         fakeQR{},
		Shipments:  shipments,
		Dispatcher: dispatcher,
		Audit:      auditLog,
		MemoPrefix: "BKS",
	})
	orders := services.NewOrderService(store, pricing, payments, dispatcher, auditLog, broker)
	catalog := services.NewCatalogService(store, nil, services.NewBookCache(store), auditLog)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	RegisterRoutes(r, Deps{
		API: &handlers.Handler{
			Carts:         carts,
			Orders:        orders,
			Payments:      payments,
			Shipments:     shipments,
			Catalog:       catalog,
			Comments:      services.NewCommentService(store),
			Invoices:      services.NewInvoiceService(store, config.QRConfig{BankCode: "970436", AccountNo: "001"}, "BKS", nil, nil),
			Notifications: services.NewNotificationService(store),
			Subscriber:    broker,
		},
		Admin: &admin.Handler{
			Catalog:     catalog,
			Pricing:     pricing,
			Shipments:   shipments,
			Payments:    payments,
			Audit:       auditLog,
			ExpireAfter: 15 * time.Minute,
		},
		JWTSecret:      testSecret,
		CallbackSecret: callbackSecret,
		Health:         func(context.Context) map[string]string { return map[string]string{"postgres": "up"} },
	})
	return &server{router: r, store: store, dispatcher: dispatcher, audit: auditLog}
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   userID + "@example.com",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

// call envoie une requête JSON ; tok vide = anonyme
func (s *server) call(t *testing.T, method, path, tok string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var address = gin.H{
	"recipient": "Trần Thị B",
	"phone":     "0912345678",
	"line1":     "5 Nguyễn Huệ",
	"city":      "Hồ Chí Minh",
}

func (s *server) createBook(t *testing.T, adminTok string, price int64) models.Book {
	t.Helper()
	w := s.call(t, http.MethodPost, "/api/admin/books", adminTok, gin.H{
		"title": "Số đỏ", "author": "Vũ Trọng Phụng", "price": price, "stock": 5, "weight_grams": 300,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Book](t, w)
}

func TestCheckoutToDeliveryOverHTTP(t *testing.T) {
	s := newServer(t)
	adminTok := token(t, "admin-1", middleware.RoleAdmin)
	userTok := token(t, "u1", middleware.RoleCustomer)
	shipperTok := token(t, "shipper-1", middleware.RoleShipper)

	book := s.createBook(t, adminTok, 100000)

	w := s.call(t, http.MethodPost, "/api/cart/items", userTok, gin.H{"book_id": book.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.call(t, http.MethodGet, "/api/cart/quote", userTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	quote := decode[services.Quote](t, w)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(230000)), quote.Total.String())

	w = s.call(t, http.MethodPost, "/api/orders", userTok, gin.H{"shipping_address": address})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[models.CheckoutResult](t, w)
	require.NotNil(t, res.Payment)
	assert.Equal(t, models.OrderAwaitingPayment, res.Order.Status)
	assert.Equal(t, "BKS"+res.Order.OrderNumber, res.Payment.Memo)

	callback := gin.H{"status": "success", "amount": res.Order.Total, "message": "CK " + res.Payment.Memo}
	w = s.call(t, http.MethodPost, "/api/payments/callback", "", callback)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "secret partagé manquant")

	w = s.call(t, http.MethodPost, "/api/payments/callback", "", callback, middleware.CallbackSecretHeader, callbackSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[models.PaymentTransition](t, w).Transition)

	w = s.call(t, http.MethodPost, "/api/payments/callback", "", callback, middleware.CallbackSecretHeader, callbackSecret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.PaymentTransition](t, w).Transition, "rejeu idempotent")

	w = s.call(t, http.MethodGet, "/api/orders/"+res.Order.ID.String(), userTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderPaid, decode[models.Order](t, w).Status)

	sh, err := s.store.Shipments().GetByOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	shipPath := "/api/shipments/" + sh.ID.String()

	w = s.call(t, http.MethodPatch, shipPath+"/status", userTok, gin.H{"status": "PickedUp"})
	assert.Equal(t, http.StatusForbidden, w.Code, "un client n'est pas livreur")

	w = s.call(t, http.MethodPost, "/api/admin/shipments/"+sh.ID.String()+"/assign", adminTok, gin.H{"shipper_id": "shipper-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, st := range []string{"PickedUp", "InTransit"} {
		w = s.call(t, http.MethodPatch, shipPath+"/status", shipperTok, gin.H{"status": st, "latitude": 10.77, "longitude": 106.70})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = s.call(t, http.MethodPost, shipPath+"/points", shipperTok, gin.H{"latitude": 10.80, "longitude": 106.66})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.call(t, http.MethodPatch, shipPath+"/status", shipperTok, gin.H{"status": "Delivered"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.call(t, http.MethodGet, "/api/shipments/track/"+sh.TrackingCode, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[models.TrackingInfo](t, w)
	assert.Equal(t, models.ShipmentDelivered, info.Shipment.Status)
	assert.Len(t, info.Points, 3)

	w = s.call(t, http.MethodGet, "/api/orders/"+res.Order.ID.String(), userTok, nil)
	assert.Equal(t, models.OrderCompleted, decode[models.Order](t, w).Status)

	s.dispatcher.Wait()
	w = s.call(t, http.MethodGet, "/api/notifications", userTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notifs := decode[struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}](t, w)
	assert.Len(t, notifs.Notifications, 4)
	assert.Equal(t, 4, notifs.Unread)

	w = s.call(t, http.MethodPatch, "/api/notifications/"+notifs.Notifications[0].ID.String()+"/read", userTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.call(t, http.MethodGet, "/api/admin/audit/order/"+res.Order.ID.String(), adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)
}

func TestCheckoutValidationOverHTTP(t *testing.T) {
	s := newServer(t)
	userTok := token(t, "u1", middleware.RoleCustomer)

	w := s.call(t, http.MethodPost, "/api/orders", userTok, gin.H{
		"shipping_address": gin.H{"recipient": "A", "line1": "x", "city": "Huế"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, w)
	assert.Contains(t, body.Fields, "shipping_address.phone")

	w = s.call(t, http.MethodPost, "/api/orders", userTok, gin.H{"shipping_address": address})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "panier vide")
	assert.Contains(t, w.Body.String(), `"cart"`)
}

func TestAccessControl(t *testing.T) {
	s := newServer(t)
	userTok := token(t, "u1", middleware.RoleCustomer)

	tests := []struct {
		name   string
		method string
		path   string
		tok    string
		want   int
	}{
		{"panier anonyme", http.MethodGet, "/api/cart", "", http.StatusUnauthorized},
		{"admin par un client", http.MethodPost, "/api/admin/payments/expire", userTok, http.StatusForbidden},
		{"identifiant invalide", http.MethodGet, "/api/orders/abc", userTok, http.StatusBadRequest},
		{"commande inconnue", http.MethodGet, "/api/orders/" + uuid.NewString(), userTok, http.StatusNotFound},
		{"catalogue public", http.MethodGet, "/api/books", "", http.StatusOK},
		{"suivi inconnu", http.MethodGet, "/api/shipments/track/BKS-XXXXXXXXXX", "", http.StatusNotFound},
		{"santé", http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.call(t, tt.method, tt.path, tt.tok, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCancelAndInvoiceOverHTTP(t *testing.T) {
	s := newServer(t)
	adminTok := token(t, "admin-1", middleware.RoleAdmin)
	userTok := token(t, "u1", middleware.RoleCustomer)
	otherTok := token(t, "u2", middleware.RoleCustomer)

	book := s.createBook(t, adminTok, 50000)
	w := s.call(t, http.MethodPost, "/api/cart/items", userTok, gin.H{"book_id": book.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.call(t, http.MethodPost, "/api/orders", userTok, gin.H{"shipping_address": address})
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[models.CheckoutResult](t, w)
	orderPath := "/api/orders/" + res.Order.ID.String()

	w = s.call(t, http.MethodGet, orderPath+"/invoice", userTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), res.Order.OrderNumber)

	w = s.call(t, http.MethodPost, orderPath+"/cancel", otherTok, gin.H{"reason": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code, "commande d'un autre client")

	w = s.call(t, http.MethodPost, orderPath+"/cancel", userTok, gin.H{"reason": "Changement d'avis"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.OrderCancelled, decode[models.Order](t, w).Status)

	w = s.call(t, http.MethodGet, "/api/books/"+book.ID.String(), "", nil)
	assert.Equal(t, 5, decode[models.Book](t, w).Stock, "stock libéré")

	w = s.call(t, http.MethodPost, orderPath+"/payments", userTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "commande annulée")
}
