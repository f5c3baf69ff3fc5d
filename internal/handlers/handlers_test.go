package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/repository/memory"
	"bookstore_back_end/internal/services"
)

var testSecret = []byte("handlers-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		deps   map[string]string
		code   int
		status string
	}{
		{"aucune dépendance", nil, http.StatusOK, "ok"},
		{"tout est up", map[string]string{"postgres": "up", "redis": "up"}, http.StatusOK, "ok"},
		{"redis down", map[string]string{"postgres": "up", "redis": "down"}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", Health(func(context.Context) map[string]string { return tt.deps }))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"`+tt.status+`"`)
		})
	}
}

func TestNotificationsSocket(t *testing.T) {
	store := memory.New()
	broker := services.NewLocalBroker()
	h := &Handler{
		Carts:      services.NewCartService(store, nil, broker),
		Subscriber: broker,
	}

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/ws", middleware.TokenFromQuery(), middleware.AuthRequired(testSecret), h.NotificationsSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, services.NotificationChannel("u1"), []byte(`{"type":"OrderPaid"}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"OrderPaid"}`, string(msg))

	require.NoError(t, broker.Publish(ctx, services.CartChannel("u1"), []byte("updated")))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	var cart struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(msg, &cart))
	assert.Equal(t, "cart_updated", cart.Type)
	assert.Equal(t, 0, cart.Count)
}

func TestNotificationsSocketRequiresToken(t *testing.T) {
	h := &Handler{Subscriber: services.NewLocalBroker()}
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/ws", middleware.TokenFromQuery(), middleware.AuthRequired(testSecret), h.NotificationsSocket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
