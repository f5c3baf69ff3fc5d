package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/services"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	// L'origine est déjà filtrée par CORS et le bearer est obligatoire
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NotificationsSocket relaie en temps réel les notifications de commande et les changements du panier
// GET /api/ws/notifications
func (h *Handler) NotificationsSocket(c *gin.Context) {
	if h.Subscriber == nil {
		_ = c.Error(apperr.Retryable("Notifications temps réel indisponibles", nil))
		return
	}
	userID := middleware.UserID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := h.Subscriber.Subscribe(ctx, services.NotificationChannel(userID), services.CartChannel(userID))
	if err != nil {
		log.Printf("❌ Erreur abonnement notifications %s: %v", userID, err)
		_ = c.Error(apperr.Retryable("Notifications temps réel indisponibles", err))
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Erreur upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	// Lecture : seule la fermeture côté client nous intéresse
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeJSON(conn, gin.H{"type": "connected", "message": "Notifications temps réel activées"}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, open := <-sub.Messages():
			if !open {
				return
			}
			if err := h.relay(ctx, conn, userID, payload); err != nil {
				log.Printf("❌ Erreur envoi WebSocket: %v", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// relay : les messages panier ("updated", "cleared") sont remplacés par l'état courant du panier,
// les notifications JSON sont transmises telles quelles
func (h *Handler) relay(ctx context.Context, conn *websocket.Conn, userID string, payload []byte) error {
	msg := string(payload)
	if msg != "updated" && msg != "cleared" {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, payload)
	}

	cart, err := h.Carts.GetOrCreateActive(ctx, userID)
	if err != nil {
		log.Printf("⚠️ Panier indisponible pour %s: %v", userID, err)
		return h.writeJSON(conn, gin.H{"type": "cart_updated"})
	}
	return h.writeJSON(conn, gin.H{"type": "cart_updated", "cart": cart, "count": len(cart.Items)})
}

func (h *Handler) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
