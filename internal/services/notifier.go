package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bookstore_back_end/internal/models"
)

type EventType string

const (
	EventOrderCreated   EventType = "OrderCreated"
	EventOrderPaid      EventType = "OrderPaid"
	EventOrderShipped   EventType = "OrderShipped"
	EventOrderDelivered EventType = "OrderDelivered"
	EventOrderCancelled EventType = "OrderCancelled"
	EventPaymentFailed  EventType = "PaymentFailed"
)

// Event est émis après commit, jamais depuis une transaction
type Event struct {
	Type       EventType                  `json:"type"`
	Order      models.Order               `json:"order"`
	Payment    *models.PaymentTransaction `json:"payment,omitempty"`
	Reason     string                     `json:"reason,omitempty"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

func NewEvent(t EventType, order models.Order) Event {
	return Event{Type: t, Order: order, OccurredAt: nowUTC()}
}

// Title et Message alimentent l'e-mail, le push et la notification in-app
func (e Event) Title() string {
	switch e.Type {
	case EventOrderCreated:
		return "📦 Commande enregistrée"
	case EventOrderPaid:
		return "✅ Paiement confirmé"
	case EventOrderShipped:
		return "📦 Commande expédiée"
	case EventOrderDelivered:
		return "🎉 Commande livrée"
	case EventOrderCancelled:
		return "❌ Commande annulée"
	case EventPaymentFailed:
		return "⚠️ Paiement refusé"
	default:
		return "📋 Mise à jour de votre commande"
	}
}

func (e Event) Message() string {
	n := e.Order.OrderNumber
	switch e.Type {
	case EventOrderCreated:
		return fmt.Sprintf("Votre commande %s (%s) a bien été enregistrée.", n, formatVND(e.Order.Total))
	case EventOrderPaid:
		return fmt.Sprintf("Le paiement de la commande %s a été confirmé. Nous préparons votre colis.", n)
	case EventOrderShipped:
		return fmt.Sprintf("Bonne nouvelle ! La commande %s est en route.", n)
	case EventOrderDelivered:
		return fmt.Sprintf("La commande %s a été livrée.", n)
	case EventOrderCancelled:
		if e.Reason != "" {
			return fmt.Sprintf("La commande %s a été annulée : %s.", n, e.Reason)
		}
		return fmt.Sprintf("La commande %s a été annulée.", n)
	case EventPaymentFailed:
		return fmt.Sprintf("Le paiement de la commande %s n'a pas abouti. Vous pouvez réessayer.", n)
	default:
		return fmt.Sprintf("Le statut de la commande %s a été mis à jour.", n)
	}
}

// Sink reçoit les événements ; une erreur est journalisée par le Dispatcher
type Sink interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// Dispatcher distribue chaque événement à tous les sinks, chacun dans sa goroutine
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: 15 * time.Second}
}

func (d *Dispatcher) Dispatch(e Event) {
	if d == nil {
		return
	}
	for _, s := range d.sinks {
		d.wg.Add(1)
		go d.run(s, e)
	}
}

func (d *Dispatcher) run(s Sink, e Event) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panique dans le sink %s (%s): %v", s.Name(), e.Type, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := s.Handle(ctx, e); err != nil {
		log.Printf("⚠️ Notification %s via %s échouée pour %s: %v", e.Type, s.Name(), e.Order.OrderNumber, err)
	}
}

// Wait bloque jusqu'à la fin des envois en cours
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
