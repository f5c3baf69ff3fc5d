package models

import "fmt"

// --- Commande ---

type OrderStatus string

const (
	OrderPending         OrderStatus = "Pending"
	OrderAwaitingPayment OrderStatus = "AwaitingPayment"
	OrderPaid            OrderStatus = "Paid"
	OrderShipped         OrderStatus = "Shipped"
	OrderCompleted       OrderStatus = "Completed"
	OrderCancelled       OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:         {OrderAwaitingPayment, OrderPaid, OrderCancelled},
	OrderAwaitingPayment: {OrderPaid, OrderCancelled},
	OrderPaid:            {OrderShipped, OrderCancelled},
	OrderShipped:         {OrderCompleted, OrderCancelled},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	switch st {
	case OrderPending, OrderAwaitingPayment, OrderPaid, OrderShipped, OrderCompleted, OrderCancelled:
		return st, nil
	}
	return "", fmt.Errorf("statut de commande inconnu: %q", s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CanTransitionTo est l'unique point de vérification des transitions de commande
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return contains(orderTransitions[s], next)
}

// --- Paiement ---

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentSuccess   PaymentStatus = "Success"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentCancelled PaymentStatus = "Cancelled"
	PaymentRefunded  PaymentStatus = "Refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentSuccess, PaymentFailed, PaymentCancelled},
	PaymentSuccess: {PaymentRefunded},
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	switch st {
	case PaymentPending, PaymentSuccess, PaymentFailed, PaymentCancelled, PaymentRefunded:
		return st, nil
	}
	return "", fmt.Errorf("statut de paiement inconnu: %q", s)
}

// IsTerminal : seul Pending est encore actif. Success n'accepte plus que le remboursement.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentPending
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return contains(paymentTransitions[s], next)
}

// --- Expédition ---

type ShipmentStatus string

const (
	ShipmentCreated   ShipmentStatus = "Created"
	ShipmentAssigned  ShipmentStatus = "Assigned"
	ShipmentPickedUp  ShipmentStatus = "PickedUp"
	ShipmentInTransit ShipmentStatus = "InTransit"
	ShipmentDelivered ShipmentStatus = "Delivered"
	ShipmentCancelled ShipmentStatus = "Cancelled"
)

var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentCreated:   {ShipmentAssigned, ShipmentCancelled},
	ShipmentAssigned:  {ShipmentAssigned, ShipmentPickedUp, ShipmentCancelled},
	ShipmentPickedUp:  {ShipmentInTransit, ShipmentDelivered, ShipmentCancelled},
	ShipmentInTransit: {ShipmentDelivered, ShipmentCancelled},
}

func ParseShipmentStatus(s string) (ShipmentStatus, error) {
	st := ShipmentStatus(s)
	switch st {
	case ShipmentCreated, ShipmentAssigned, ShipmentPickedUp, ShipmentInTransit, ShipmentDelivered, ShipmentCancelled:
		return st, nil
	}
	return "", fmt.Errorf("statut d'expédition inconnu: %q", s)
}

func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentDelivered || s == ShipmentCancelled
}

// CanTransitionTo : Assigned → Assigned permet de réaffecter un livreur
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	return contains(shipmentTransitions[s], next)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
