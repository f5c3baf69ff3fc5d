// Package memory implémente repository.Store en mémoire. Utilisé par les tests et avec
// STORE_DRIVER=memory. Les transactions travaillent sur une copie de l'état, publiée au commit.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type state struct {
	books         map[uuid.UUID]models.Book
	carts         map[uuid.UUID]models.Cart
	coupons       map[string]models.Coupon
	orders        map[uuid.UUID]models.Order
	payments      map[uuid.UUID]models.PaymentTransaction
	shipments     map[uuid.UUID]models.Shipment
	comments      map[uuid.UUID]models.Comment
	notifications map[uuid.UUID]models.Notification
}

func newState() *state {
	return &state{
		books:         map[uuid.UUID]models.Book{},
		carts:         map[uuid.UUID]models.Cart{},
		coupons:       map[string]models.Coupon{},
		orders:        map[uuid.UUID]models.Order{},
		payments:      map[uuid.UUID]models.PaymentTransaction{},
		shipments:     map[uuid.UUID]models.Shipment{},
		comments:      map[uuid.UUID]models.Comment{},
		notifications: map[uuid.UUID]models.Notification{},
	}
}

func cloneMap[K comparable, V any](m map[K]V, cp func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = cp(v)
	}
	return out
}

func same[V any](v V) V { return v }

func copyCart(c models.Cart) models.Cart {
	c.Items = append([]models.CartItem(nil), c.Items...)
	return c
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (s *state) clone() *state {
	return &state{
		books:         cloneMap(s.books, same[models.Book]),
		carts:         cloneMap(s.carts, copyCart),
		coupons:       cloneMap(s.coupons, same[models.Coupon]),
		orders:        cloneMap(s.orders, copyOrder),
		payments:      cloneMap(s.payments, same[models.PaymentTransaction]),
		shipments:     cloneMap(s.shipments, same[models.Shipment]),
		comments:      cloneMap(s.comments, same[models.Comment]),
		notifications: cloneMap(s.notifications, same[models.Notification]),
	}
}

type db struct {
	mu    sync.Mutex
	state *state
}

type Store struct {
	db *db
	tx *state // non nil dans WithTx : le verrou est déjà tenu
}

func New() *Store {
	return &Store{db: &db{state: newState()}}
}

// run exécute fn sur l'état courant, sous verrou hors transaction
func (s *Store) run(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.state)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	working := s.db.state.clone()
	if err := fn(&Store{db: s.db, tx: working}); err != nil {
		return err
	}
	s.db.state = working
	return nil
}

func (s *Store) Books() repository.BookRepository                 { return bookRepo{s} }
func (s *Store) Carts() repository.CartRepository                 { return cartRepo{s} }
func (s *Store) Coupons() repository.CouponRepository             { return couponRepo{s} }
func (s *Store) Orders() repository.OrderRepository               { return orderRepo{s} }
func (s *Store) Payments() repository.PaymentRepository           { return paymentRepo{s} }
func (s *Store) Shipments() repository.ShipmentRepository         { return shipmentRepo{s} }
func (s *Store) Comments() repository.CommentRepository           { return commentRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
