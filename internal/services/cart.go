package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

const (
	cartUpdated = "updated"
	cartCleared = "cleared"
)

type CartService struct {
	store     repository.Store
	pricing   *PricingService
	publisher Publisher // nil = pas de synchro temps réel
	now       func() time.Time
}

func NewCartService(store repository.Store, pricing *PricingService, publisher Publisher) *CartService {
	return &CartService{store: store, pricing: pricing, publisher: publisher, now: nowUTC}
}

// GetOrCreateActive : l'index unique partiel départage deux créations concurrentes
func (s *CartService) GetOrCreateActive(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.store.Carts().GetActive(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err)
	}

	now := s.now()
	cart = &models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		IsActive:  true,
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.store.Carts().Create(ctx, cart)
	if errors.Is(err, repository.ErrConflict) {
		cart, err = s.store.Carts().GetActive(ctx, userID)
	}
	if err != nil {
		return nil, internal(err)
	}
	return cart, nil
}

// AddItem incrémente la ligne existante ou en ajoute une, au prix courant
func (s *CartService) AddItem(ctx context.Context, userID string, bookID uuid.UUID, qty int) (*models.Cart, error) {
	if qty < 1 {
		return nil, apperr.FieldError("quantity", "La quantité doit être au moins 1")
	}
	return s.mutate(ctx, userID, cartUpdated, func(tx repository.Store, cart *models.Cart) error {
		existing, _ := cart.Item(bookID)
		return s.setQuantity(ctx, tx, cart, bookID, existing.Quantity+qty)
	})
}

// UpdateQuantity : qty <= 0 supprime la ligne
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, bookID uuid.UUID, qty int) (*models.Cart, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, bookID)
	}
	return s.mutate(ctx, userID, cartUpdated, func(tx repository.Store, cart *models.Cart) error {
		if _, ok := cart.Item(bookID); !ok {
			return apperr.NotFound("Livre absent du panier")
		}
		return s.setQuantity(ctx, tx, cart, bookID, qty)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, bookID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, userID, cartUpdated, func(tx repository.Store, cart *models.Cart) error {
		err := tx.Carts().DeleteItem(ctx, cart.ID, bookID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Livre absent du panier")
		}
		return err
	})
}

func (s *CartService) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	return s.mutate(ctx, userID, cartCleared, func(tx repository.Store, cart *models.Cart) error {
		return tx.Carts().ClearItems(ctx, cart.ID)
	})
}

// Quote chiffre le panier actif (prix courants, coupon optionnel)
func (s *CartService) Quote(ctx context.Context, userID, couponCode string) (*Quote, error) {
	cart, err := s.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.pricing.Quote(ctx, cart, couponCode)
}

// CleanupStale supprime les paniers actifs abandonnés ; les paniers commandés restent
func (s *CartService) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := s.store.Carts().DeleteStaleActive(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("🧹 %d panier(s) abandonné(s) supprimé(s)", n)
	}
	return n, nil
}

// mutate verrouille le panier actif, applique fn, met à jour updated_at puis notifie
func (s *CartService) mutate(ctx context.Context, userID, event string, fn func(tx repository.Store, cart *models.Cart) error) (*models.Cart, error) {
	if _, err := s.GetOrCreateActive(ctx, userID); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetActiveForUpdate(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			// Désactivé entre-temps par une commande
			return apperr.Conflict("Le panier vient d'être commandé, réessayez")
		}
		if err != nil {
			return err
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		return tx.Carts().Touch(ctx, cart.ID, s.now())
	})
	if err != nil {
		return nil, internal(err)
	}

	s.publish(ctx, userID, event)
	cart, err := s.store.Carts().GetActive(ctx, userID)
	if err != nil {
		return nil, internal(err)
	}
	return cart, nil
}

// setQuantity relit le livre et son stock en direct
func (s *CartService) setQuantity(ctx context.Context, tx repository.Store, cart *models.Cart, bookID uuid.UUID, qty int) error {
	book, err := tx.Books().Get(ctx, bookID)
	if err != nil {
		return notFound(err, "Livre introuvable")
	}
	if !book.IsActive {
		return apperr.FieldError("book_id", "Ce livre n'est plus disponible")
	}
	if book.Stock < qty {
		return apperr.InsufficientStock(book.ID.String(), book.Title, qty, book.Stock)
	}

	now := s.now()
	item := models.CartItem{
		ID:        uuid.New(),
		CartID:    cart.ID,
		BookID:    bookID,
		Quantity:  qty,
		UnitPrice: book.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, ok := cart.Item(bookID); ok {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
	}
	return tx.Carts().UpsertItem(ctx, &item)
}

func (s *CartService) publish(ctx context.Context, userID, event string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, CartChannel(userID), []byte(event)); err != nil {
		log.Printf("⚠️ Publication Redis panier échouée pour %s: %v", userID, err)
	}
}
