package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

const orderNumberAttempts = 5

type OrderService struct {
	store      repository.Store
	pricing    *PricingService
	payments   *PaymentService
	dispatcher *Dispatcher
	audit      audit.Logger
	publisher  Publisher
	now        func() time.Time
}

func NewOrderService(store repository.Store, pricing *PricingService, payments *PaymentService,
	dispatcher *Dispatcher, auditLog audit.Logger, publisher Publisher) *OrderService {
	return &OrderService{
		store:      store,
		pricing:    pricing,
		payments:   payments,
		dispatcher: dispatcher,
		audit:      auditLog,
		publisher:  publisher,
		now:        nowUTC,
	}
}

// Checkout transforme le panier actif en commande, puis lance le paiement.
// La commande est conservée même si l'initiation du paiement échoue.
func (s *OrderService) Checkout(ctx context.Context, userID, email string, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	provider := req.Provider
	if provider == "" {
		provider = models.ProviderVietQR
	}
	if !provider.Valid() {
		return nil, apperr.FieldError("provider", "Fournisseur de paiement inconnu")
	}
	contact := strings.TrimSpace(req.ContactEmail)
	if contact == "" {
		contact = email
	}

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := s.createOrder(ctx, tx, userID, contact, req)
		order = o
		return err
	})
	if err != nil {
		return nil, internal(err)
	}

	log.Printf("📦 Commande %s créée pour %s (%s)", order.OrderNumber, userID, formatVND(order.Total))
	s.record(ctx, audit.NewEntry(audit.ResourceOrder, order.ID.String(), audit.ActionOrderCreate, userID, nil, string(order.Status)))
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, CartChannel(userID), []byte(cartCleared)); err != nil {
			log.Printf("⚠️ Publication Redis panier échouée pour %s: %v", userID, err)
		}
	}
	s.dispatcher.Dispatch(NewEvent(EventOrderCreated, *order))

	result := &models.CheckoutResult{Order: order}
	payment, err := s.payments.initiate(ctx, order, provider)
	if err != nil {
		log.Printf("⚠️ Initiation du paiement échouée pour %s: %v", order.OrderNumber, err)
		result.PaymentError = paymentErrorMessage(err)
		return result, nil
	}
	result.Payment = payment

	if fresh, err := s.store.Orders().Get(ctx, order.ID); err == nil {
		result.Order = fresh
	}
	return result, nil
}

func paymentErrorMessage(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Message
	}
	return apperr.GenericMessage
}

func (s *OrderService) createOrder(ctx context.Context, tx repository.Store, userID, contact string, req models.CheckoutRequest) (*models.Order, error) {
	cart, err := tx.Carts().GetActiveForUpdate(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.FieldError("cart", "Le panier est vide")
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperr.FieldError("cart", "Le panier est vide")
	}

	// Verrouillage dans un ordre stable pour éviter les interblocages
	items := append([]models.CartItem(nil), cart.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].BookID.String() < items[j].BookID.String() })

	books := make(map[uuid.UUID]*models.Book, len(items))
	for _, it := range items {
		b, err := tx.Books().GetForUpdate(ctx, it.BookID)
		if err != nil {
			return nil, notFound(err, "Livre introuvable")
		}
		if !b.IsActive {
			return nil, apperr.FieldError("book_id", "Le livre « "+b.Title+" » n'est plus disponible")
		}
		if b.Stock < it.Quantity {
			return nil, apperr.InsufficientStock(b.ID.String(), b.Title, it.Quantity, b.Stock)
		}
		books[b.ID] = b
	}

	quote, err := s.pricing.bind(tx).price(ctx, items, books, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if quote.Coupon != nil && !quote.Coupon.IsValid {
		return nil, apperr.BadRequest(quote.Coupon.Message)
	}

	now := s.now()
	number, err := s.nextOrderNumber(ctx, tx, now)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		UserID:          userID,
		CartID:          cart.ID,
		ContactEmail:    contact,
		ShippingAddress: req.ShippingAddress,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		ShippingFee:     quote.ShippingFee,
		Total:           quote.Total,
		Status:          models.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if quote.Coupon != nil {
		order.CouponCode = quote.Coupon.Code
	}
	for _, l := range quote.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			BookID:    l.BookID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	if err := tx.Orders().Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("Une commande existe déjà pour ce panier")
		}
		return nil, err
	}

	for _, it := range order.Items {
		err := tx.Books().AdjustStock(ctx, it.BookID, -it.Quantity)
		if errors.Is(err, repository.ErrConflict) {
			b := books[it.BookID]
			return nil, apperr.InsufficientStock(b.ID.String(), b.Title, it.Quantity, b.Stock)
		}
		if err != nil {
			return nil, err
		}
	}

	if order.CouponCode != "" {
		c, err := tx.Coupons().GetByCode(ctx, order.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := tx.Coupons().IncrementUsage(ctx, c.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperr.BadRequest("Ce code promo a atteint sa limite d'utilisation")
			}
			return nil, err
		}
	}

	if err := tx.Carts().Deactivate(ctx, cart.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// nextOrderNumber vérifie l'unicité avant insertion (une violation annulerait la transaction)
func (s *OrderService) nextOrderNumber(ctx context.Context, tx repository.Store, now time.Time) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		n, err := orderNumber(now)
		if err != nil {
			return "", err
		}
		exists, err := tx.Orders().NumberExists(ctx, n)
		if err != nil {
			return "", err
		}
		if !exists {
			return n, nil
		}
	}
	return "", apperr.Conflict("Impossible de générer un numéro de commande, réessayez")
}

func (s *OrderService) List(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, internal(err)
	}
	return orders, nil
}

// Get : propriétaire ou admin ; une commande d'un autre client est « introuvable »
func (s *OrderService) Get(ctx context.Context, id uuid.UUID, userID string, isAdmin bool) (*models.Order, error) {
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Commande introuvable")
	}
	if !isAdmin && o.UserID != userID {
		return nil, apperr.NotFound("Commande introuvable")
	}
	return o, nil
}

// Cancel : libère le stock, annule ou rembourse le paiement, annule l'expédition
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID, actor string, isAdmin bool, reason string) (*models.Order, error) {
	if _, err := s.Get(ctx, id, actor, isAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Annulée par le client"
		if isAdmin {
			reason = "Annulée par l'administration"
		}
	}

	var before models.OrderStatus
	var refunds []string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "Commande introuvable")
		}
		if !o.Status.CanTransitionTo(models.OrderCancelled) {
			return apperr.Conflict("La commande ne peut plus être annulée (statut " + string(o.Status) + ")")
		}
		before = o.Status
		if err := tx.Orders().TransitionStatus(ctx, o.ID, o.Status, models.OrderCancelled, reason); err != nil {
			return err
		}
		if err := releaseOrder(ctx, tx, o); err != nil {
			return err
		}
		if err := s.cancelShipment(ctx, tx, o.ID); err != nil {
			return err
		}
		refunds, err = s.payments.settleForCancel(ctx, tx, o, actor)
		return err
	})
	logUnrecordedRefunds(refunds, err)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("La commande a changé entre-temps, réessayez")
		}
		return nil, internal(err)
	}

	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	log.Printf("❌ Commande %s annulée (%s)", o.OrderNumber, reason)
	s.record(ctx, audit.NewEntry(audit.ResourceOrder, id.String(), audit.ActionOrderCancel, actor, string(before), string(o.Status)))

	evt := NewEvent(EventOrderCancelled, *o)
	evt.Reason = reason
	s.dispatcher.Dispatch(evt)
	return o, nil
}

func (s *OrderService) cancelShipment(ctx context.Context, tx repository.Store, orderID uuid.UUID) error {
	sh, err := tx.Shipments().GetByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sh.Status.IsTerminal() {
		return nil
	}
	sh.Status = models.ShipmentCancelled
	sh.UpdatedAt = s.now()
	return tx.Shipments().Update(ctx, sh)
}

// releaseOrder remet le stock et l'usage du coupon d'une commande annulée
func releaseOrder(ctx context.Context, tx repository.Store, o *models.Order) error {
	for _, it := range o.Items {
		if err := tx.Books().AdjustStock(ctx, it.BookID, it.Quantity); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	if o.CouponCode == "" {
		return nil
	}
	c, err := tx.Coupons().GetByCode(ctx, o.CouponCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.Coupons().DecrementUsage(ctx, c.ID)
}

func (s *OrderService) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}
