package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

// --- Paniers ---

type cartRepo struct{ s *Store }

func activeCart(st *state, userID string) (models.Cart, bool) {
	for _, c := range st.carts {
		if c.UserID == userID && c.IsActive {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (r cartRepo) GetActive(_ context.Context, userID string) (*models.Cart, error) {
	var out *models.Cart
	err := r.s.run(func(st *state) error {
		c, ok := activeCart(st, userID)
		if !ok {
			return repository.ErrNotFound
		}
		c = copyCart(c)
		for i := range c.Items {
			c.Items[i].Title = st.books[c.Items[i].BookID].Title
		}
		if c.Items == nil {
			c.Items = []models.CartItem{}
		}
		out = &c
		return nil
	})
	return out, err
}

func (r cartRepo) GetActiveForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.GetActive(ctx, userID)
}

func (r cartRepo) Create(_ context.Context, c *models.Cart) error {
	return r.s.run(func(st *state) error {
		if c.IsActive {
			if _, ok := activeCart(st, c.UserID); ok {
				return repository.ErrConflict
			}
		}
		nc := copyCart(*c)
		nc.Items = nil
		st.carts[c.ID] = nc
		return nil
	})
}

func (r cartRepo) UpsertItem(_ context.Context, it *models.CartItem) error {
	return r.s.run(func(st *state) error {
		c, ok := st.carts[it.CartID]
		if !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.books[it.BookID]; !ok {
			return repository.ErrNotFound
		}
		c = copyCart(c)
		for i := range c.Items {
			if c.Items[i].BookID == it.BookID {
				c.Items[i].Quantity = it.Quantity
				c.Items[i].UnitPrice = it.UnitPrice
				c.Items[i].UpdatedAt = it.UpdatedAt
				st.carts[c.ID] = c
				return nil
			}
		}
		ni := *it
		ni.Title = ""
		c.Items = append(c.Items, ni)
		st.carts[c.ID] = c
		return nil
	})
}

func (r cartRepo) DeleteItem(_ context.Context, cartID, bookID uuid.UUID) error {
	return r.s.run(func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok {
			return repository.ErrNotFound
		}
		items := make([]models.CartItem, 0, len(c.Items))
		for _, it := range c.Items {
			if it.BookID != bookID {
				items = append(items, it)
			}
		}
		if len(items) == len(c.Items) {
			return repository.ErrNotFound
		}
		c.Items = items
		st.carts[cartID] = c
		return nil
	})
}

func (r cartRepo) ClearItems(_ context.Context, cartID uuid.UUID) error {
	return r.s.run(func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok {
			return repository.ErrNotFound
		}
		c.Items = nil
		st.carts[cartID] = c
		return nil
	})
}

func (r cartRepo) Touch(_ context.Context, cartID uuid.UUID, at time.Time) error {
	return r.s.run(func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok {
			return repository.ErrNotFound
		}
		c.UpdatedAt = at
		st.carts[cartID] = c
		return nil
	})
}

func (r cartRepo) Deactivate(_ context.Context, cartID uuid.UUID) error {
	return r.s.run(func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok || !c.IsActive {
			return repository.ErrNotFound
		}
		c.IsActive = false
		c.UpdatedAt = time.Now().UTC()
		st.carts[cartID] = c
		return nil
	})
}

func (r cartRepo) DeleteStaleActive(_ context.Context, before time.Time) (int, error) {
	n := 0
	err := r.s.run(func(st *state) error {
		for id, c := range st.carts {
			if c.IsActive && c.UpdatedAt.Before(before) {
				delete(st.carts, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// --- Commandes ---

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *models.Order) error {
	return r.s.run(func(st *state) error {
		for _, existing := range st.orders {
			if existing.OrderNumber == o.OrderNumber || existing.CartID == o.CartID {
				return repository.ErrConflict
			}
		}
		st.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r orderRepo) find(match func(models.Order) bool) (*models.Order, error) {
	var out *models.Order
	err := r.s.run(func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				c := copyOrder(o)
				out = &c
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r orderRepo) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id })
}

func (r orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepo) GetByNumber(_ context.Context, number string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.OrderNumber == number })
}

func (r orderRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	_, err := r.GetByNumber(ctx, number)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r orderRepo) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	err := r.s.run(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r orderRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus, reason string) error {
	return r.s.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		if o.Status != from {
			return repository.ErrConflict
		}
		o.Status = to
		if reason != "" {
			o.CancelReason = reason
		}
		o.UpdatedAt = time.Now().UTC()
		st.orders[id] = o
		return nil
	})
}

func (r orderRepo) ListAbandoned(_ context.Context, before time.Time, limit int) ([]models.Order, error) {
	var out []models.Order
	err := r.s.run(func(st *state) error {
		for _, o := range st.orders {
			if o.Status != models.OrderPending && o.Status != models.OrderAwaitingPayment {
				continue
			}
			if o.CreatedAt.Before(before) && !hasRecentAttempt(st, o.ID, before) {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, 0, limit), err
}

func hasRecentAttempt(st *state, orderID uuid.UUID, since time.Time) bool {
	for _, p := range st.payments {
		if p.OrderID == orderID && (p.Status == models.PaymentPending || !p.CreatedAt.Before(since)) {
			return true
		}
	}
	return false
}

// --- Paiements ---

type paymentRepo struct{ s *Store }

func codeTaken(st *state, code *string, except uuid.UUID) bool {
	if code == nil {
		return false
	}
	for _, p := range st.payments {
		if p.ID != except && p.TransactionCode != nil && *p.TransactionCode == *code {
			return true
		}
	}
	return false
}

func (r paymentRepo) Create(_ context.Context, p *models.PaymentTransaction) error {
	return r.s.run(func(st *state) error {
		if _, ok := st.orders[p.OrderID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.payments[p.ID]; ok || codeTaken(st, p.TransactionCode, p.ID) {
			return repository.ErrConflict
		}
		st.payments[p.ID] = *p
		return nil
	})
}

func (r paymentRepo) Get(_ context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var out *models.PaymentTransaction
	err := r.s.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r paymentRepo) GetByCode(_ context.Context, code string) (*models.PaymentTransaction, error) {
	var out *models.PaymentTransaction
	err := r.s.run(func(st *state) error {
		for _, p := range st.payments {
			if p.TransactionCode != nil && *p.TransactionCode == code {
				out = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r paymentRepo) filter(match func(models.PaymentTransaction) bool, newestFirst bool) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	err := r.s.run(func(st *state) error {
		for _, p := range st.payments {
			if match(p) {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r paymentRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	return r.filter(func(p models.PaymentTransaction) bool { return p.OrderID == orderID }, true)
}

func (r paymentRepo) Transition(_ context.Context, id uuid.UUID, from models.PaymentStatus, upd repository.PaymentUpdate) (bool, error) {
	done := false
	err := r.s.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		if p.Status != from {
			return nil
		}
		if codeTaken(st, upd.TransactionCode, id) {
			return repository.ErrConflict
		}
		p.Status = upd.Status
		if upd.TransactionCode != nil {
			p.TransactionCode = upd.TransactionCode
		}
		if upd.PaidAt != nil {
			p.PaidAt = upd.PaidAt
		}
		p.FailureReason = upd.FailureReason
		p.UpdatedAt = time.Now().UTC()
		st.payments[id] = p
		done = true
		return nil
	})
	return done, err
}

func (r paymentRepo) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]models.PaymentTransaction, error) {
	out, err := r.filter(func(p models.PaymentTransaction) bool {
		return p.Status == models.PaymentPending && p.CreatedAt.Before(before)
	}, false)
	return paginate(out, 0, limit), err
}

// --- Expéditions ---

type shipmentRepo struct{ s *Store }

func (r shipmentRepo) Create(_ context.Context, s *models.Shipment) error {
	return r.s.run(func(st *state) error {
		for _, existing := range st.shipments {
			if existing.OrderID == s.OrderID || existing.TrackingCode == s.TrackingCode {
				return repository.ErrConflict
			}
		}
		st.shipments[s.ID] = *s
		return nil
	})
}

func (r shipmentRepo) find(match func(models.Shipment) bool) (*models.Shipment, error) {
	var out *models.Shipment
	err := r.s.run(func(st *state) error {
		for _, s := range st.shipments {
			if match(s) {
				out = &s
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r shipmentRepo) Get(_ context.Context, id uuid.UUID) (*models.Shipment, error) {
	return r.find(func(s models.Shipment) bool { return s.ID == id })
}

func (r shipmentRepo) GetByOrder(_ context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	return r.find(func(s models.Shipment) bool { return s.OrderID == orderID })
}

func (r shipmentRepo) GetByTrackingCode(_ context.Context, code string) (*models.Shipment, error) {
	return r.find(func(s models.Shipment) bool { return s.TrackingCode == code })
}

func (r shipmentRepo) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByTrackingCode(ctx, code)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r shipmentRepo) Update(_ context.Context, s *models.Shipment) error {
	return r.s.run(func(st *state) error {
		if _, ok := st.shipments[s.ID]; !ok {
			return repository.ErrNotFound
		}
		st.shipments[s.ID] = *s
		return nil
	})
}
