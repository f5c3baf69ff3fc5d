package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type orderRepo struct {
	q repository.Querier
}

const orderColumns = `id, order_number, user_id, cart_id, contact_email, recipient, phone, line1, ward,
	district, city, coupon_code, subtotal, discount, shipping_fee, total, status, cancel_reason,
	created_at, updated_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var subtotal, discount, fee, total int64
	a := &o.ShippingAddress
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.CartID, &o.ContactEmail, &a.Recipient,
		&a.Phone, &a.Line1, &a.Ward, &a.District, &a.City, &o.CouponCode, &subtotal, &discount, &fee,
		&total, &o.Status, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	o.Subtotal = fromDong(subtotal)
	o.Discount = fromDong(discount)
	o.ShippingFee = fromDong(fee)
	o.Total = fromDong(total)
	return &o, nil
}

func (r orderRepo) loadItems(ctx context.Context, o *models.Order) error {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, book_id, title, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY title, id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		var price int64
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BookID, &it.Title, &it.Quantity, &price); err != nil {
			return err
		}
		it.UnitPrice = fromDong(price)
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r orderRepo) getOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r orderRepo) Create(ctx context.Context, o *models.Order) error {
	a := o.ShippingAddress
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		o.ID, o.OrderNumber, o.UserID, o.CartID, o.ContactEmail, a.Recipient, a.Phone, a.Line1, a.Ward,
		a.District, a.City, o.CouponCode, toDong(o.Subtotal), toDong(o.Discount), toDong(o.ShippingFee),
		toDong(o.Total), string(o.Status), o.CancelReason, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}

	for _, it := range o.Items {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, book_id, title, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, o.ID, it.BookID, it.Title, it.Quantity, toDong(it.UnitPrice)); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r orderRepo) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r orderRepo) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r orderRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, number).Scan(&exists)
	return exists, err
}

func (r orderRepo) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
}

func (r orderRepo) ListAbandoned(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.status IN ($1, $2) AND o.created_at < $3
		  AND NOT EXISTS (
			SELECT 1 FROM payment_transactions p
			WHERE p.order_id = o.id AND (p.status = $4 OR p.created_at >= $3))
		ORDER BY o.created_at
		LIMIT $5`,
		string(models.OrderPending), string(models.OrderAwaitingPayment), before,
		string(models.PaymentPending), limit)
}

func (r orderRepo) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// les lignes sont chargées après fermeture du curseur (une seule requête active par connexion)
	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r orderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, reason string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders SET status = $3, cancel_reason = CASE WHEN $4 = '' THEN cancel_reason ELSE $4 END, updated_at = $5
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), reason, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}
