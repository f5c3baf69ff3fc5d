package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type cartRepo struct {
	q repository.Querier
}

func (r cartRepo) GetActive(ctx context.Context, userID string) (*models.Cart, error) {
	return r.getActive(ctx, userID, "")
}

func (r cartRepo) GetActiveForUpdate(ctx context.Context, userID string) (*models.Cart, error) {
	return r.getActive(ctx, userID, " FOR UPDATE")
}

func (r cartRepo) getActive(ctx context.Context, userID, lock string) (*models.Cart, error) {
	var c models.Cart
	err := r.q.QueryRow(ctx, `
		SELECT id, user_id, is_active, created_at, updated_at
		FROM carts WHERE user_id = $1 AND is_active`+lock, userID).
		Scan(&c.ID, &c.UserID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.book_id, b.title, ci.quantity, ci.unit_price, ci.created_at, ci.updated_at
		FROM cart_items ci JOIN books b ON b.id = ci.book_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Items = []models.CartItem{}
	for rows.Next() {
		var it models.CartItem
		var price int64
		if err := rows.Scan(&it.ID, &it.CartID, &it.BookID, &it.Title, &it.Quantity, &price,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.UnitPrice = fromDong(price)
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

func (r cartRepo) Create(ctx context.Context, c *models.Cart) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO carts (id, user_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return mapErr(err)
}

func (r cartRepo) UpsertItem(ctx context.Context, it *models.CartItem) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, book_id, quantity, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, book_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price, updated_at = EXCLUDED.updated_at`,
		it.ID, it.CartID, it.BookID, it.Quantity, toDong(it.UnitPrice), it.CreatedAt, it.UpdatedAt)
	return mapErr(err)
}

func (r cartRepo) DeleteItem(ctx context.Context, cartID, bookID uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND book_id = $2`, cartID, bookID)
	if err != nil {
		return err
	}
	return expectOne(tag)
}

func (r cartRepo) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

func (r cartRepo) Touch(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cartID, at)
	if err != nil {
		return err
	}
	return expectOne(tag)
}

func (r cartRepo) Deactivate(ctx context.Context, cartID uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE carts SET is_active = FALSE, updated_at = now() WHERE id = $1 AND is_active`, cartID)
	if err != nil {
		return err
	}
	return expectOne(tag)
}

func (r cartRepo) DeleteStaleActive(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM carts WHERE is_active AND updated_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
