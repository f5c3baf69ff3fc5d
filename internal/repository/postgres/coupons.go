package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type couponRepo struct {
	q repository.Querier
}

// value est lu en texte pour conserver la précision NUMERIC
const couponColumns = `id, code, type, value::text, min_order_amount, max_discount, max_uses, used_count,
	starts_at, expires_at, is_active, created_at, updated_at`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var c models.Coupon
	var value string
	var minAmount int64
	var maxDiscount *int64
	if err := row.Scan(&c.ID, &c.Code, &c.Type, &value, &minAmount, &maxDiscount, &c.MaxUses,
		&c.UsedCount, &c.StartsAt, &c.ExpiresAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	c.Value = v
	c.MinOrderAmount = fromDong(minAmount)
	if maxDiscount != nil {
		d := fromDong(*maxDiscount)
		c.MaxDiscount = &d
	}
	return &c, nil
}

func maxDiscountArg(c *models.Coupon) *int64 {
	if c.MaxDiscount == nil {
		return nil
	}
	v := toDong(*c.MaxDiscount)
	return &v
}

func (r couponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return scanCoupon(r.q.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

func (r couponRepo) List(ctx context.Context) ([]models.Coupon, error) {
	rows, err := r.q.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

func (r couponRepo) Create(ctx context.Context, c *models.Coupon) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO coupons (id, code, type, value, min_order_amount, max_discount, max_uses, used_count,
		                     starts_at, expires_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, CAST($4 AS TEXT)::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Code, string(c.Type), c.Value.String(), toDong(c.MinOrderAmount), maxDiscountArg(c),
		c.MaxUses, c.UsedCount, c.StartsAt, c.ExpiresAt, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return mapErr(err)
}

func (r couponRepo) Update(ctx context.Context, c *models.Coupon) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE coupons
		SET type = $2, value = CAST($3 AS TEXT)::numeric, min_order_amount = $4, max_discount = $5,
		    max_uses = $6, starts_at = $7, expires_at = $8, is_active = $9, updated_at = $10
		WHERE id = $1`,
		c.ID, string(c.Type), c.Value.String(), toDong(c.MinOrderAmount), maxDiscountArg(c),
		c.MaxUses, c.StartsAt, c.ExpiresAt, c.IsActive, c.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(tag)
}

func (r couponRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND (max_uses = 0 OR used_count < max_uses)`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r couponRepo) DecrementUsage(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		UPDATE coupons SET used_count = used_count - 1, updated_at = now()
		WHERE id = $1 AND used_count > 0`, id)
	return err
}
