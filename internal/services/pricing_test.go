package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/models"
)

func TestShippingFee(t *testing.T) {
	policy := NewShippingPolicy(testShipping)

	tests := []struct {
		name   string
		weight int
		net    int64
		want   int64
	}{
		{"poids inclus", 800, 250000, 30000},
		{"pile le poids inclus", 1000, 250000, 30000},
		{"un palier entamé", 1200, 250000, 35000},
		{"trois paliers", 2100, 250000, 45000},
		{"seuil de gratuité atteint", 5000, 500000, 0},
		{"juste sous le seuil", 800, 499999, 30000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, dong(tt.want).Equal(policy.Fee(tt.weight, dong(tt.net))),
				"attendu %d, obtenu %s", tt.want, policy.Fee(tt.weight, dong(tt.net)))
		})
	}

	t.Run("seuil désactivé", func(t *testing.T) {
		cfg := testShipping
		cfg.FreeThreshold = 0
		fee := NewShippingPolicy(cfg).Fee(500, dong(10_000_000))
		assert.True(t, dong(30000).Equal(fee))
	})

	t.Run("sans palier", func(t *testing.T) {
		fee := NewShippingPolicy(config.ShippingConfig{BaseFee: 20000}).Fee(10_000, dong(1000))
		assert.True(t, dong(20000).Equal(fee))
	})
}

func TestDiscount(t *testing.T) {
	maxDiscount := dong(50000)

	tests := []struct {
		name     string
		coupon   models.Coupon
		subtotal int64
		want     int64
	}{
		{"10% de 200 000", models.Coupon{Type: models.CouponPercentage, Value: dong(10)}, 200000, 20000},
		{"arrondi inférieur", models.Coupon{Type: models.CouponPercentage, Value: dong(15)}, 99999, 14999},
		{"plafond", models.Coupon{Type: models.CouponPercentage, Value: dong(50), MaxDiscount: &maxDiscount}, 400000, 50000},
		{"montant fixe", models.Coupon{Type: models.CouponFixed, Value: dong(30000)}, 200000, 30000},
		{"fixe supérieur au sous-total", models.Coupon{Type: models.CouponFixed, Value: dong(300000)}, 200000, 200000},
		{"pourcentage décimal", models.Coupon{Type: models.CouponPercentage, Value: decimal.RequireFromString("12.5")}, 100000, 12500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discount(&tt.coupon, dong(tt.subtotal))
			assert.True(t, dong(tt.want).Equal(got), "attendu %d, obtenu %s", tt.want, got)
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	past := e.now().Add(-time.Hour)
	future := e.now().Add(time.Hour)

	e.addCoupon(t, models.Coupon{Code: "SALE10", Type: models.CouponPercentage, Value: dong(10), IsActive: true})
	e.addCoupon(t, models.Coupon{Code: "OFF", Type: models.CouponFixed, Value: dong(10000), IsActive: false})
	e.addCoupon(t, models.Coupon{Code: "OLD", Type: models.CouponFixed, Value: dong(10000), IsActive: true, ExpiresAt: &past})
	e.addCoupon(t, models.Coupon{Code: "SOON", Type: models.CouponFixed, Value: dong(10000), IsActive: true, StartsAt: &future})
	e.addCoupon(t, models.Coupon{Code: "USED", Type: models.CouponFixed, Value: dong(10000), IsActive: true, MaxUses: 2, UsedCount: 2})
	e.addCoupon(t, models.Coupon{Code: "BIG", Type: models.CouponFixed, Value: dong(10000), IsActive: true, MinOrderAmount: dong(300000)})

	tests := []struct {
		code     string
		valid    bool
		discount int64
		message  string
	}{
		{" sale10 ", true, 20000, "Code promo appliqué"},
		{"NOPE", false, 0, "Code promo introuvable"},
		{"OFF", false, 0, "Ce code promo n'est plus actif"},
		{"OLD", false, 0, "Ce code promo a expiré"},
		{"SOON", false, 0, "Ce code promo n'est pas encore valide"},
		{"USED", false, 0, "Ce code promo a atteint sa limite d'utilisation"},
		{"BIG", false, 0, "Montant minimum de 300.000 ₫ requis"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v, err := e.pricing.ValidateCoupon(ctx, tt.code, dong(200000))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, v.IsValid)
			assert.Equal(t, tt.message, v.Message)
			assert.True(t, dong(tt.discount).Equal(v.Discount))
		})
	}

	t.Run("code mal formé", func(t *testing.T) {
		for _, code := range []string{"ab", "SALE 10", "PROMO!", "AVERYLONGCOUPONCODETHATEXCEEDSLIMIT"} {
			_, err := e.pricing.ValidateCoupon(ctx, code, dong(200000))
			assert.True(t, apperr.Is(err, apperr.KindValidation), code)
		}
	})
}

func TestQuoteScenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.addBook(t, "Dế Mèn phiêu lưu ký", 100000, 10, 300)
	b := e.addBook(t, "Số đỏ", 150000, 10, 400)

	_, err := e.carts.AddItem(ctx, "u1", a.ID, 1)
	require.NoError(t, err)
	_, err = e.carts.AddItem(ctx, "u1", b.ID, 1)
	require.NoError(t, err)

	q, err := e.carts.Quote(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "250000", q.Subtotal.String())
	assert.Equal(t, "30000", q.ShippingFee.String())
	assert.Equal(t, "280000", q.Total.String())
	assert.Len(t, q.Lines, 2)
}

func TestQuoteUsesCurrentPrices(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "Truyện Kiều", 100000, 10, 200)

	_, err := e.carts.AddItem(ctx, "u1", book.ID, 2)
	require.NoError(t, err)

	book.Price = dong(120000)
	require.NoError(t, e.store.Books().Update(ctx, &book))

	q, err := e.carts.Quote(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "240000", q.Subtotal.String())
}

func TestQuoteInvalidCouponKeepsTotals(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "Truyện Kiều", 100000, 10, 200)
	_, err := e.carts.AddItem(ctx, "u1", book.ID, 1)
	require.NoError(t, err)

	q, err := e.carts.Quote(ctx, "u1", "GHOST")
	require.NoError(t, err)
	require.NotNil(t, q.Coupon)
	assert.False(t, q.Coupon.IsValid)
	assert.True(t, q.Discount.IsZero())
	assert.Equal(t, "130000", q.Total.String())
}

// Sur des paniers aléatoires : total = subtotal - discount + shipping, remise dans [0, subtotal]
func TestQuoteTotalsProperty(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	maxDiscount := dong(80000)
	coupons := []models.Coupon{
		e.addCoupon(t, models.Coupon{Code: "PCT", Type: models.CouponPercentage, Value: dong(17), IsActive: true}),
		e.addCoupon(t, models.Coupon{Code: "CAP", Type: models.CouponPercentage, Value: dong(40), MaxDiscount: &maxDiscount, IsActive: true}),
		e.addCoupon(t, models.Coupon{Code: "FIX", Type: models.CouponFixed, Value: dong(150000), IsActive: true}),
	}

	rng := rand.New(rand.NewSource(42))
	books := make([]models.Book, 0, 8)
	for i := 0; i < 8; i++ {
		books = append(books, e.addBook(t, "Livre", int64(rng.Intn(400)+1)*1000, 1000, rng.Intn(900)+50))
	}
	byID := map[uuid.UUID]*models.Book{}
	for i := range books {
		byID[books[i].ID] = &books[i]
	}

	for round := 0; round < 200; round++ {
		items := []models.CartItem{}
		for _, b := range books {
			if rng.Intn(2) == 0 {
				items = append(items, models.CartItem{BookID: b.ID, Quantity: rng.Intn(5) + 1})
			}
		}
		code := ""
		if k := rng.Intn(len(coupons) + 1); k < len(coupons) {
			code = coupons[k].Code
		}

		q, err := e.pricing.price(ctx, items, byID, code)
		require.NoError(t, err)

		assert.True(t, q.Total.Equal(q.Subtotal.Sub(q.Discount).Add(q.ShippingFee)), "round %d", round)
		assert.False(t, q.Discount.IsNegative())
		assert.True(t, q.Discount.LessThanOrEqual(q.Subtotal))
		assert.False(t, q.Total.IsNegative())
	}
}

func TestCreateCoupon(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	c, err := e.pricing.CreateCoupon(ctx, models.CouponRequest{Code: "rentree-25", Type: models.CouponPercentage, Value: dong(25)})
	require.NoError(t, err)
	assert.Equal(t, "RENTREE-25", c.Code)
	assert.True(t, c.IsActive)

	_, err = e.pricing.CreateCoupon(ctx, models.CouponRequest{Code: "RENTREE-25", Type: models.CouponFixed, Value: dong(1000)})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = e.pricing.CreateCoupon(ctx, models.CouponRequest{Code: "TOOMUCH", Type: models.CouponPercentage, Value: dong(120)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	off := false
	updated, err := e.pricing.UpdateCoupon(ctx, "rentree-25", models.CouponUpdate{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
}
