package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// NormalizeCouponCode : trim + majuscules
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ShippingPolicy calcule les frais de port (configuration de déploiement)
type ShippingPolicy struct {
	cfg config.ShippingConfig
}

func NewShippingPolicy(cfg config.ShippingConfig) ShippingPolicy {
	return ShippingPolicy{cfg: cfg}
}

// Fee : base + paliers de poids, gratuit au-delà du seuil (net = subtotal - remise)
func (p ShippingPolicy) Fee(weightGrams int, net decimal.Decimal) decimal.Decimal {
	if p.cfg.FreeThreshold > 0 && net.GreaterThanOrEqual(decimal.NewFromInt(p.cfg.FreeThreshold)) {
		return decimal.Zero
	}
	fee := p.cfg.BaseFee
	if p.cfg.StepGrams > 0 && weightGrams > p.cfg.IncludedGrams {
		extra := weightGrams - p.cfg.IncludedGrams
		steps := (extra + p.cfg.StepGrams - 1) / p.cfg.StepGrams
		fee += int64(steps) * p.cfg.StepFee
	}
	return decimal.NewFromInt(fee)
}

type QuoteLine struct {
	BookID    uuid.UUID       `json:"book_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Quote : total = subtotal - discount + shipping_fee
type Quote struct {
	Lines       []QuoteLine              `json:"lines"`
	WeightGrams int                      `json:"weight_grams"`
	Subtotal    decimal.Decimal          `json:"subtotal"`
	Discount    decimal.Decimal          `json:"discount"`
	ShippingFee decimal.Decimal          `json:"shipping_fee"`
	Total       decimal.Decimal          `json:"total"`
	Coupon      *models.CouponValidation `json:"coupon,omitempty"`
}

type PricingService struct {
	store    repository.Store
	shipping ShippingPolicy
	now      func() time.Time
}

func NewPricingService(store repository.Store, shipping ShippingPolicy) *PricingService {
	return &PricingService{store: store, shipping: shipping, now: nowUTC}
}

// bind renvoie une copie qui lit via tx
func (p *PricingService) bind(tx repository.Store) *PricingService {
	c := *p
	c.store = tx
	return &c
}

// Quote relit les prix courants des livres du panier
func (p *PricingService) Quote(ctx context.Context, cart *models.Cart, couponCode string) (*Quote, error) {
	books := make(map[uuid.UUID]*models.Book, len(cart.Items))
	for _, it := range cart.Items {
		b, err := p.store.Books().Get(ctx, it.BookID)
		if err != nil {
			return nil, notFound(err, "Livre introuvable")
		}
		books[it.BookID] = b
	}
	return p.price(ctx, cart.Items, books, couponCode)
}

func (p *PricingService) price(ctx context.Context, items []models.CartItem, books map[uuid.UUID]*models.Book, couponCode string) (*Quote, error) {
	q := &Quote{Lines: make([]QuoteLine, 0, len(items))}
	for _, it := range items {
		b, ok := books[it.BookID]
		if !ok {
			return nil, apperr.NotFound("Livre introuvable")
		}
		line := b.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		q.Lines = append(q.Lines, QuoteLine{
			BookID:    b.ID,
			Title:     b.Title,
			Quantity:  it.Quantity,
			UnitPrice: b.Price,
			LineTotal: line,
		})
		q.Subtotal = q.Subtotal.Add(line)
		q.WeightGrams += b.WeightGrams * it.Quantity
	}

	if strings.TrimSpace(couponCode) != "" {
		v, err := p.ValidateCoupon(ctx, couponCode, q.Subtotal)
		if err != nil {
			return nil, err
		}
		q.Coupon = v
		if v.IsValid {
			q.Discount = v.Discount
		}
	}

	if len(items) > 0 {
		q.ShippingFee = p.shipping.Fee(q.WeightGrams, q.Subtotal.Sub(q.Discount))
	}
	q.Total = q.Subtotal.Sub(q.Discount).Add(q.ShippingFee)
	return q, nil
}

// ValidateCoupon : erreur de validation si le code est mal formé, sinon un verdict lisible
func (p *PricingService) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*models.CouponValidation, error) {
	code = NormalizeCouponCode(code)
	if !couponCodePattern.MatchString(code) {
		return nil, apperr.FieldError("coupon_code", "Code promo mal formé (3 à 32 caractères A-Z, 0-9, _ ou -)")
	}

	invalid := func(msg string) *models.CouponValidation {
		return &models.CouponValidation{IsValid: false, Message: msg, Discount: decimal.Zero, Code: code}
	}

	c, err := p.store.Coupons().GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid("Code promo introuvable"), nil
	}
	if err != nil {
		return nil, internal(err)
	}

	now := p.now()
	switch {
	case !c.IsActive:
		return invalid("Ce code promo n'est plus actif"), nil
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return invalid("Ce code promo n'est pas encore valide"), nil
	case c.ExpiresAt != nil && now.After(*c.ExpiresAt):
		return invalid("Ce code promo a expiré"), nil
	case c.Exhausted():
		return invalid("Ce code promo a atteint sa limite d'utilisation"), nil
	case subtotal.LessThan(c.MinOrderAmount):
		return invalid(fmt.Sprintf("Montant minimum de %s requis", formatVND(c.MinOrderAmount))), nil
	}

	return &models.CouponValidation{
		IsValid:  true,
		Message:  "Code promo appliqué",
		Discount: Discount(c, subtotal),
		Type:     c.Type,
		Code:     c.Code,
	}, nil
}

// Discount : pourcentage arrondi au đồng inférieur et plafonné, ou montant fixe ; borné à [0, subtotal]
func Discount(c *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Type {
	case models.CouponPercentage:
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Floor()
		if c.MaxDiscount != nil && d.GreaterThan(*c.MaxDiscount) {
			d = *c.MaxDiscount
		}
	case models.CouponFixed:
		d = c.Value
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}

// =============================================
// ADMINISTRATION DES COUPONS
// =============================================

func (p *PricingService) CreateCoupon(ctx context.Context, req models.CouponRequest) (*models.Coupon, error) {
	code := NormalizeCouponCode(req.Code)
	if !couponCodePattern.MatchString(code) {
		return nil, apperr.FieldError("code", "Code promo mal formé (3 à 32 caractères A-Z, 0-9, _ ou -)")
	}
	if !req.Value.IsPositive() {
		return nil, apperr.FieldError("value", "La valeur doit être positive")
	}
	if req.Type == models.CouponPercentage && req.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperr.FieldError("value", "Le pourcentage doit être entre 0 et 100")
	}
	if req.MinOrderAmount.IsNegative() {
		return nil, apperr.FieldError("min_order_amount", "Le montant minimum ne peut pas être négatif")
	}
	if req.StartsAt != nil && req.ExpiresAt != nil && !req.ExpiresAt.After(*req.StartsAt) {
		return nil, apperr.FieldError("expires_at", "La date d'expiration doit suivre la date de début")
	}

	now := p.now()
	c := &models.Coupon{
		ID:             uuid.New(),
		Code:           code,
		Type:           req.Type,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		MaxUses:        req.MaxUses,
		StartsAt:       req.StartsAt,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.store.Coupons().Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("Ce code promo existe déjà")
		}
		return nil, internal(err)
	}
	return c, nil
}

func (p *PricingService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	list, err := p.store.Coupons().List(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return list, nil
}

func (p *PricingService) UpdateCoupon(ctx context.Context, code string, upd models.CouponUpdate) (*models.Coupon, error) {
	c, err := p.store.Coupons().GetByCode(ctx, NormalizeCouponCode(code))
	if err != nil {
		return nil, notFound(err, "Code promo introuvable")
	}
	if upd.IsActive != nil {
		c.IsActive = *upd.IsActive
	}
	if upd.MaxUses != nil {
		if *upd.MaxUses < 0 {
			return nil, apperr.FieldError("max_uses", "Le plafond ne peut pas être négatif")
		}
		c.MaxUses = *upd.MaxUses
	}
	if upd.ExpiresAt != nil {
		c.ExpiresAt = upd.ExpiresAt
	}
	c.UpdatedAt = p.now()
	if err := p.store.Coupons().Update(ctx, c); err != nil {
		return nil, notFound(err, "Code promo introuvable")
	}
	return c, nil
}
