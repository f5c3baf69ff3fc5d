package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/gateway"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository/memory"
	"bookstore_back_end/internal/tracking"
)

var testShipping = config.ShippingConfig{
	BaseFee:       30000,
	IncludedGrams: 1000,
	StepGrams:     500,
	StepFee:       5000,
	FreeThreshold: 500000,
}

var testAddress = models.ShippingAddress{
	Recipient: "Nguyễn Văn A",
	Phone:     "0901234567",
	Line1:     "12 Lý Thường Kiệt",
	Ward:      "Phường 7",
	District:  "Quận 10",
	City:      "Hồ Chí Minh",
}

// =============================================
// FAKES
// =============================================

type fakeQR struct {
	mu    sync.Mutex
	err   error
	calls int
	memos []string
}

func (f *fakeQR) GenerateQR(_ context.Context, amount int64, memo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.memos = append(f.memos, memo)
	return fmt.Sprintf("https://qr.test/img.png?amount=%d&addInfo=%s", amount, memo), nil
}

type fakeCard struct {
	mu      sync.Mutex
	n       int
	refunds []string
	keys    []string
	err     error
}

func (f *fakeCard) CreateIntent(_ context.Context, amount int64, orderNumber string, _ map[string]string) (*gateway.CardIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	id := fmt.Sprintf("pi_%d", f.n)
	return &gateway.CardIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (f *fakeCard) Refund(_ context.Context, intentID string, _ int64, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.refunds = append(f.refunds, intentID)
	f.keys = append(f.keys, idempotencyKey)
	return "re_" + intentID, nil
}

func (f *fakeCard) ParseWebhook(payload []byte, _ string) (*gateway.WebhookEvent, error) {
	return (&gateway.StripeClient{}).ParseWebhook(payload, "")
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type published struct {
	channel string
	payload string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{channel: channel, payload: string(payload)})
	return nil
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

// =============================================
// ENVIRONNEMENT
// =============================================

type testEnv struct {
	store      *memory.Store
	qr         *fakeQR
	card       *fakeCard
	sink       *recordingSink
	publisher  *fakePublisher
	audit      *audit.MemoryLogger
	points     *tracking.MemoryStore
	dispatcher *Dispatcher

	pricing   *PricingService
	carts     *CartService
	orders    *OrderService
	payments  *PaymentService
	shipments *ShipmentService
	comments  *CommentService

	mu    sync.Mutex
	clock time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store:     memory.New(),
		qr:        &fakeQR{},
		card:      &fakeCard{},
		sink:      &recordingSink{},
		publisher: &fakePublisher{},
		audit:     audit.NewMemoryLogger(),
		points:    tracking.NewMemoryStore(),
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.dispatcher = NewDispatcher(e.sink)

	e.pricing = NewPricingService(e.store, NewShippingPolicy(testShipping))
	e.carts = NewCartService(e.store, e.pricing, e.publisher)
	e.shipments = NewShipmentService(e.store, e.points, e.dispatcher, e.audit)
	e.payments = NewPaymentService(e.store, PaymentDeps{
		QR:         e.qr,
		Card:       e.card,
		Shipments:  e.shipments,
		Dispatcher: e.dispatcher,
		Audit:      e.audit,
		MemoPrefix: "BKS",
	})
	e.orders = NewOrderService(e.store, e.pricing, e.payments, e.dispatcher, e.audit, e.publisher)
	e.comments = NewCommentService(e.store)

	e.pricing.now = e.now
	e.carts.now = e.now
	e.shipments.now = e.now
	e.payments.now = e.now
	e.orders.now = e.now
	e.comments.now = e.now
	return e
}

func (e *testEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = e.clock.Add(d)
}

// events attend la fin des envois puis renvoie les types reçus
func (e *testEnv) events() []EventType {
	e.dispatcher.Wait()
	return e.sink.types()
}

func (e *testEnv) addBook(t *testing.T, title string, price int64, stock, weight int) models.Book {
	t.Helper()
	b := models.Book{
		ID:          uuid.New(),
		Title:       title,
		Author:      "Auteur",
		Price:       decimal.NewFromInt(price),
		Stock:       stock,
		WeightGrams: weight,
		IsActive:    true,
		CreatedAt:   e.now(),
		UpdatedAt:   e.now(),
	}
	require.NoError(t, e.store.Books().Create(context.Background(), &b))
	return b
}

func (e *testEnv) addCoupon(t *testing.T, c models.Coupon) models.Coupon {
	t.Helper()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = e.now()
	c.UpdatedAt = e.now()
	require.NoError(t, e.store.Coupons().Create(context.Background(), &c))
	return c
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	b, err := e.store.Books().Get(context.Background(), id)
	require.NoError(t, err)
	return b.Stock
}

// checkout remplit le panier puis passe commande (virement par défaut)
func (e *testEnv) checkout(t *testing.T, userID string, lines map[uuid.UUID]int, req models.CheckoutRequest) *models.CheckoutResult {
	t.Helper()
	ctx := context.Background()
	for id, qty := range lines {
		_, err := e.carts.AddItem(ctx, userID, id, qty)
		require.NoError(t, err)
	}
	if req.ShippingAddress.Recipient == "" {
		req.ShippingAddress = testAddress
	}
	res, err := e.orders.Checkout(ctx, userID, userID+"@example.com", req)
	require.NoError(t, err)
	return res
}

func dong(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
