package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

func seedBook(t *testing.T, s *Store, stock int) models.Book {
	t.Helper()
	now := time.Now().UTC()
	b := models.Book{
		ID: uuid.New(), Title: "Nhật ký trong tù", Author: "Hồ Chí Minh",
		Price: decimal.NewFromInt(100000), Stock: stock, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Books().Create(context.Background(), &b))
	return b
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := seedBook(t, s, 5)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.Books().AdjustStock(ctx, b.ID, -3))
		got, err := tx.Books().Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Stock)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Books().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := seedBook(t, s, 5)

	require.NoError(t, s.WithTx(ctx, func(tx repository.Store) error {
		return tx.Books().AdjustStock(ctx, b.ID, -5)
	}))

	got, err := s.Books().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.ErrorIs(t, s.Books().AdjustStock(ctx, b.ID, -1), repository.ErrConflict)
}

func TestSingleActiveCartPerUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	first := models.Cart{ID: uuid.New(), UserID: "u1", IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Carts().Create(ctx, &first))

	second := models.Cart{ID: uuid.New(), UserID: "u1", IsActive: true, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.Carts().Create(ctx, &second), repository.ErrConflict)

	require.NoError(t, s.Carts().Deactivate(ctx, first.ID))
	assert.NoError(t, s.Carts().Create(ctx, &second))
}

func TestPaymentTransitionIsCheckAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	order := models.Order{ID: uuid.New(), OrderNumber: "ORD1", CartID: uuid.New(), Status: models.OrderAwaitingPayment}
	require.NoError(t, s.Orders().Create(ctx, &order))

	p := models.PaymentTransaction{ID: uuid.New(), OrderID: order.ID, Status: models.PaymentPending, CreatedAt: now}
	require.NoError(t, s.Payments().Create(ctx, &p))

	code := "FT123"
	ok, err := s.Payments().Transition(ctx, p.ID, models.PaymentPending,
		repository.PaymentUpdate{Status: models.PaymentSuccess, TransactionCode: &code, PaidAt: &now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Payments().Transition(ctx, p.ID, models.PaymentPending,
		repository.PaymentUpdate{Status: models.PaymentFailed})
	require.NoError(t, err)
	assert.False(t, ok, "le second appel ne doit rien modifier")

	got, err := s.Payments().GetByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, got.Status)
}

func TestOrderUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	cartID := uuid.New()

	require.NoError(t, s.Orders().Create(ctx, &models.Order{ID: uuid.New(), OrderNumber: "ORD-A", CartID: cartID}))
	assert.ErrorIs(t, s.Orders().Create(ctx, &models.Order{ID: uuid.New(), OrderNumber: "ORD-B", CartID: cartID}), repository.ErrConflict)
	assert.ErrorIs(t, s.Orders().Create(ctx, &models.Order{ID: uuid.New(), OrderNumber: "ORD-A", CartID: uuid.New()}), repository.ErrConflict)

	exists, err := s.Orders().NumberExists(ctx, "ORD-A")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderTransitionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := models.Order{ID: uuid.New(), OrderNumber: "ORD2", CartID: uuid.New(), Status: models.OrderPending}
	require.NoError(t, s.Orders().Create(ctx, &o))

	require.NoError(t, s.Orders().TransitionStatus(ctx, o.ID, models.OrderPending, models.OrderCancelled, "client"))
	assert.ErrorIs(t, s.Orders().TransitionStatus(ctx, o.ID, models.OrderPending, models.OrderPaid, ""), repository.ErrConflict)

	got, err := s.Orders().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "client", got.CancelReason)
}
