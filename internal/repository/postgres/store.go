package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bookstore_back_end/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
	q    repository.Querier
	inTx bool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// Migrate applique le schéma embarqué (idempotent)
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("application du schéma: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, q: tx, inTx: true})
	})
}

func (s *Store) Books() repository.BookRepository                 { return bookRepo{q: s.q} }
func (s *Store) Carts() repository.CartRepository                 { return cartRepo{q: s.q} }
func (s *Store) Coupons() repository.CouponRepository             { return couponRepo{q: s.q} }
func (s *Store) Orders() repository.OrderRepository               { return orderRepo{q: s.q} }
func (s *Store) Payments() repository.PaymentRepository           { return paymentRepo{q: s.q} }
func (s *Store) Shipments() repository.ShipmentRepository         { return shipmentRepo{q: s.q} }
func (s *Store) Comments() repository.CommentRepository           { return commentRepo{q: s.q} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{q: s.q} }

type rowScanner interface {
	Scan(dest ...any) error
}

// mapErr traduit les erreurs pgx en erreurs du package repository
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// Montants stockés en đồng entiers
func toDong(d decimal.Decimal) int64 {
	return d.IntPart()
}

func fromDong(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func expectOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
