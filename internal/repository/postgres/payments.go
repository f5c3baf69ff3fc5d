package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type paymentRepo struct {
	q repository.Querier
}

const paymentColumns = `id, order_id, provider, method, transaction_code, memo, qr_url, client_secret,
	amount, status, failure_reason, created_at, paid_at, updated_at`

func scanPayment(row rowScanner) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	var amount int64
	if err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.Method, &p.TransactionCode, &p.Memo, &p.QRURL,
		&p.ClientSecret, &amount, &p.Status, &p.FailureReason, &p.CreatedAt, &p.PaidAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	p.Amount = fromDong(amount)
	return &p, nil
}

func (r paymentRepo) list(ctx context.Context, query string, args ...any) ([]models.PaymentTransaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r paymentRepo) Create(ctx context.Context, p *models.PaymentTransaction) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_transactions (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.OrderID, string(p.Provider), p.Method, p.TransactionCode, p.Memo, p.QRURL, p.ClientSecret,
		toDong(p.Amount), string(p.Status), p.FailureReason, p.CreatedAt, p.PaidAt, p.UpdatedAt)
	return mapErr(err)
}

func (r paymentRepo) Get(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE id = $1`, id))
}

func (r paymentRepo) GetByCode(ctx context.Context, code string) (*models.PaymentTransaction, error) {
	return scanPayment(r.q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE transaction_code = $1`, code))
}

func (r paymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	return r.list(ctx, `
		SELECT `+paymentColumns+` FROM payment_transactions
		WHERE order_id = $1 ORDER BY created_at DESC, id`, orderID)
}

// Transition : le WHERE sur le statut rend la mise à jour atomique face aux callbacks concurrents
func (r paymentRepo) Transition(ctx context.Context, id uuid.UUID, from models.PaymentStatus, upd repository.PaymentUpdate) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $3,
		    transaction_code = COALESCE($4, transaction_code),
		    paid_at = COALESCE($5, paid_at),
		    failure_reason = $6,
		    updated_at = $7
		WHERE id = $1 AND status = $2`,
		id, string(from), string(upd.Status), upd.TransactionCode, upd.PaidAt, upd.FailureReason, time.Now().UTC())
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r paymentRepo) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.PaymentTransaction, error) {
	return r.list(ctx, `
		SELECT `+paymentColumns+` FROM payment_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`, string(models.PaymentPending), before, limit)
}
