package postgres

import (
	"context"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type shipmentRepo struct {
	q repository.Querier
}

const shipmentColumns = `id, order_id, tracking_code, shipper_id, status, created_at, updated_at, delivered_at`

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var s models.Shipment
	if err := row.Scan(&s.ID, &s.OrderID, &s.TrackingCode, &s.ShipperID, &s.Status, &s.CreatedAt,
		&s.UpdatedAt, &s.DeliveredAt); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r shipmentRepo) Create(ctx context.Context, s *models.Shipment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO shipments (`+shipmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.OrderID, s.TrackingCode, s.ShipperID, string(s.Status), s.CreatedAt, s.UpdatedAt, s.DeliveredAt)
	return mapErr(err)
}

func (r shipmentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	return scanShipment(r.q.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id))
}

func (r shipmentRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	return scanShipment(r.q.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1`, orderID))
}

func (r shipmentRepo) GetByTrackingCode(ctx context.Context, code string) (*models.Shipment, error) {
	return scanShipment(r.q.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE tracking_code = $1`, code))
}

func (r shipmentRepo) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE tracking_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r shipmentRepo) Update(ctx context.Context, s *models.Shipment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE shipments SET shipper_id = $2, status = $3, updated_at = $4, delivered_at = $5
		WHERE id = $1`,
		s.ID, s.ShipperID, string(s.Status), s.UpdatedAt, s.DeliveredAt)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(tag)
}
