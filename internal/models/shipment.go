package models

import (
	"time"

	"github.com/google/uuid"
)

type Shipment struct {
	ID           uuid.UUID      `json:"id"`
	OrderID      uuid.UUID      `json:"order_id"`
	TrackingCode string         `json:"tracking_code"`
	ShipperID    *string        `json:"shipper_id,omitempty"`
	Status       ShipmentStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty"`
}

type TrackingPoint struct {
	ShipmentID uuid.UUID      `json:"shipment_id"`
	RecordedAt time.Time      `json:"recorded_at"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Status     ShipmentStatus `json:"status"`
	Note       string         `json:"note,omitempty"`
}

type TrackingInfo struct {
	Shipment *Shipment       `json:"shipment"`
	Points   []TrackingPoint `json:"points"`
}

type AssignShipperRequest struct {
	ShipperID string `json:"shipper_id" binding:"required"`
}

type UpdateShipmentStatusRequest struct {
	Status    ShipmentStatus `json:"status" binding:"required"`
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
	Note      string         `json:"note"`
}

type TrackingPointRequest struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
	Note      string  `json:"note"`
}
