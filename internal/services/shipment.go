package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
	"bookstore_back_end/internal/tracking"
)

const trackingCodeAttempts = 5

type ShipmentService struct {
	store      repository.Store
	tracking   tracking.Store
	dispatcher *Dispatcher
	audit      audit.Logger
	now        func() time.Time
}

func NewShipmentService(store repository.Store, points tracking.Store, dispatcher *Dispatcher, auditLog audit.Logger) *ShipmentService {
	return &ShipmentService{store: store, tracking: points, dispatcher: dispatcher, audit: auditLog, now: nowUTC}
}

// createForOrder est appelé dans la transaction qui confirme le paiement ; idempotent par commande
func (s *ShipmentService) createForOrder(ctx context.Context, tx repository.Store, o *models.Order) (*models.Shipment, error) {
	existing, err := tx.Shipments().GetByOrder(ctx, o.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	code, err := s.nextTrackingCode(ctx, tx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sh := &models.Shipment{
		ID:           uuid.New(),
		OrderID:      o.ID,
		TrackingCode: code,
		Status:       models.ShipmentCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Shipments().Create(ctx, sh); err != nil {
		return nil, err
	}
	log.Printf("📦 Expédition %s créée pour %s", sh.TrackingCode, o.OrderNumber)
	return sh, nil
}

func (s *ShipmentService) nextTrackingCode(ctx context.Context, tx repository.Store) (string, error) {
	for i := 0; i < trackingCodeAttempts; i++ {
		code, err := trackingCode()
		if err != nil {
			return "", err
		}
		exists, err := tx.Shipments().TrackingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperr.Conflict("Impossible de générer un code de suivi, réessayez")
}

func (s *ShipmentService) Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	sh, err := s.store.Shipments().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Expédition introuvable")
	}
	return sh, nil
}

// Assign (admin) attribue ou réattribue un livreur tant que le colis n'est pas enlevé
func (s *ShipmentService) Assign(ctx context.Context, id uuid.UUID, shipperID, actor string) (*models.Shipment, error) {
	var out *models.Shipment
	var before models.ShipmentStatus
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		sh, err := tx.Shipments().Get(ctx, id)
		if err != nil {
			return notFound(err, "Expédition introuvable")
		}
		if !sh.Status.CanTransitionTo(models.ShipmentAssigned) {
			return apperr.Conflict("Impossible d'assigner un livreur (statut " + string(sh.Status) + ")")
		}
		before = sh.Status
		sh.ShipperID = &shipperID
		sh.Status = models.ShipmentAssigned
		sh.UpdatedAt = s.now()
		out = sh
		return tx.Shipments().Update(ctx, sh)
	})
	if err != nil {
		return nil, internal(err)
	}
	log.Printf("📦 Livreur %s assigné à %s", shipperID, out.TrackingCode)
	s.record(ctx, audit.NewEntry(audit.ResourceShipment, id.String(), audit.ActionShipmentStatus, actor, string(before), string(out.Status)))
	return out, nil
}

// UpdateStatus : réservé au livreur assigné ou à un admin.
// PickedUp fait passer la commande en Shipped, Delivered en Completed.
func (s *ShipmentService) UpdateStatus(ctx context.Context, id uuid.UUID, actor string, isAdmin bool, req models.UpdateShipmentStatusRequest) (*models.Shipment, error) {
	next, err := models.ParseShipmentStatus(string(req.Status))
	if err != nil {
		return nil, apperr.FieldError("status", err.Error())
	}

	var out *models.Shipment
	var order *models.Order
	var before models.ShipmentStatus
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		sh, err := tx.Shipments().Get(ctx, id)
		if err != nil {
			return notFound(err, "Expédition introuvable")
		}
		if !isAdmin && (sh.ShipperID == nil || *sh.ShipperID != actor) {
			return apperr.Forbidden("Vous n'êtes pas le livreur de cette expédition")
		}
		if !sh.Status.CanTransitionTo(next) {
			return apperr.Conflict("Transition interdite : " + string(sh.Status) + " → " + string(next))
		}

		before = sh.Status
		now := s.now()
		sh.Status = next
		sh.UpdatedAt = now
		if next == models.ShipmentDelivered {
			sh.DeliveredAt = &now
		}
		if err := tx.Shipments().Update(ctx, sh); err != nil {
			return err
		}
		out = sh

		var from, to models.OrderStatus
		switch next {
		case models.ShipmentPickedUp:
			from, to = models.OrderPaid, models.OrderShipped
		case models.ShipmentDelivered:
			from, to = models.OrderShipped, models.OrderCompleted
		default:
			return nil
		}
		o, err := tx.Orders().GetForUpdate(ctx, sh.OrderID)
		if err != nil {
			return err
		}
		if o.Status != from {
			return apperr.Conflict("La commande n'est pas au statut attendu (" + string(o.Status) + ")")
		}
		if err := tx.Orders().TransitionStatus(ctx, o.ID, from, to, ""); err != nil {
			return err
		}
		o.Status = to
		order = o
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}

	log.Printf("📦 Expédition %s : %s → %s", out.TrackingCode, before, next)
	s.record(ctx, audit.NewEntry(audit.ResourceShipment, id.String(), audit.ActionShipmentStatus, actor, string(before), string(next)))

	if req.Latitude != nil && req.Longitude != nil {
		s.addPoint(ctx, out, *req.Latitude, *req.Longitude, req.Note)
	}

	if order != nil {
		s.record(ctx, audit.NewEntry(audit.ResourceOrder, order.ID.String(), audit.ActionOrderStatus, actor, "", string(order.Status)))
		if order.Status == models.OrderShipped {
			s.dispatcher.Dispatch(NewEvent(EventOrderShipped, *order))
		} else {
			s.dispatcher.Dispatch(NewEvent(EventOrderDelivered, *order))
		}
	}
	return out, nil
}

// AddTrackingPoint enregistre une position tant que l'expédition est en cours
func (s *ShipmentService) AddTrackingPoint(ctx context.Context, id uuid.UUID, actor string, isAdmin bool, req models.TrackingPointRequest) (*models.TrackingPoint, error) {
	sh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && (sh.ShipperID == nil || *sh.ShipperID != actor) {
		return nil, apperr.Forbidden("Vous n'êtes pas le livreur de cette expédition")
	}
	if sh.Status.IsTerminal() {
		return nil, apperr.Conflict("Expédition terminée")
	}
	p := models.TrackingPoint{
		ShipmentID: sh.ID,
		RecordedAt: s.now(),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Status:     sh.Status,
		Note:       req.Note,
	}
	if err := s.tracking.Add(ctx, p); err != nil {
		return nil, internal(err)
	}
	return &p, nil
}

func (s *ShipmentService) addPoint(ctx context.Context, sh *models.Shipment, lat, lng float64, note string) {
	err := s.tracking.Add(ctx, models.TrackingPoint{
		ShipmentID: sh.ID,
		RecordedAt: s.now(),
		Latitude:   lat,
		Longitude:  lng,
		Status:     sh.Status,
		Note:       note,
	})
	if err != nil {
		log.Printf("⚠️ Point de suivi non enregistré pour %s: %v", sh.TrackingCode, err)
	}
}

// Track : vue publique par code de suivi, points dans l'ordre chronologique
func (s *ShipmentService) Track(ctx context.Context, code string) (*models.TrackingInfo, error) {
	sh, err := s.store.Shipments().GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "Code de suivi inconnu")
	}
	points, err := s.tracking.List(ctx, sh.ID)
	if err != nil {
		return nil, internal(err)
	}
	return &models.TrackingInfo{Shipment: sh, Points: points}, nil
}

func (s *ShipmentService) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}
