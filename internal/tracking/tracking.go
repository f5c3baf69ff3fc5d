// Package tracking conserve les points de suivi GPS des expéditions.
package tracking

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
)

type Store interface {
	Add(ctx context.Context, p models.TrackingPoint) error
	// List renvoie les points du plus ancien au plus récent
	List(ctx context.Context, shipmentID uuid.UUID) ([]models.TrackingPoint, error)
}

// =============================================
// SCYLLA DB
// =============================================

const createTrackingTable = `
	CREATE TABLE IF NOT EXISTS tracking_points (
		shipment_id uuid,
		recorded_at timestamp,
		latitude double,
		longitude double,
		status text,
		note text,
		PRIMARY KEY (shipment_id, recorded_at)
	) WITH CLUSTERING ORDER BY (recorded_at ASC)`

type ScyllaStore struct {
	session *gocql.Session
}

func NewScyllaStore(session *gocql.Session) (*ScyllaStore, error) {
	if err := session.Query(createTrackingTable).Exec(); err != nil {
		return nil, fmt.Errorf("création table tracking_points: %w", err)
	}
	log.Println("✅ Table tracking_points prête")
	return &ScyllaStore{session: session}, nil
}

func (s *ScyllaStore) Add(ctx context.Context, p models.TrackingPoint) error {
	return s.session.Query(`
		INSERT INTO tracking_points (shipment_id, recorded_at, latitude, longitude, status, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		gocql.UUID(p.ShipmentID), p.RecordedAt, p.Latitude, p.Longitude, string(p.Status), p.Note,
	).WithContext(ctx).Exec()
}

func (s *ScyllaStore) List(ctx context.Context, shipmentID uuid.UUID) ([]models.TrackingPoint, error) {
	iter := s.session.Query(`
		SELECT recorded_at, latitude, longitude, status, note
		FROM tracking_points WHERE shipment_id = ?`, gocql.UUID(shipmentID)).
		WithContext(ctx).Iter()

	points := []models.TrackingPoint{}
	var p models.TrackingPoint
	var status string
	for iter.Scan(&p.RecordedAt, &p.Latitude, &p.Longitude, &status, &p.Note) {
		p.ShipmentID = shipmentID
		p.Status = models.ShipmentStatus(status)
		points = append(points, p)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return points, nil
}

// =============================================
// MÉMOIRE (tests, ScyllaDB non configuré)
// =============================================

type MemoryStore struct {
	mu     sync.RWMutex
	points map[uuid.UUID][]models.TrackingPoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: map[uuid.UUID][]models.TrackingPoint{}}
}

func (m *MemoryStore) Add(_ context.Context, p models.TrackingPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[p.ShipmentID] = append(m.points[p.ShipmentID], p)
	return nil
}

func (m *MemoryStore) List(_ context.Context, shipmentID uuid.UUID) ([]models.TrackingPoint, error) {
	m.mu.RLock()
	out := append([]models.TrackingPoint{}, m.points[shipmentID]...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}
