// Package audit enregistre les transitions d'état (commandes, paiements, expéditions)
// et les actions d'administration.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gocql/gocql"
)

// Actions d'audit prédéfinies
const (
	ActionOrderCreate     = "order.create"
	ActionOrderStatus     = "order.status"
	ActionOrderCancel     = "order.cancel"
	ActionPaymentCreate   = "payment.create"
	ActionPaymentStatus   = "payment.status"
	ActionPaymentRefund   = "payment.refund"
	ActionShipmentCreate  = "shipment.create"
	ActionShipmentStatus  = "shipment.status"
	ActionBookCreate      = "book.create"
	ActionBookUpdate      = "book.update"
	ActionCouponCreate    = "coupon.create"
	ActionCouponUpdate    = "coupon.update"
	ActionPaymentsExpired = "payment.expire_sweep"
)

// Ressources d'audit
const (
	ResourceOrder    = "order"
	ResourcePayment  = "payment"
	ResourceShipment = "shipment"
	ResourceBook     = "book"
	ResourceCoupon   = "coupon"
	ResourceSystem   = "system"
)

type Entry struct {
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"` // user_id, "gateway" ou "system"
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Success    bool      `json:"success"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEntry sérialise les valeurs comme le journal d'origine (JSON ou chaîne brute)
func NewEntry(resource, resourceID, action, actor string, oldValue, newValue any) Entry {
	return Entry{
		Resource:   resource,
		ResourceID: resourceID,
		Action:     action,
		Actor:      actor,
		OldValue:   serialize(oldValue),
		NewValue:   serialize(newValue),
		Success:    true,
		Timestamp:  time.Now().UTC(),
	}
}

func serialize(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

type Logger interface {
	// Record n'échoue jamais côté appelant : les erreurs sont journalisées
	Record(ctx context.Context, e Entry)
	List(ctx context.Context, resource, resourceID string, limit int) ([]Entry, error)
}

// =============================================
// SCYLLA DB
// =============================================

const createAuditTable = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		resource text,
		resource_id text,
		id timeuuid,
		action text,
		actor text,
		old_value text,
		new_value text,
		success boolean,
		error_msg text,
		timestamp timestamp,
		PRIMARY KEY ((resource, resource_id), id)
	) WITH CLUSTERING ORDER BY (id DESC)`

type ScyllaLogger struct {
	session *gocql.Session
	wg      sync.WaitGroup
}

func NewScyllaLogger(session *gocql.Session) (*ScyllaLogger, error) {
	if err := session.Query(createAuditTable).Exec(); err != nil {
		return nil, fmt.Errorf("création table audit_logs: %w", err)
	}
	return &ScyllaLogger{session: session}, nil
}

// Record écrit de façon asynchrone
func (l *ScyllaLogger) Record(_ context.Context, e Entry) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := l.session.Query(`
			INSERT INTO audit_logs (resource, resource_id, id, action, actor, old_value, new_value, success, error_msg, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Resource, e.ResourceID, gocql.UUIDFromTime(e.Timestamp), e.Action, e.Actor,
			e.OldValue, e.NewValue, e.Success, e.ErrorMsg, e.Timestamp,
		).WithContext(ctx).Exec()
		if err != nil {
			log.Printf("❌ Erreur enregistrement log audit: %v", err)
		}
	}()
}

// Wait attend la fin des écritures en cours (arrêt du serveur)
func (l *ScyllaLogger) Wait() {
	l.wg.Wait()
}

func (l *ScyllaLogger) List(ctx context.Context, resource, resourceID string, limit int) ([]Entry, error) {
	iter := l.session.Query(`
		SELECT resource, resource_id, action, actor, old_value, new_value, success, error_msg, timestamp
		FROM audit_logs WHERE resource = ? AND resource_id = ? LIMIT ?`,
		resource, resourceID, limit).WithContext(ctx).Iter()

	entries := []Entry{}
	var e Entry
	for iter.Scan(&e.Resource, &e.ResourceID, &e.Action, &e.Actor, &e.OldValue, &e.NewValue,
		&e.Success, &e.ErrorMsg, &e.Timestamp) {
		entries = append(entries, e)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return entries, nil
}

// =============================================
// MÉMOIRE
// =============================================

type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Record(_ context.Context, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// List renvoie les entrées les plus récentes en premier
func (m *MemoryLogger) List(_ context.Context, resource, resourceID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Resource == resource && e.ResourceID == resourceID {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
