package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"bookstore_back_end/internal/models"
)

var (
	ErrNotFound = errors.New("repository: enregistrement introuvable")
	// ErrConflict : contrainte d'unicité violée ou condition de mise à jour non satisfaite
	ErrConflict = errors.New("repository: conflit")
)

// Querier est satisfait par *pgxpool.Pool et pgx.Tx
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store donne accès aux repositories. WithTx exécute fn dans une transaction :
// fn doit utiliser le Store reçu, toute erreur annule l'ensemble.
type Store interface {
	Books() BookRepository
	Carts() CartRepository
	Coupons() CouponRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Shipments() ShipmentRepository
	Comments() CommentRepository
	Notifications() NotificationRepository
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type BookFilter struct {
	Limit           int // 0 = pas de limite
	Offset          int
	IncludeInactive bool
}

type BookRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Book, error)
	// GetForUpdate verrouille la ligne jusqu'à la fin de la transaction
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context, f BookFilter) ([]models.Book, error)
	Create(ctx context.Context, b *models.Book) error
	Update(ctx context.Context, b *models.Book) error
	// AdjustStock ajoute delta au stock ; ErrConflict si le stock deviendrait négatif
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

type CartRepository interface {
	GetActive(ctx context.Context, userID string) (*models.Cart, error)
	GetActiveForUpdate(ctx context.Context, userID string) (*models.Cart, error)
	// Create renvoie ErrConflict si l'utilisateur a déjà un panier actif
	Create(ctx context.Context, c *models.Cart) error
	UpsertItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, bookID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	Touch(ctx context.Context, cartID uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, cartID uuid.UUID) error
	// DeleteStaleActive supprime les paniers actifs non modifiés depuis before
	DeleteStaleActive(ctx context.Context, before time.Time) (int, error)
}

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Create(ctx context.Context, c *models.Coupon) error
	Update(ctx context.Context, c *models.Coupon) error
	// IncrementUsage est conditionnel au plafond : ErrConflict s'il est atteint
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	DecrementUsage(ctx context.Context, id uuid.UUID) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	// TransitionStatus : check-and-set, ErrConflict si le statut courant n'est plus from
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, reason string) error
	// ListAbandoned : commandes Pending ou AwaitingPayment créées avant before, sans tentative
	// Pending ni tentative créée depuis before
	ListAbandoned(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
}

// PaymentUpdate : champs écrits lors d'une transition de paiement
type PaymentUpdate struct {
	Status          models.PaymentStatus
	TransactionCode *string
	PaidAt          *time.Time
	FailureReason   string
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.PaymentTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	GetByCode(ctx context.Context, code string) (*models.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error)
	// Transition applique upd seulement si le statut courant vaut from.
	// Renvoie false si un autre appel a déjà fait la transition.
	Transition(ctx context.Context, id uuid.UUID, from models.PaymentStatus, upd PaymentUpdate) (bool, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.PaymentTransaction, error)
}

type ShipmentRepository interface {
	Create(ctx context.Context, s *models.Shipment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	GetByTrackingCode(ctx context.Context, code string) (*models.Shipment, error)
	TrackingCodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, s *models.Shipment) error
}

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByBook(ctx context.Context, bookID uuid.UUID) ([]models.Comment, error)
	HasReplies(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	// MarkRead : ErrNotFound si la notification n'appartient pas à userID
	MarkRead(ctx context.Context, id uuid.UUID, userID string) error
}
