package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/gateway"
	"bookstore_back_end/internal/metrics"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

const (
	expireBatchSize = 100
	reasonExpired   = "Paiement expiré"
	reasonUnpaid    = "Aucun paiement abouti dans le délai"
	webhookRejected = "Webhook invalide ou signature incorrecte"
)

type PaymentService struct {
	store      repository.Store
	qr         gateway.QRProvider
	card       gateway.CardProvider
	shipments  *ShipmentService
	dispatcher *Dispatcher
	audit      audit.Logger
	metrics    *metrics.PaymentMetrics
	memoPrefix string
	memoRe     *regexp.Regexp
	now        func() time.Time
}

type PaymentDeps struct {
	QR         gateway.QRProvider
	Card       gateway.CardProvider
	Shipments  *ShipmentService
	Dispatcher *Dispatcher
	Audit      audit.Logger
	Metrics    *metrics.PaymentMetrics
	MemoPrefix string
}

func NewPaymentService(store repository.Store, deps PaymentDeps) *PaymentService {
	prefix := strings.ToUpper(deps.MemoPrefix)
	return &PaymentService{
		store:      store,
		qr:         deps.QR,
		card:       deps.Card,
		shipments:  deps.Shipments,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		memoPrefix: prefix,
		memoRe:     regexp.MustCompile(regexp.QuoteMeta(prefix) + `(ORD[0-9]{12}[A-Z0-9]{4})`),
		now:        nowUTC,
	}
}

// Memo : libellé de virement attendu pour une commande
func (s *PaymentService) Memo(orderNumber string) string {
	return s.memoPrefix + orderNumber
}

// Initiate lance une nouvelle tentative de paiement pour la commande du client
func (s *PaymentService) Initiate(ctx context.Context, orderID uuid.UUID, userID string, provider models.PaymentProvider) (*models.PaymentTransaction, error) {
	if provider == "" {
		provider = models.ProviderVietQR
	}
	if !provider.Valid() {
		return nil, apperr.FieldError("provider", "Fournisseur de paiement inconnu")
	}
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "Commande introuvable")
	}
	if o.UserID != userID {
		return nil, apperr.NotFound("Commande introuvable")
	}
	return s.initiate(ctx, o, provider)
}

func payable(o *models.Order) bool {
	return o.Status == models.OrderPending || o.Status == models.OrderAwaitingPayment
}

func (s *PaymentService) checkInitiable(ctx context.Context, store repository.Store, o *models.Order) error {
	if !payable(o) {
		return apperr.Conflict("La commande n'attend pas de paiement (statut " + string(o.Status) + ")")
	}
	existing, err := store.Payments().ListByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.Status == models.PaymentPending {
			return apperr.Conflict("Un paiement est déjà en cours pour cette commande").
				WithDetails(map[string]any{"payment_id": p.ID.String()})
		}
	}
	return nil
}

// initiate appelle la passerelle avant toute écriture : une panne ne laisse aucune transaction
func (s *PaymentService) initiate(ctx context.Context, o *models.Order, provider models.PaymentProvider) (*models.PaymentTransaction, error) {
	if err := s.checkInitiable(ctx, s.store, o); err != nil {
		return nil, internal(err)
	}

	now := s.now()
	amount := o.Total.IntPart()
	p := &models.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Provider:  provider,
		Method:    provider.Method(),
		Memo:      s.Memo(o.OrderNumber),
		Amount:    o.Total,
		Status:    models.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch provider {
	case models.ProviderVietQR:
		if s.qr == nil {
			return nil, apperr.BadRequest("Paiement par virement non disponible")
		}
		url, err := s.qr.GenerateQR(ctx, amount, p.Memo)
		if err != nil {
			return nil, gatewayError(err)
		}
		p.QRURL = url
	case models.ProviderStripe:
		if s.card == nil {
			return nil, apperr.BadRequest("Paiement par carte non disponible")
		}
		intent, err := s.card.CreateIntent(ctx, amount, o.OrderNumber, map[string]string{
			"order_id":     o.ID.String(),
			"order_number": o.OrderNumber,
		})
		if err != nil {
			return nil, gatewayError(err)
		}
		code := intent.ID
		p.TransactionCode = &code
		p.ClientSecret = intent.ClientSecret
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Orders().GetForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := s.checkInitiable(ctx, tx, locked); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, p); err != nil {
			return err
		}
		if locked.Status == models.OrderPending {
			return tx.Orders().TransitionStatus(ctx, locked.ID, models.OrderPending, models.OrderAwaitingPayment, "")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("La commande a changé entre-temps, réessayez")
		}
		return nil, internal(err)
	}

	log.Printf("💳 Paiement %s initié pour %s (%s, %s)", p.ID, o.OrderNumber, provider, formatVND(p.Amount))
	s.metrics.Observe(string(provider), "initiated")
	s.record(ctx, audit.NewEntry(audit.ResourcePayment, p.ID.String(), audit.ActionPaymentCreate, o.UserID, nil, string(p.Status)))
	return p, nil
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrUnavailable):
		return apperr.Retryable("Service de paiement indisponible, réessayez dans quelques instants", err)
	case errors.Is(err, gateway.ErrStripeDisabled):
		return apperr.BadRequest("Paiement par carte non disponible")
	default:
		return apperr.Internal(err)
	}
}

// Latest renvoie la tentative de paiement la plus récente de la commande
func (s *PaymentService) Latest(ctx context.Context, orderID uuid.UUID, userID string, isAdmin bool) (*models.PaymentTransaction, error) {
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "Commande introuvable")
	}
	if !isAdmin && o.UserID != userID {
		return nil, apperr.NotFound("Commande introuvable")
	}
	list, err := s.store.Payments().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, internal(err)
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("Aucun paiement pour cette commande")
	}
	return &list[0], nil
}

// HandleCallback applique une notification de la passerelle. Rejouer la même notification
// renvoie l'état final sans nouvel effet de bord.
func (s *PaymentService) HandleCallback(ctx context.Context, cb models.CallbackPayload) (*models.PaymentTransition, error) {
	cb.TransactionCode = strings.TrimSpace(cb.TransactionCode)

	p, err := s.correlate(ctx, cb)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return s.result(ctx, p.ID, false)
	}

	if !cb.Amount.IsPositive() {
		return nil, apperr.FieldError("amount", "Montant absent ou invalide")
	}
	if cb.Status != models.GatewaySuccess && cb.Status != models.GatewayFailed {
		return nil, apperr.FieldError("status", "Statut de passerelle inconnu")
	}

	upd := repository.PaymentUpdate{Status: models.PaymentFailed}
	if cb.TransactionCode != "" {
		code := cb.TransactionCode
		upd.TransactionCode = &code
	}
	switch {
	case cb.Status == models.GatewayFailed:
		upd.FailureReason = models.FailureDeclined
	case !cb.Amount.Equal(p.Amount):
		upd.FailureReason = models.FailureAmountMismatch
		log.Printf("⚠️ Montant reçu %s ≠ attendu %s pour le paiement %s", cb.Amount, p.Amount, p.ID)
	default:
		upd.Status = models.PaymentSuccess
		paidAt := s.now()
		if cb.PaidAt != nil {
			paidAt = cb.PaidAt.UTC()
		}
		upd.PaidAt = &paidAt
	}

	var transitioned bool
	var previous models.OrderStatus
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Payments().Transition(ctx, p.ID, models.PaymentPending, upd)
		if err != nil || !ok {
			return err
		}
		transitioned = true
		if upd.Status != models.PaymentSuccess {
			return nil
		}

		o, err := tx.Orders().GetForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}
		previous = o.Status
		if !o.Status.CanTransitionTo(models.OrderPaid) {
			return apperr.Conflict("La commande ne peut plus être payée (statut " + string(o.Status) + ")")
		}
		if err := tx.Orders().TransitionStatus(ctx, o.ID, o.Status, models.OrderPaid, ""); err != nil {
			return err
		}
		o.Status = models.OrderPaid
		_, err = s.shipments.createForOrder(ctx, tx, o)
		return err
	})
	if errors.Is(err, repository.ErrConflict) && upd.TransactionCode != nil {
		return nil, apperr.Conflict("Code de transaction déjà utilisé")
	}
	if err != nil {
		return nil, internal(err)
	}

	res, err := s.result(ctx, p.ID, transitioned)
	if err != nil || !transitioned {
		return res, err
	}

	s.metrics.Observe(string(p.Provider), strings.ToLower(string(upd.Status)))
	s.record(ctx, audit.NewEntry(audit.ResourcePayment, p.ID.String(), audit.ActionPaymentStatus, "gateway",
		string(models.PaymentPending), string(upd.Status)))

	if upd.Status == models.PaymentSuccess {
		log.Printf("✅ Paiement confirmé pour %s", res.Order.OrderNumber)
		s.record(ctx, audit.NewEntry(audit.ResourceOrder, res.Order.ID.String(), audit.ActionOrderStatus, "gateway",
			string(previous), string(models.OrderPaid)))
		evt := NewEvent(EventOrderPaid, *res.Order)
		evt.Payment = res.Payment
		s.dispatcher.Dispatch(evt)
	} else {
		log.Printf("❌ Paiement refusé pour %s: %s", res.Order.OrderNumber, upd.FailureReason)
		evt := NewEvent(EventPaymentFailed, *res.Order)
		evt.Payment = res.Payment
		evt.Reason = upd.FailureReason
		s.dispatcher.Dispatch(evt)
	}
	return res, nil
}

// correlate retrouve la transaction par code, sinon par le mémo contenu dans le message
func (s *PaymentService) correlate(ctx context.Context, cb models.CallbackPayload) (*models.PaymentTransaction, error) {
	if cb.TransactionCode != "" {
		p, err := s.store.Payments().GetByCode(ctx, cb.TransactionCode)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, internal(err)
		}
	}

	m := s.memoRe.FindStringSubmatch(strings.ToUpper(cb.Message))
	if m == nil {
		return nil, apperr.NotFound("Transaction introuvable")
	}
	o, err := s.store.Orders().GetByNumber(ctx, m[1])
	if err != nil {
		return nil, notFound(err, "Transaction introuvable")
	}
	list, err := s.store.Payments().ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, internal(err)
	}
	for i := range list {
		if list[i].Status == models.PaymentPending {
			return &list[i], nil
		}
	}
	if len(list) > 0 {
		return &list[0], nil
	}
	return nil, apperr.NotFound("Transaction introuvable")
}

func (s *PaymentService) result(ctx context.Context, paymentID uuid.UUID, transitioned bool) (*models.PaymentTransition, error) {
	p, err := s.store.Payments().Get(ctx, paymentID)
	if err != nil {
		return nil, internal(err)
	}
	o, err := s.store.Orders().Get(ctx, p.OrderID)
	if err != nil {
		return nil, internal(err)
	}
	return &models.PaymentTransition{Payment: p, Order: o, Transition: transitioned}, nil
}

// HandleStripeWebhook : nil si l'événement ne concerne pas un paiement
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (*models.PaymentTransition, error) {
	if s.card == nil {
		return nil, apperr.BadRequest("Paiement par carte non disponible")
	}
	evt, err := s.card.ParseWebhook(payload, signature)
	if err != nil {
		log.Printf("⚠️ Webhook Stripe rejeté: %v", err)
		return nil, apperr.BadRequest(webhookRejected)
	}
	if evt.Status == "" {
		log.Printf("🔔 Événement Stripe ignoré: %s", evt.Type)
		return nil, nil
	}
	return s.HandleCallback(ctx, evt.Callback())
}

// ExpireStale annule les tentatives restées Pending trop longtemps ; la commande est annulée
// (stock libéré) quand elle n'a plus aucune tentative active. Les commandes sans tentative
// active ni récente (initiation échouée, paiement refusé) sont annulées de la même façon.
// Renvoie le nombre de tentatives expirées plus le nombre de commandes abandonnées annulées.
func (s *PaymentService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	before := s.now().Add(-olderThan)
	pending, err := s.store.Payments().ListPendingBefore(ctx, before, expireBatchSize)
	if err != nil {
		return 0, internal(err)
	}

	expired := 0
	for _, p := range pending {
		cancelled, ok, err := s.expireOne(ctx, p)
		if err != nil {
			log.Printf("❌ Expiration du paiement %s échouée: %v", p.ID, err)
			continue
		}
		if !ok {
			continue
		}
		expired++
		s.metrics.Observe(string(p.Provider), "expired")
		s.record(ctx, audit.NewEntry(audit.ResourcePayment, p.ID.String(), audit.ActionPaymentStatus, "system",
			string(models.PaymentPending), string(models.PaymentCancelled)))
		if cancelled != nil {
			evt := NewEvent(EventOrderCancelled, *cancelled)
			evt.Reason = reasonExpired
			s.dispatcher.Dispatch(evt)
		}
	}

	if expired > 0 {
		log.Printf("🧹 %d paiement(s) expiré(s)", expired)
		s.record(ctx, audit.NewEntry(audit.ResourceSystem, "payments", audit.ActionPaymentsExpired, "system", nil, fmt.Sprint(expired)))
	}

	abandoned, err := s.cancelAbandoned(ctx, before)
	return expired + abandoned, err
}

func (s *PaymentService) cancelAbandoned(ctx context.Context, before time.Time) (int, error) {
	orders, err := s.store.Orders().ListAbandoned(ctx, before, expireBatchSize)
	if err != nil {
		return 0, internal(err)
	}

	n := 0
	for _, candidate := range orders {
		o, previous, err := s.abandonOne(ctx, candidate.ID, before)
		if err != nil {
			log.Printf("❌ Annulation de la commande %s échouée: %v", candidate.OrderNumber, err)
			continue
		}
		if o == nil {
			continue
		}
		n++
		log.Printf("❌ Commande %s annulée : aucun paiement abouti", o.OrderNumber)
		s.record(ctx, audit.NewEntry(audit.ResourceOrder, o.ID.String(), audit.ActionOrderStatus, "system",
			string(previous), string(models.OrderCancelled)))
		evt := NewEvent(EventOrderCancelled, *o)
		evt.Reason = reasonUnpaid
		s.dispatcher.Dispatch(evt)
	}
	if n > 0 {
		log.Printf("🧹 %d commande(s) sans paiement annulée(s)", n)
	}
	return n, nil
}

// abandonOne revérifie sous verrou : une tentative lancée entre-temps garde la commande
func (s *PaymentService) abandonOne(ctx context.Context, orderID uuid.UUID, before time.Time) (*models.Order, models.OrderStatus, error) {
	var cancelled *models.Order
	var previous models.OrderStatus
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !payable(o) {
			return nil
		}
		list, err := tx.Payments().ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, p := range list {
			if p.Status == models.PaymentPending || !p.CreatedAt.Before(before) {
				return nil
			}
		}

		previous = o.Status
		if err := tx.Orders().TransitionStatus(ctx, o.ID, o.Status, models.OrderCancelled, reasonUnpaid); err != nil {
			return err
		}
		if err := releaseOrder(ctx, tx, o); err != nil {
			return err
		}
		o.Status = models.OrderCancelled
		o.CancelReason = reasonUnpaid
		cancelled = o
		return nil
	})
	return cancelled, previous, err
}

func (s *PaymentService) expireOne(ctx context.Context, p models.PaymentTransaction) (*models.Order, bool, error) {
	var cancelled *models.Order
	var ok bool
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		ok, err = tx.Payments().Transition(ctx, p.ID, models.PaymentPending, repository.PaymentUpdate{
			Status:        models.PaymentCancelled,
			FailureReason: models.FailureExpired,
		})
		if err != nil || !ok {
			return err
		}

		others, err := tx.Payments().ListByOrder(ctx, p.OrderID)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.Status == models.PaymentPending {
				return nil
			}
		}

		o, err := tx.Orders().GetForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if !payable(o) {
			return nil
		}
		if err := tx.Orders().TransitionStatus(ctx, o.ID, o.Status, models.OrderCancelled, reasonExpired); err != nil {
			return err
		}
		if err := releaseOrder(ctx, tx, o); err != nil {
			return err
		}
		o.Status = models.OrderCancelled
		o.CancelReason = reasonExpired
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if cancelled != nil {
		log.Printf("❌ Commande %s annulée : paiement expiré", cancelled.OrderNumber)
	}
	return cancelled, ok, nil
}

// settleForCancel : annule les tentatives Pending, rembourse le paiement confirmé.
// Le remboursement carte est appelé en dernier : son échec annule la transaction.
// Renvoie les remboursements passés chez la passerelle, même en cas d'erreur.
func (s *PaymentService) settleForCancel(ctx context.Context, tx repository.Store, o *models.Order, actor string) ([]string, error) {
	list, err := tx.Payments().ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	var refunds []string
	for _, p := range list {
		switch p.Status {
		case models.PaymentPending:
			if _, err := tx.Payments().Transition(ctx, p.ID, models.PaymentPending, repository.PaymentUpdate{
				Status:        models.PaymentCancelled,
				FailureReason: models.FailureOrderCancelled,
			}); err != nil {
				return refunds, err
			}
		case models.PaymentSuccess:
			id, err := s.refund(ctx, tx, p)
			if id != "" {
				refunds = append(refunds, id)
			}
			if err != nil {
				return refunds, err
			}
			log.Printf("💰 Paiement %s remboursé (annulation par %s)", p.ID, actor)
		}
	}
	return refunds, nil
}

// refundKey : stable par paiement, un nouvel essai après un commit raté rejoue le même remboursement
func refundKey(p models.PaymentTransaction) string {
	return "refund-" + p.ID.String()
}

func (s *PaymentService) refund(ctx context.Context, tx repository.Store, p models.PaymentTransaction) (string, error) {
	ok, err := tx.Payments().Transition(ctx, p.ID, models.PaymentSuccess, repository.PaymentUpdate{Status: models.PaymentRefunded})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Conflict("Le paiement a changé entre-temps, réessayez")
	}
	var refundID string
	if p.Provider == models.ProviderStripe && p.TransactionCode != nil {
		if s.card == nil {
			return "", apperr.BadRequest("Paiement par carte non disponible")
		}
		refundID, err = s.card.Refund(ctx, *p.TransactionCode, p.Amount.IntPart(), refundKey(p))
		if err != nil {
			return "", gatewayError(err)
		}
	}
	s.metrics.Observe(string(p.Provider), "refunded")
	return refundID, nil
}

// logUnrecordedRefunds : la passerelle a remboursé mais la transaction locale a échoué
func logUnrecordedRefunds(refunds []string, err error) {
	if err == nil || len(refunds) == 0 {
		return
	}
	log.Printf("❌ Remboursement(s) %v effectué(s) chez Stripe mais non enregistré(s): %v ; relancer la demande rejoue le même remboursement", refunds, err)
}

// Refund (admin) rembourse une commande livrée ; une commande en cours s'annule via Cancel
func (s *PaymentService) Refund(ctx context.Context, orderID uuid.UUID, actor string) (*models.PaymentTransaction, error) {
	var refunded *models.PaymentTransaction
	var refunds []string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "Commande introuvable")
		}
		if !o.Status.IsTerminal() {
			return apperr.Conflict("Commande en cours : annulez-la pour la rembourser")
		}
		list, err := tx.Payments().ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		for i := range list {
			if list[i].Status == models.PaymentSuccess {
				id, err := s.refund(ctx, tx, list[i])
				if id != "" {
					refunds = append(refunds, id)
				}
				if err != nil {
					return err
				}
				refunded = &list[i]
				return nil
			}
		}
		return apperr.Conflict("Aucun paiement confirmé à rembourser")
	})
	logUnrecordedRefunds(refunds, err)
	if err != nil {
		return nil, internal(err)
	}

	log.Printf("💰 Remboursement effectué pour la commande %s par %s", orderID, actor)
	s.record(ctx, audit.NewEntry(audit.ResourcePayment, refunded.ID.String(), audit.ActionPaymentRefund, actor,
		string(models.PaymentSuccess), string(models.PaymentRefunded)))

	p, err := s.store.Payments().Get(ctx, refunded.ID)
	if err != nil {
		return nil, internal(err)
	}
	return p, nil
}

func (s *PaymentService) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}
