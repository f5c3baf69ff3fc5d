package worker

import (
	"context"
	"log"
	"time"
)

// PaymentExpirer est satisfait par *services.PaymentService
type PaymentExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// CartCleaner est satisfait par *services.CartService
type CartCleaner interface {
	CleanupStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentExpiryWorker annule périodiquement les paiements restés en attente
type PaymentExpiryWorker struct {
	payments PaymentExpirer
	after    time.Duration
	interval time.Duration
}

func NewPaymentExpiryWorker(payments PaymentExpirer, after, interval time.Duration) *PaymentExpiryWorker {
	return &PaymentExpiryWorker{payments: payments, after: after, interval: interval}
}

func (w *PaymentExpiryWorker) Run(ctx context.Context) {
	log.Printf("⏱️ Worker d'expiration des paiements démarré (délai %s, toutes les %s)", w.after, w.interval)
	loop(ctx, w.interval, func(ctx context.Context) {
		if _, err := w.process(ctx); err != nil {
			log.Printf("❌ Expiration des paiements échouée: %v", err)
		}
	})
	log.Println("🛑 Worker d'expiration des paiements arrêté")
}

func (w *PaymentExpiryWorker) process(ctx context.Context) (int, error) {
	return w.payments.ExpireStale(ctx, w.after)
}

// CartCleanupWorker supprime les paniers actifs abandonnés
type CartCleanupWorker struct {
	carts    CartCleaner
	after    time.Duration
	interval time.Duration
}

func NewCartCleanupWorker(carts CartCleaner, after, interval time.Duration) *CartCleanupWorker {
	return &CartCleanupWorker{carts: carts, after: after, interval: interval}
}

func (w *CartCleanupWorker) Run(ctx context.Context) {
	log.Printf("⏱️ Worker de nettoyage des paniers démarré (délai %s, toutes les %s)", w.after, w.interval)
	loop(ctx, w.interval, func(ctx context.Context) {
		if _, err := w.process(ctx); err != nil {
			log.Printf("❌ Nettoyage des paniers échoué: %v", err)
		}
	})
	log.Println("🛑 Worker de nettoyage des paniers arrêté")
}

func (w *CartCleanupWorker) process(ctx context.Context) (int, error) {
	n, err := w.carts.CleanupStale(ctx, w.after)
	if err == nil && n > 0 {
		log.Printf("🧹 %d panier(s) abandonné(s) supprimé(s)", n)
	}
	return n, err
}

// loop exécute job à chaque tick jusqu'à l'annulation du contexte
func loop(ctx context.Context, interval time.Duration, job func(ctx context.Context)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}
