package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"

	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/database"
	"bookstore_back_end/internal/gateway"
	"bookstore_back_end/internal/handlers"
	"bookstore_back_end/internal/handlers/admin"
	"bookstore_back_end/internal/kafka"
	"bookstore_back_end/internal/metrics"
	"bookstore_back_end/internal/middleware"
	"bookstore_back_end/internal/repository"
	"bookstore_back_end/internal/repository/memory"
	"bookstore_back_end/internal/repository/postgres"
	"bookstore_back_end/internal/routes"
	"bookstore_back_end/internal/services"
	"bookstore_back_end/internal/tracking"
	"bookstore_back_end/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET manquant dans .env")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	conns, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Connexion aux bases impossible: %v", err)
	}
	defer conns.Close()

	store := newStore(ctx, cfg, conns)
	points, auditLog := newScyllaStores(conns)

	// --- Notifications ---
	var publisher services.Publisher
	var subscriber services.Subscriber
	if conns.Redis != nil {
		publisher = services.NewRedisPublisher(conns.Redis)
		subscriber = services.NewRedisSubscriber(conns.Redis)
	} else {
		broker := services.NewLocalBroker()
		publisher, subscriber = broker, broker
		log.Println("⚠️ Redis absent, notifications temps réel limitées à ce processus")
	}

	sinks := []services.Sink{services.NewInAppSink(store.Notifications()), services.NewPushSink(publisher)}
	if cfg.SMTP.Enabled() {
		sinks = append(sinks, services.NewEmailSink(services.NewSMTPMailer(cfg.SMTP)))
		log.Println("📧 Notifications e-mail activées")
	}
	var orderWriter *kafkago.Writer
	if kc := kafka.NewClient(cfg.KafkaBrokers); kc.Enabled() {
		orderWriter = kc.NewWriter(cfg.KafkaOrderTopic)
		sinks = append(sinks, services.NewKafkaSink(orderWriter))
		log.Println("✅ Événements de commande publiés sur Kafka :", cfg.KafkaOrderTopic)
	}
	dispatcher := services.NewDispatcher(sinks...)

	// --- Passerelles ---
	var card gateway.CardProvider
	if cfg.StripeSecretKey != "" {
		card = gateway.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		log.Println("✅ Stripe initialisé")
	} else {
		log.Println("⚠️ STRIPE_SECRET_KEY absent, paiement par carte désactivé")
	}

	// --- Services ---
	serverMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	pricing := services.NewPricingService(store, services.NewShippingPolicy(cfg.Shipping))
	carts := services.NewCartService(store, pricing, publisher)
	shipments := services.NewShipmentService(store, points, dispatcher, auditLog)
	payments := services.NewPaymentService(store, services.PaymentDeps{
		QR:         gateway.NewQRClient(cfg.QR),
		Card:       card,
		Shipments:  shipments,
		Dispatcher: dispatcher,
		Audit:      auditLog,
		Metrics:    paymentMetrics,
		MemoPrefix: cfg.PaymentMemoPrefix,
	})
	orders := services.NewOrderService(store, pricing, payments, dispatcher, auditLog, publisher)

	var es esapi.Transport
	if conns.Elastic != nil {
		es = conns.Elastic
	}
	catalog := services.NewCatalogService(store, es, services.NewBookCache(store), auditLog)

	var renderer services.PDFRenderer
	if cfg.InvoicePDFEnabled {
		renderer = services.ChromeRenderer{Timeout: 30 * time.Second}
	}
	var objects services.ObjectStore
	if conns.MinIO != nil {
		m, err := services.NewMinioStore(ctx, conns.MinIO, cfg.MinIOBucket)
		if err != nil {
			log.Printf("⚠️ Archivage des factures désactivé: %v", err)
		} else {
			objects = m
		}
	}
	invoices := services.NewInvoiceService(store, cfg.QR, cfg.PaymentMemoPrefix, renderer, objects)

	// --- Workers ---
	go worker.NewPaymentExpiryWorker(payments, cfg.PaymentExpireAfter, cfg.PaymentSweepInterval).Run(ctx)
	go worker.NewCartCleanupWorker(carts, cfg.CartStaleAfter, cfg.CartSweepInterval).Run(ctx)

	// --- HTTP ---
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Metrics(serverMetrics), middleware.ErrorHandler())

	routes.RegisterRoutes(r, routes.Deps{
		API: &handlers.Handler{
			Carts:         carts,
			Orders:        orders,
			Payments:      payments,
			Shipments:     shipments,
			Catalog:       catalog,
			Comments:      services.NewCommentService(store),
			Invoices:      invoices,
			Notifications: services.NewNotificationService(store),
			Subscriber:    subscriber,
		},
		Admin: &admin.Handler{
			Catalog:     catalog,
			Pricing:     pricing,
			Shipments:   shipments,
			Payments:    payments,
			Audit:       auditLog,
			ExpireAfter: cfg.PaymentExpireAfter,
		},
		JWTSecret:      []byte(cfg.JWTSecret),
		CallbackSecret: cfg.PaymentCallbackSecret,
		Limiter:        middleware.NewRateLimiter(conns.Redis),
		Health:         conns.Health,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Println("🚀 Serveur Bookstore lancé sur le port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Serveur HTTP: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("🛑 Arrêt en cours...")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Arrêt du serveur HTTP: %v", err)
	}

	dispatcher.Wait()
	if l, ok := auditLog.(*audit.ScyllaLogger); ok {
		l.Wait()
	}
	if orderWriter != nil {
		if err := orderWriter.Close(); err != nil {
			log.Printf("❌ Fermeture writer Kafka: %v", err)
		}
	}
	log.Println("✅ Serveur arrêté")
}

// newStore : Postgres (schéma appliqué au démarrage) ou mémoire
func newStore(ctx context.Context, cfg *config.Config, conns *database.Connections) repository.Store {
	if cfg.StoreDriver == "memory" {
		log.Println("⚠️ STORE_DRIVER=memory, les données ne survivent pas au redémarrage")
		return memory.New()
	}
	store := postgres.New(conns.Postgres)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("❌ Application du schéma impossible: %v", err)
	}
	log.Println("✅ Schéma PostgreSQL appliqué")
	return store
}

// newScyllaStores : points de suivi et audit sur ScyllaDB, en mémoire si indisponible
func newScyllaStores(conns *database.Connections) (tracking.Store, audit.Logger) {
	if conns.Scylla == nil {
		return tracking.NewMemoryStore(), audit.NewMemoryLogger()
	}
	points, err := tracking.NewScyllaStore(conns.Scylla)
	if err != nil {
		log.Fatalf("❌ Initialisation du suivi ScyllaDB: %v", err)
	}
	auditLog, err := audit.NewScyllaLogger(conns.Scylla)
	if err != nil {
		log.Fatalf("❌ Initialisation de l'audit ScyllaDB: %v", err)
	}
	return points, auditLog
}
