package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	StoreDriver string // "postgres" | "memory"
	CORSOrigins []string

	DatabaseURL string

	ScyllaHosts    []string
	ScyllaKeyspace string
	ScyllaUsername string
	ScyllaPassword string

	RedisHost     string
	RedisPassword string

	ElasticURL      string
	ElasticUser     string
	ElasticPassword string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	MinIOBucket    string

	KafkaBrokers    []string
	KafkaOrderTopic string

	JWTSecret string

	StripeSecretKey     string
	StripeWebhookSecret string

	QR QRConfig

	PaymentMemoPrefix     string
	PaymentExpireAfter    time.Duration
	PaymentSweepInterval  time.Duration
	PaymentCallbackSecret string

	CartStaleAfter    time.Duration
	CartSweepInterval time.Duration

	Shipping ShippingConfig
	SMTP     SMTPConfig

	InvoicePDFEnabled bool
}

type QRConfig struct {
	BaseURL     string
	BankCode    string
	AccountNo   string
	AccountName string
	Template    string
	Timeout     time.Duration
}

// ShippingConfig : montants en đồng
type ShippingConfig struct {
	BaseFee       int64
	IncludedGrams int
	StepGrams     int
	StepFee       int64
	FreeThreshold int64 // 0 = livraison jamais gratuite
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s SMTPConfig) Enabled() bool { return s.Host != "" }

// Load charge le .env (s'il existe) puis lit la configuration typée
func Load() *Config {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
	return FromEnv()
}

// FromEnv lit uniquement l'environnement courant
func FromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		CORSOrigins: getList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		ScyllaHosts:    getList("SCYLLA_HOSTS", nil),
		ScyllaKeyspace: os.Getenv("SCYLLA_KS_TRACKING_KEYSPACE"),
		ScyllaUsername: os.Getenv("SCYLLA_USERNAME"),
		ScyllaPassword: os.Getenv("SCYLLA_PASSWORD"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ElasticURL:      os.Getenv("ELASTIC_URL"),
		ElasticUser:     os.Getenv("ELASTIC_USER"),
		ElasticPassword: os.Getenv("ELASTIC_PASSWORD"),

		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:    getBool("MINIO_USE_SSL", false),
		MinIOBucket:    getEnv("MINIO_BUCKET", "bookstore"),

		KafkaBrokers:    getList("KAFKA_BROKERS", nil),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "bookstore.orders"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		QR: QRConfig{
			BaseURL:     getEnv("QR_BASE_URL", "https://img.vietqr.io/image"),
			BankCode:    os.Getenv("QR_BANK_CODE"),
			AccountNo:   os.Getenv("QR_ACCOUNT_NO"),
			AccountName: os.Getenv("QR_ACCOUNT_NAME"),
			Template:    getEnv("QR_TEMPLATE", "compact2"),
			Timeout:     getDuration("QR_TIMEOUT", 10*time.Second),
		},

		PaymentMemoPrefix:     strings.ToUpper(getEnv("PAYMENT_MEMO_PREFIX", "BKS")),
		PaymentExpireAfter:    getDuration("PAYMENT_EXPIRE_AFTER", 15*time.Minute),
		PaymentSweepInterval:  getDuration("PAYMENT_SWEEP_INTERVAL", time.Minute),
		PaymentCallbackSecret: os.Getenv("PAYMENT_CALLBACK_SECRET"),

		CartStaleAfter:    getDuration("CART_STALE_AFTER", 30*24*time.Hour),
		CartSweepInterval: getDuration("CART_SWEEP_INTERVAL", time.Hour),

		Shipping: ShippingConfig{
			BaseFee:       getInt64("SHIPPING_BASE_FEE", 30000),
			IncludedGrams: int(getInt64("SHIPPING_INCLUDED_GRAMS", 1000)),
			StepGrams:     int(getInt64("SHIPPING_STEP_GRAMS", 500)),
			StepFee:       getInt64("SHIPPING_STEP_FEE", 5000),
			FreeThreshold: getInt64("SHIPPING_FREE_THRESHOLD", 500000),
		},

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     int(getInt64("SMTP_PORT", 587)),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@bookstore.local"),
		},

		InvoicePDFEnabled: getBool("INVOICE_PDF_ENABLED", false),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️ %s invalide (%q), valeur par défaut utilisée", key, v)
		return def
	}
	return b
}

func getInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		log.Printf("⚠️ %s invalide (%q), valeur par défaut utilisée", key, v)
		return def
	}
	return n
}

// getDuration accepte "15m", "10s" ou un nombre de secondes
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("⚠️ %s invalide (%q), valeur par défaut utilisée", key, v)
	return def
}
