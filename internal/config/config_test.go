package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PAYMENT_EXPIRE_AFTER", "")
	t.Setenv("SHIPPING_FREE_THRESHOLD", "")
	t.Setenv("PAYMENT_MEMO_PREFIX", "")

	cfg := FromEnv()

	assert.Equal(t, 15*time.Minute, cfg.PaymentExpireAfter)
	assert.Equal(t, int64(30000), cfg.Shipping.BaseFee)
	assert.Equal(t, int64(500000), cfg.Shipping.FreeThreshold)
	assert.Equal(t, "BKS", cfg.PaymentMemoPrefix)
	assert.Equal(t, 10*time.Second, cfg.QR.Timeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PAYMENT_EXPIRE_AFTER", "30m")
	t.Setenv("QR_TIMEOUT", "5")
	t.Setenv("SHIPPING_FREE_THRESHOLD", "0")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("PAYMENT_MEMO_PREFIX", "shop")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := FromEnv()

	assert.Equal(t, 30*time.Minute, cfg.PaymentExpireAfter)
	assert.Equal(t, 5*time.Second, cfg.QR.Timeout)
	assert.Equal(t, int64(0), cfg.Shipping.FreeThreshold)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "SHOP", cfg.PaymentMemoPrefix)
	assert.True(t, cfg.MinIOUseSSL)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PAYMENT_EXPIRE_AFTER", "bientôt")
	t.Setenv("SHIPPING_BASE_FEE", "-5")

	cfg := FromEnv()

	assert.Equal(t, 15*time.Minute, cfg.PaymentExpireAfter)
	assert.Equal(t, int64(30000), cfg.Shipping.BaseFee)
}
