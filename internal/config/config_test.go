package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendLocal, cfg.ChangeFeed.Backend)
	assert.Equal(t, BackendSQL, cfg.Stock.Backend)
	assert.Equal(t, 300*time.Millisecond, cfg.Subscription.Debounce)
	assert.Equal(t, devJWTSecret, cfg.JWT.Secret)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STOCK_BACKEND", "redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SUBSCRIPTION_DEBOUNCE", "250ms")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Stock.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Subscription.Debounce)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadReleaseRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GIN_MODE", "release")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestValidate(t *testing.T) {
	valid := Config{
		ChangeFeed:   ChangeFeedConfig{Backend: BackendLocal},
		Stock:        StockConfig{Backend: BackendSQL},
		Subscription: SubscriptionConfig{Debounce: time.Second},
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.ChangeFeed.Backend = "nats"
	assert.ErrorContains(t, bad.Validate(), "changefeed.backend")

	bad = valid
	bad.Subscription.Debounce = 0
	assert.ErrorContains(t, bad.Validate(), "subscription.debounce")

	bad = valid
	bad.Kafka.Brokers = []string{"k:9092"}
	assert.ErrorContains(t, bad.Validate(), "kafka.topic")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "orders", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/orders?sslmode=disable", d.DSN())
}
