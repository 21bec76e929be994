package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadMemoryDriverSkipsDBVars(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "MEMORY")
	t.Setenv("EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := Load()
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Empty(t, cfg.DBHost)
	assert.Equal(t, "kafka", cfg.Events.Broker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
}

func TestLoadUsesDSNWhenSet(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://u:p@db:5432/market")

	cfg := Load()
	assert.Equal(t, "postgres://u:p@db:5432/market", cfg.DBDSN)
	assert.Equal(t, "none", cfg.Events.Broker)
}

func TestLoadConsumerNeedsNoServerVars(t *testing.T) {
	t.Setenv("EVENTS_BROKER", "Kafka")
	t.Setenv("KAFKA_TOPIC", "market.events")
	t.Setenv("ACTIVITY_LOG", "/var/log/market/activity.log")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadConsumer()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "kafka", cfg.Events.Broker)
	assert.Equal(t, "market.events", cfg.Events.KafkaTopic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "/var/log/market/activity.log", cfg.Events.ActivityLog)
}

func TestRateLimitDefaultsAndClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_WRITE_REFILL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	rl := LoadRateLimitConfig()
	assert.False(t, rl.Enabled)
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 10*time.Second, rl.WriteRefill)
	assert.Equal(t, 50*time.Second, rl.TTL)
	assert.Equal(t, "ip_user_route", rl.KeyStrategy)
}

func TestCacheConfigRoutes(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.True(t, c.Cacheable("/v1/listings"))
	assert.True(t, c.Cacheable("/v1/categories"))
	assert.True(t, c.Cacheable("/v1/tags/popular"))
	assert.False(t, c.Cacheable("/v1/listings/:id"))
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, time.Minute, envDur("X_DUR", time.Minute))
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, "d", envStr("X_UNSET_FOR_TEST", "d"))
}
