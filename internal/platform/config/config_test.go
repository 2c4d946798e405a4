package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.PostgresURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.ActivityDisabled)
	assert.NotEmpty(t, cfg.IPLookupURL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LIBRIS_ADDR", ":9090")
	t.Setenv("LIBRIS_POSTGRES_URL", "postgres://localhost/libris")
	t.Setenv("LIBRIS_KAFKA_BROKERS", " broker-1:9092 ,broker-2:9092, broker-1:9092 ,")
	t.Setenv("LIBRIS_ACTIVITY_DISABLED", "true")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "postgres://localhost/libris", cfg.PostgresURL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.ActivityDisabled)
}
