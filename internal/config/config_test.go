package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("APP_ENV", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.TxInitialBackoff)
	assert.Equal(t, 500*time.Millisecond, cfg.TxMaxBackoff)
	assert.False(t, cfg.EventsEnabled)
	assert.Equal(t, "logs", cfg.EventsLogDir)
}

func TestLoadReportsEveryProblem(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "cinema")
	t.Setenv("TX_MAX_ATTEMPTS", "many")
	t.Setenv("EVENTS_ENABLED", "perhaps")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"DB_USER", "DB_HOST", "TX_MAX_ATTEMPTS", "EVENTS_ENABLED"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "DB_NAME")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "firestore")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestAMQPURLFallback(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "amqp://u:p@broker:5672/", cfg.AMQPURL)
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 2*time.Second, rl.RefillInterval)
	assert.Equal(t, 10*time.Second, rl.TTL)
	assert.InDelta(t, 0.5, rl.PerSecond(), 1e-9)
}

func TestCacheConfigPaths(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_PATHS", "/v1/films , ")
	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.Equal(t, []string{"/v1/films"}, c.PathPrefixes)
}
