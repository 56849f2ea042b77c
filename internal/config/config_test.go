package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 3, cfg.Booking.MaxRetries)
	assert.Equal(t, "accessToken", cfg.Auth.CookieName)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Elasticsearch.Enabled)
	assert.Equal(t, "routes", cfg.Elasticsearch.Index)
	assert.Equal(t, 30*time.Second, cfg.Cache.SeatMapTTL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BOOKING_MAX_RETRIES", "5")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("VALKEY_ENABLED", "1")
	t.Setenv("SEATMAP_CACHE_TTL_SEC", "10")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.Booking.MaxRetries)
	assert.True(t, cfg.NATS.Enabled)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Cache.SeatMapTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestGetEnvBoolInvalid(t *testing.T) {
	t.Setenv("SOME_FLAG", "maybe")
	assert.True(t, getEnvBool("SOME_FLAG", true))
}

func TestElasticsearchTimeout(t *testing.T) {
	t.Setenv("ELASTICSEARCH_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, Load().Elasticsearch.StartupTimeout())

	t.Setenv("ELASTICSEARCH_TIMEOUT", "-1s")
	assert.Equal(t, defaultElasticsearchTimeout, Load().Elasticsearch.StartupTimeout())

	assert.Equal(t, defaultElasticsearchTimeout, ElasticsearchConfig{}.StartupTimeout())
}
