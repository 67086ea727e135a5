package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad tests the Load function which reads from environment variables.
func TestLoad(t *testing.T) {
	// Clear existing env vars that might interfere
	os.Clearenv()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, DefaultRoutesURL, cfg.DatasetConfig.RoutesURL)
		assert.Equal(t, DefaultAirportsURL, cfg.DatasetConfig.AirportsURL)
		assert.Equal(t, "ATL", cfg.DatasetConfig.DefaultAirport)
		assert.Equal(t, 90*time.Second, cfg.DatasetConfig.FetchTimeout)
		assert.Equal(t, 4, cfg.DatasetConfig.RetryMax)
		assert.Equal(t, "redis", cfg.RedisConfig.Host)
		assert.Equal(t, "6379", cfg.RedisConfig.Port)
		assert.Equal(t, 0, cfg.RedisConfig.DB)
		assert.Equal(t, "routemap_workers", cfg.RedisConfig.QueueGroup)
		assert.Equal(t, 5*time.Second, cfg.RedisConfig.QueueBlockTimeout)
		assert.Equal(t, 2*time.Minute, cfg.RedisConfig.QueueVisibilityTimeout)
		assert.Equal(t, 5*time.Minute, cfg.RedisConfig.ResponseCacheTTL)
		assert.False(t, cfg.PostgresConfig.Enabled)
		assert.Equal(t, "postgres", cfg.PostgresConfig.Host)
		assert.False(t, cfg.Neo4jConfig.Enabled)
		assert.Equal(t, "bolt://neo4j:7687", cfg.Neo4jConfig.URI)
		assert.Equal(t, 2, cfg.WorkerConfig.Concurrency)
		assert.Equal(t, 3, cfg.WorkerConfig.MaxRetries)
		assert.Equal(t, 30*time.Second, cfg.WorkerConfig.RetryDelay)
		assert.Equal(t, 10*time.Minute, cfg.WorkerConfig.JobTimeout)
		assert.Equal(t, "", cfg.WorkerConfig.RefreshCron)
		assert.True(t, cfg.CacheEnabled)
		assert.True(t, cfg.WorkerEnabled)
		assert.False(t, cfg.AdminAuthConfig.Enabled)
	})

	t.Run("environment variable override", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("ROUTES_URL", "https://example.com/routes.csv")
		t.Setenv("AIRPORTS_URL", "https://example.com/airports.geojson")
		t.Setenv("DEFAULT_AIRPORT", "ord")
		t.Setenv("REDIS_HOST", "cache.example.com")
		t.Setenv("DB_ENABLED", "true")
		t.Setenv("DB_HOST", "db.example.com")
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("NEO4J_ENABLED", "true")
		t.Setenv("NEO4J_URI", "neo4j://neo.example.com:7687")
		t.Setenv("WORKER_CONCURRENCY", "10")
		t.Setenv("WORKER_ENABLED", "false")
		t.Setenv("REFRESH_CRON", "0 3 * * *")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "https://example.com/routes.csv", cfg.DatasetConfig.RoutesURL)
		assert.Equal(t, "https://example.com/airports.geojson", cfg.DatasetConfig.AirportsURL)
		assert.Equal(t, "ORD", cfg.DatasetConfig.DefaultAirport, "default airport is upper-cased")
		assert.Equal(t, "cache.example.com", cfg.RedisConfig.Host)
		assert.True(t, cfg.PostgresConfig.Enabled)
		assert.Equal(t, "db.example.com", cfg.PostgresConfig.Host)
		assert.Equal(t, "secret", cfg.PostgresConfig.Password)
		assert.True(t, cfg.Neo4jConfig.Enabled)
		assert.Equal(t, "neo4j://neo.example.com:7687", cfg.Neo4jConfig.URI)
		assert.Equal(t, 10, cfg.WorkerConfig.Concurrency)
		assert.False(t, cfg.WorkerEnabled)
		assert.Equal(t, "0 3 * * *", cfg.WorkerConfig.RefreshCron)
	})

	t.Run("invalid durations fall back to defaults", func(t *testing.T) {
		t.Setenv("REDIS_QUEUE_BLOCK_TIMEOUT", "bogus")
		t.Setenv("REDIS_QUEUE_VISIBILITY_TIMEOUT", "also-bogus")
		t.Setenv("RESPONSE_CACHE_TTL", "nope")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 5*time.Second, cfg.RedisConfig.QueueBlockTimeout)
		assert.Equal(t, 2*time.Minute, cfg.RedisConfig.QueueVisibilityTimeout)
		assert.Equal(t, 5*time.Minute, cfg.RedisConfig.ResponseCacheTTL)
	})

	t.Run("whitespace values use defaults", func(t *testing.T) {
		t.Setenv("PORT", "   ")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
	})
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	assert.Equal(t, "test", cfg.Environment)
	assert.False(t, cfg.WorkerEnabled)
	assert.Equal(t, "ATL", cfg.DatasetConfig.DefaultAirport)
}
