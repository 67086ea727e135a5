package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	HTTPBindAddr    string
	Environment     string
	LoggingConfig   LoggingConfig
	DatasetConfig   DatasetConfig
	RedisConfig     RedisConfig
	PostgresConfig  PostgresConfig
	Neo4jConfig     Neo4jConfig
	WorkerConfig    WorkerConfig
	AdminAuthConfig AdminAuthConfig
	NTFYConfig      NTFYConfig
	CacheEnabled    bool
	WorkerEnabled   bool
	InitSchema      bool
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
}

// DatasetConfig holds route/airport dataset source configuration.
type DatasetConfig struct {
	RoutesURL      string
	AirportsURL    string
	DefaultAirport string // initial panel selection; falls back to first source code when unknown
	FetchTimeout   time.Duration
	RetryMax       int
}

// RedisConfig holds Redis connection and queue configuration.
type RedisConfig struct {
	Enabled                bool
	Host                   string
	Port                   string
	Password               string
	DB                     int
	QueueGroup             string
	QueueStreamPrefix      string
	QueueBlockTimeout      time.Duration
	QueueVisibilityTimeout time.Duration
	ResponseCacheTTL       time.Duration
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Neo4jConfig holds Neo4j connection configuration.
type Neo4jConfig struct {
	Enabled  bool
	URI      string
	User     string
	Password string
}

// WorkerConfig holds refresh worker configuration.
type WorkerConfig struct {
	Concurrency     int
	MaxRetries      int
	RetryDelay      time.Duration
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
	RefreshCron     string // cron expression for periodic dataset refresh; empty disables
}

// AdminAuthConfig holds admin authentication configuration.
type AdminAuthConfig struct {
	Enabled  bool
	Username string
	Password string
	Token    string // Alternative: Bearer token auth
}

// NTFYConfig holds NTFY alert configuration.
type NTFYConfig struct {
	Enabled   bool
	ServerURL string
	Topic     string
	Username  string
	Password  string
}

// Default dataset URLs (opengeos world datasets).
const (
	DefaultRoutesURL   = "https://github.com/opengeos/datasets/releases/download/world/airport_routes.csv"
	DefaultAirportsURL = "https://github.com/opengeos/datasets/releases/download/world/airports.geojson"
)

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	port := getEnv("PORT", "8080")
	httpBindAddr := getEnv("HTTP_BIND_ADDR", "")
	environment := getEnv("ENVIRONMENT", "development")
	cacheEnabled, _ := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	workerEnabled, _ := strconv.ParseBool(getEnv("WORKER_ENABLED", "true"))
	initSchema, _ := strconv.ParseBool(getEnv("INIT_SCHEMA", "true"))

	loggingConfig := LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	fetchTimeout, _ := time.ParseDuration(getEnv("DATASET_FETCH_TIMEOUT", "90s"))
	retryMax, _ := strconv.Atoi(getEnv("DATASET_RETRY_MAX", "4"))
	datasetConfig := DatasetConfig{
		RoutesURL:      getEnv("ROUTES_URL", DefaultRoutesURL),
		AirportsURL:    getEnv("AIRPORTS_URL", DefaultAirportsURL),
		DefaultAirport: strings.ToUpper(getEnv("DEFAULT_AIRPORT", "ATL")),
		FetchTimeout:   fetchTimeout,
		RetryMax:       retryMax,
	}

	redisEnabled, _ := strconv.ParseBool(getEnv("REDIS_ENABLED", "true"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	queueBlockTimeout, err := time.ParseDuration(getEnv("REDIS_QUEUE_BLOCK_TIMEOUT", "5s"))
	if err != nil {
		queueBlockTimeout = 5 * time.Second
	}
	queueVisibilityTimeout, err := time.ParseDuration(getEnv("REDIS_QUEUE_VISIBILITY_TIMEOUT", "2m"))
	if err != nil {
		queueVisibilityTimeout = 2 * time.Minute
	}
	responseCacheTTL, err := time.ParseDuration(getEnv("RESPONSE_CACHE_TTL", "5m"))
	if err != nil {
		responseCacheTTL = 5 * time.Minute
	}

	redisConfig := RedisConfig{
		Enabled:                redisEnabled,
		Host:                   getEnv("REDIS_HOST", "redis"),
		Port:                   getEnv("REDIS_PORT", "6379"),
		Password:               getEnv("REDIS_PASSWORD", ""),
		DB:                     redisDB,
		QueueGroup:             getEnv("REDIS_QUEUE_GROUP", "routemap_workers"),
		QueueStreamPrefix:      getEnv("REDIS_QUEUE_STREAM_PREFIX", "routemap"),
		QueueBlockTimeout:      queueBlockTimeout,
		QueueVisibilityTimeout: queueVisibilityTimeout,
		ResponseCacheTTL:       responseCacheTTL,
	}

	postgresEnabled, _ := strconv.ParseBool(getEnv("DB_ENABLED", "false"))
	postgresConfig := PostgresConfig{
		Enabled:  postgresEnabled,
		Host:     getEnv("DB_HOST", "postgres"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "routemap"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "routemap"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	neo4jEnabled, _ := strconv.ParseBool(getEnv("NEO4J_ENABLED", "false"))
	neo4jConfig := Neo4jConfig{
		Enabled:  neo4jEnabled,
		URI:      getEnv("NEO4J_URI", "bolt://neo4j:7687"),
		User:     getEnv("NEO4J_USER", "neo4j"),
		Password: getEnv("NEO4J_PASSWORD", ""),
	}

	concurrency, _ := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "2"))
	maxRetries, _ := strconv.Atoi(getEnv("WORKER_MAX_RETRIES", "3"))
	retryDelay, _ := time.ParseDuration(getEnv("WORKER_RETRY_DELAY", "30s"))
	jobTimeout, _ := time.ParseDuration(getEnv("WORKER_JOB_TIMEOUT", "10m"))
	shutdownTimeout, _ := time.ParseDuration(getEnv("WORKER_SHUTDOWN_TIMEOUT", "30s"))

	workerConfig := WorkerConfig{
		Concurrency:     concurrency,
		MaxRetries:      maxRetries,
		RetryDelay:      retryDelay,
		JobTimeout:      jobTimeout,
		ShutdownTimeout: shutdownTimeout,
		RefreshCron:     getEnv("REFRESH_CRON", ""),
	}

	adminAuthEnabled, _ := strconv.ParseBool(getEnv("ADMIN_AUTH_ENABLED", "false"))
	adminAuthConfig := AdminAuthConfig{
		Enabled:  adminAuthEnabled,
		Username: getEnv("ADMIN_AUTH_USERNAME", ""),
		Password: getEnv("ADMIN_AUTH_PASSWORD", ""),
		Token:    getEnv("ADMIN_AUTH_TOKEN", ""),
	}

	ntfyEnabled, _ := strconv.ParseBool(getEnv("NTFY_ENABLED", "false"))
	ntfyConfig := NTFYConfig{
		Enabled:   ntfyEnabled,
		ServerURL: getEnv("NTFY_SERVER_URL", "https://ntfy.sh"),
		Topic:     getEnv("NTFY_TOPIC", ""),
		Username:  getEnv("NTFY_USERNAME", ""),
		Password:  getEnv("NTFY_PASSWORD", ""),
	}

	return &Config{
		Port:            port,
		HTTPBindAddr:    httpBindAddr,
		Environment:     environment,
		LoggingConfig:   loggingConfig,
		DatasetConfig:   datasetConfig,
		RedisConfig:     redisConfig,
		PostgresConfig:  postgresConfig,
		Neo4jConfig:     neo4jConfig,
		WorkerConfig:    workerConfig,
		AdminAuthConfig: adminAuthConfig,
		NTFYConfig:      ntfyConfig,
		CacheEnabled:    cacheEnabled,
		WorkerEnabled:   workerEnabled,
		InitSchema:      initSchema,
	}, nil
}

// LoadTestConfig loads test configuration.
func LoadTestConfig() *Config {
	return &Config{
		DatasetConfig: DatasetConfig{
			RoutesURL:      getEnv("ROUTES_URL", DefaultRoutesURL),
			AirportsURL:    getEnv("AIRPORTS_URL", DefaultAirportsURL),
			DefaultAirport: "ATL",
			FetchTimeout:   10 * time.Second,
			RetryMax:       1,
		},
		RedisConfig: RedisConfig{
			Enabled:                true,
			Host:                   getEnv("REDIS_HOST", "localhost"),
			Port:                   getEnv("REDIS_PORT", "6379"),
			QueueGroup:             getEnv("REDIS_QUEUE_GROUP", "routemap_workers"),
			QueueStreamPrefix:      getEnv("REDIS_QUEUE_STREAM_PREFIX", "routemap"),
			QueueBlockTimeout:      5 * time.Second,
			QueueVisibilityTimeout: 2 * time.Minute,
			ResponseCacheTTL:       time.Minute,
		},
		PostgresConfig: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "routemap"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME_TEST", "routemap_test"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Neo4jConfig: Neo4jConfig{
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", ""),
		},
		Environment: "test",
	}
}

// TestConfig returns a default test configuration with workers disabled.
func TestConfig() *Config {
	cfg := LoadTestConfig()
	cfg.WorkerEnabled = false
	return cfg
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if len(strings.TrimSpace(value)) == 0 {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
