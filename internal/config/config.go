package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"busticket/internal/cache"
	"busticket/internal/database"
	"busticket/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	CORSOrigins    []string

	Database      database.Config
	NATS          messaging.Config
	Cache         cache.Config
	Elasticsearch ElasticsearchConfig
	Auth          AuthConfig
	Booking       BookingConfig
}

// AuthConfig - проверка JWT токенов
type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

// BookingConfig - параметры движка бронирования
type BookingConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "busticket"),
			Password:           getEnv("DB_PASSWORD", "busticket"),
			DBName:             getEnv("DB_NAME", "busticket"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", false),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "busticket"),
			ClientID:  getEnv("NATS_CLIENT_ID", "busticket-api"),
		},

		Cache: cache.Config{
			Enabled:      getEnvBool("VALKEY_ENABLED", false),
			Addr:         getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:     getEnv("VALKEY_PASSWORD", ""),
			UsersHashKey: getEnv("VALKEY_USERS_HASH_KEY", "users:auth"),
			SeatMapTTL:   time.Duration(getEnvInt("SEATMAP_CACHE_TTL_SEC", 30)) * time.Second,
		},

		Elasticsearch: loadElasticsearchConfig(),

		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			CookieName: getEnv("AUTH_COOKIE_NAME", "accessToken"),
		},

		Booking: BookingConfig{
			MaxRetries:   getEnvInt("BOOKING_MAX_RETRIES", 3),
			RetryBackoff: time.Duration(getEnvInt("BOOKING_RETRY_BACKOFF_MS", 20)) * time.Millisecond,
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration понимает time.ParseDuration ("5s", "250ms")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvList разбирает список через запятую
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
