package config

import (
	"time"
)

const defaultElasticsearchTimeout = 10 * time.Second

// ElasticsearchConfig - индекс маршрутов для поиска по from/to
type ElasticsearchConfig struct {
	Enabled    bool
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	// Timeout ограничивает проверку и создание индекса при старте
	Timeout time.Duration
}

// StartupTimeout возвращает Timeout или значение по умолчанию
func (c ElasticsearchConfig) StartupTimeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultElasticsearchTimeout
	}
	return c.Timeout
}

func loadElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		Enabled:    getEnvBool("ELASTICSEARCH_ENABLED", false),
		URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		Index:      getEnv("ELASTICSEARCH_INDEX", "routes"),
		Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
		Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
		MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		Timeout:    getEnvDuration("ELASTICSEARCH_TIMEOUT", defaultElasticsearchTimeout),
	}
}
