package api

import (
	"errors"
	"fmt"
	"log/slog"

	"busticket/internal/cache"
	"busticket/internal/config"
	"busticket/internal/database"
	"busticket/internal/messaging"
	"busticket/internal/metrics"
	"busticket/internal/repository"
	"busticket/internal/search"
	"busticket/internal/service"
)

// Infra - подключения, общие для API, consumers и busctl.
// Cache и Index равны nil, когда выключены в конфигурации.
type Infra struct {
	DB      *database.DB
	Store   *repository.Store
	NATS    *messaging.NATSClient
	Cache   *cache.ValkeyClient
	Index   *search.ElasticsearchClient
	Metrics *metrics.Metrics
}

// Connect открывает БД, применяет миграции и подключает NATS, Valkey и
// Elasticsearch согласно конфигурации. При ошибке уже открытые подключения
// закрываются.
func Connect(cfg *config.Config) (infra *Infra, err error) {
	infra = &Infra{Metrics: metrics.New()}
	defer func() {
		if err != nil {
			infra.Close()
			infra = nil
		}
	}()

	infra.DB, err = database.Connect(cfg.Database)
	if err != nil {
		return infra, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = infra.DB.RunMigrations(); err != nil {
		return infra, fmt.Errorf("failed to run migrations: %w", err)
	}
	infra.Store = repository.NewStore(infra.DB)

	infra.NATS, err = messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return infra, err
	}

	if cfg.Cache.Enabled {
		infra.Cache, err = cache.NewValkeyClient(cfg.Cache)
		if err != nil {
			return infra, err
		}
		slog.Info("Valkey cache enabled", "addr", cfg.Cache.Addr)
	}

	if cfg.Elasticsearch.Enabled {
		infra.Index, err = search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			return infra, err
		}
		slog.Info("Elasticsearch route index enabled", "url", cfg.Elasticsearch.URL, "index", cfg.Elasticsearch.Index)
	}

	return infra, nil
}

// Services собирает сервисный слой. Выключенные кеш и индекс передаются как
// nil-интерфейсы, а не как nil-указатели.
func (i *Infra) Services(cfg *config.Config) *service.Services {
	deps := service.Dependencies{
		Store:     i.Store,
		Publisher: i.NATS,
		Metrics:   i.Metrics,
		Booking: service.BookingOptions{
			MaxRetries:   cfg.Booking.MaxRetries,
			RetryBackoff: cfg.Booking.RetryBackoff,
		},
	}
	if i.Cache != nil {
		deps.Cache = i.Cache
	}
	if i.Index != nil {
		deps.Index = i.Index
	}
	return service.NewServices(deps)
}

// Close закрывает все открытые подключения
func (i *Infra) Close() error {
	var errs []error
	if i.NATS != nil {
		if err := i.NATS.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close NATS: %w", err))
		}
	}
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close Valkey: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
