package consumers

import (
	"context"
	"log/slog"

	"busticket/internal/api"
	"busticket/internal/config"
	"busticket/internal/models"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

type ConsumerService struct {
	infra    *api.Infra
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	infra, err := api.Connect(cfg)
	if err != nil {
		return nil, err
	}

	services := infra.Services(cfg)

	return &ConsumerService{
		infra:    infra,
		handlers: NewHandlers(services.Buses, services.Routes),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventBookingCreated, cs.handlers.HandleBookingCreated},
		{models.EventBookingCancelled, cs.handlers.HandleBookingCancelled},
	}

	for _, s := range subscriptions {
		sub, err := cs.infra.NATS.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- cs.infra.Close() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
