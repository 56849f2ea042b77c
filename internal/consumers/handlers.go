package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"busticket/internal/models"

	"github.com/nats-io/stan.go"
)

// SeatMapInvalidator is satisfied by service.BusService.
type SeatMapInvalidator interface {
	InvalidateSeatMap(ctx context.Context, busID int64) error
}

// BusReindexer is satisfied by service.RouteService.
type BusReindexer interface {
	ReindexBus(ctx context.Context, busID int64) error
}

var errMalformed = errors.New("malformed event")

type Handlers struct {
	seatMaps SeatMapInvalidator
	routes   BusReindexer
	timeout  time.Duration
}

func NewHandlers(seatMaps SeatMapInvalidator, routes BusReindexer) *Handlers {
	return &Handlers{
		seatMaps: seatMaps,
		routes:   routes,
		timeout:  10 * time.Second,
	}
}

func (h *Handlers) HandleBookingCreated(m *stan.Msg) {
	h.handle(m, models.EventBookingCreated)
}

func (h *Handlers) HandleBookingCancelled(m *stan.Msg) {
	h.handle(m, models.EventBookingCancelled)
}

// handle подтверждает сообщение после обработки. Битые сообщения тоже
// подтверждаются; при прочих ошибках NATS доставит сообщение повторно.
func (h *Handlers) handle(m *stan.Msg, subject string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.Process(ctx, subject, m.Data)
	if err != nil && !errors.Is(err, errMalformed) {
		slog.Error("Failed to process event, leaving it for redelivery",
			"subject", subject, "sequence", m.Sequence, "error", err)
		return
	}

	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack event", "subject", subject, "sequence", m.Sequence, "error", err)
	}
}

// Process refreshes the read models touched by a booking event: the bus's
// cached seat map and the search documents of its routes.
func (h *Handlers) Process(ctx context.Context, subject string, data []byte) error {
	busID, err := decodeBusID(subject, data)
	if err != nil {
		slog.Error("Dropping malformed event", "subject", subject, "error", err)
		return err
	}

	slog.Info("Processing booking event", "subject", subject, "bus_id", busID)

	if err := h.seatMaps.InvalidateSeatMap(ctx, busID); err != nil {
		return fmt.Errorf("invalidate seat map of bus %d: %w", busID, err)
	}
	if err := h.routes.ReindexBus(ctx, busID); err != nil {
		return fmt.Errorf("reindex routes of bus %d: %w", busID, err)
	}
	return nil
}

func decodeBusID(subject string, data []byte) (int64, error) {
	var busID int64
	switch subject {
	case models.EventBookingCreated:
		var event models.BookingCreatedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return 0, fmt.Errorf("%w: %v", errMalformed, err)
		}
		busID = event.BusID
	case models.EventBookingCancelled:
		var event models.BookingCancelledEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return 0, fmt.Errorf("%w: %v", errMalformed, err)
		}
		busID = event.BusID
	default:
		return 0, fmt.Errorf("%w: unexpected subject %q", errMalformed, subject)
	}

	if busID <= 0 {
		return 0, fmt.Errorf("%w: event has no bus id", errMalformed)
	}
	return busID, nil
}
