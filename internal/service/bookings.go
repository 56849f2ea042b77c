package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	apperrors "busticket/internal/errors"
	"busticket/internal/logger"
	"busticket/internal/metrics"
	"busticket/internal/models"
	"busticket/internal/pricing"
	"busticket/internal/repository"
	"busticket/internal/seatmap"
)

// EventPublisher is satisfied by messaging.NATSClient.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

type BookingOptions struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

type BookingService struct {
	store     repository.BookingStore
	publisher EventPublisher
	cache     SeatMapCache
	metrics   *metrics.Metrics
	opts      BookingOptions
}

// NewBookingService accepts a nil cache.
func NewBookingService(store repository.BookingStore, publisher EventPublisher, cache SeatMapCache, m *metrics.Metrics, opts BookingOptions) *BookingService {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return &BookingService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		metrics:   m,
		opts:      opts,
	}
}

// Create books the requested seats and records the payment in one
// transaction. userID is nil for guest checkout.
func (s *BookingService) Create(ctx context.Context, req *models.CreatePaymentRequest, userID *int64) (*models.Payment, error) {
	start := time.Now()
	log := logger.WithContext(ctx)

	seatNumbers, err := normalizeSeatNumbers(req.BusID, req.SeatNumbers)
	if err == nil {
		err = ValidateCard(req.CardDetails)
	}
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeRejected, time.Since(start))
		return nil, err
	}

	backoff := retry.WithMaxRetries(uint64(s.opts.MaxRetries), retry.NewConstant(s.opts.RetryBackoff))

	var payment *models.Payment
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.IncConflictRetry()
			log.Warn("Retrying booking after seat conflict", "bus_id", req.BusID, "attempt", attempt)
		}

		p, err := s.book(ctx, req.BusID, seatNumbers, req.CardDetails, userID)
		if errors.Is(err, apperrors.ErrConflict) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		s.metrics.ObserveBooking(outcomeOf(err), time.Since(start))
		if apperrors.KindOf(err) == "" {
			err = apperrors.Persistence("booking aborted", err)
		}
		log.Info("Booking failed", "bus_id", req.BusID, "seats", seatNumbers, "error", err)
		return nil, err
	}

	s.metrics.ObserveBooking(metrics.OutcomeConfirmed, time.Since(start))
	log.Info("Booking confirmed",
		"payment_id", payment.ID,
		"reference", payment.Reference,
		"bus_id", payment.BusID,
		"seats", seatNumbers,
		"amount", payment.Amount,
		"guest", payment.IsGuest())

	s.dropSeatMap(ctx, payment.BusID)

	event := models.BookingCreatedEvent{
		PaymentID:   payment.ID,
		Reference:   payment.Reference,
		BusID:       payment.BusID,
		UserID:      payment.UserID,
		SeatNumbers: seatNumbers,
		Amount:      payment.Amount,
		Timestamp:   time.Now(),
	}
	if err := s.publisher.Publish(models.EventBookingCreated, event); err != nil {
		// Log error but don't fail the operation
		log.Error("Failed to publish booking created event",
			"error", err,
			"payment_id", payment.ID,
			"event_type", models.EventBookingCreated)
	}

	return payment, nil
}

// book is a single attempt. A Conflict error means the caller may retry.
func (s *BookingService) book(ctx context.Context, busID int64, seatNumbers []string, card models.CardDetails, userID *int64) (*models.Payment, error) {
	var payment *models.Payment

	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.BookingTx) error {
		bus, err := tx.LockBus(ctx, busID)
		if err != nil {
			return apperrors.Persistence("failed to lock bus", err)
		}
		if bus == nil {
			return apperrors.NotFound("bus")
		}

		seats, err := resolveSeats(bus, seatNumbers)
		if err != nil {
			return err
		}

		breakdown, err := pricing.FromSeats(seats)
		if err != nil {
			return err
		}

		route, err := tx.RouteForBus(ctx, busID)
		if err != nil {
			return apperrors.Persistence("failed to load route", err)
		}

		if err := tx.MarkSeatsBooked(ctx, busID, seatNumbers); err != nil {
			return apperrors.Persistence("failed to book seats", err)
		}

		p := &models.Payment{
			Reference:      uuid.NewString(),
			UserID:         userID,
			BusID:          bus.ID,
			Bus:            summarize(bus),
			Seats:          snapshot(seats),
			Subtotal:       breakdown.Subtotal,
			ServiceFee:     breakdown.ServiceFee,
			ConvenienceFee: breakdown.ConvenienceFee,
			GSTAmount:      breakdown.GSTAmount,
			Amount:         breakdown.Total,
			Card:           card,
			Status:         models.PaymentStatusConfirmed,
		}
		if route != nil {
			p.StartLocation = &route.StartLocation
			p.EndLocation = &route.EndLocation
		}

		if err := tx.InsertPayment(ctx, p); err != nil {
			return apperrors.Persistence("failed to save payment", err)
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("booking transaction failed", err)
	}

	return payment, nil
}

// Quote prices a seat selection against the current seat map without
// reserving anything.
func (s *BookingService) Quote(ctx context.Context, req *models.QuoteRequest) (*models.QuoteResponse, error) {
	seatNumbers, err := normalizeSeatNumbers(req.BusID, req.SeatNumbers)
	if err != nil {
		return nil, err
	}

	bus, err := s.store.GetBus(ctx, req.BusID)
	if err != nil {
		return nil, apperrors.Persistence("failed to load bus", err)
	}
	if bus == nil {
		return nil, apperrors.NotFound("bus")
	}

	seats, err := resolveSeats(bus, seatNumbers)
	if err != nil {
		return nil, err
	}

	breakdown, err := pricing.FromSeats(seats)
	if err != nil {
		return nil, err
	}

	return &models.QuoteResponse{
		BusID:          bus.ID,
		Seats:          snapshot(seats),
		Subtotal:       breakdown.Subtotal,
		ServiceFee:     breakdown.ServiceFee,
		ConvenienceFee: breakdown.ConvenienceFee,
		GSTAmount:      breakdown.GSTAmount,
		Total:          breakdown.Total,
	}, nil
}

// ListForUser returns the user's payments, newest first.
func (s *BookingService) ListForUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	payments, err := s.store.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("failed to list payments", err)
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}

// Get returns the payment only when it belongs to userID.
func (s *BookingService) Get(ctx context.Context, id, userID int64) (*models.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("failed to get payment", err)
	}
	if payment == nil || !payment.OwnedBy(userID) {
		return nil, apperrors.NotFound("payment")
	}
	return payment, nil
}

// Cancel releases the booked seats and marks the payment cancelled.
func (s *BookingService) Cancel(ctx context.Context, id, userID int64) (*models.Payment, error) {
	log := logger.WithContext(ctx)
	var payment *models.Payment

	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.BookingTx) error {
		p, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return apperrors.Persistence("failed to get payment", err)
		}
		if p == nil || !p.OwnedBy(userID) {
			return apperrors.NotFound("payment")
		}
		if p.Status == models.PaymentStatusCancelled {
			return apperrors.InvalidRequest("payment %d is already cancelled", id)
		}

		if _, err := tx.LockBus(ctx, p.BusID); err != nil {
			return apperrors.Persistence("failed to lock bus", err)
		}
		if err := tx.ReleaseSeats(ctx, p.BusID, p.SeatNumbers()); err != nil {
			return apperrors.Persistence("failed to release seats", err)
		}
		if err := tx.UpdatePaymentStatus(ctx, p.ID, models.PaymentStatusCancelled); err != nil {
			return apperrors.Persistence("failed to update payment", err)
		}

		p.Status = models.PaymentStatusCancelled
		p.UpdatedAt = time.Now()
		payment = p
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("cancel transaction failed", err)
	}

	s.metrics.IncCancelled()
	log.Info("Booking cancelled", "payment_id", payment.ID, "bus_id", payment.BusID)

	s.dropSeatMap(ctx, payment.BusID)

	event := models.BookingCancelledEvent{
		PaymentID:   payment.ID,
		BusID:       payment.BusID,
		SeatNumbers: payment.SeatNumbers(),
		Reason:      "cancelled by user",
		Timestamp:   time.Now(),
	}
	if err := s.publisher.Publish(models.EventBookingCancelled, event); err != nil {
		log.Error("Failed to publish booking cancelled event",
			"error", err,
			"payment_id", payment.ID,
			"event_type", models.EventBookingCancelled)
	}

	return payment, nil
}

// dropSeatMap invalidates the local cached seat map after a commit. Consumers
// of the booking events do the same for other instances.
func (s *BookingService) dropSeatMap(ctx context.Context, busID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSeatMap(ctx, busID); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate seat map", "bus_id", busID, "error", err)
	}
}

// normalizeSeatNumbers trims the requested seat numbers and rejects empty or
// repeated entries.
func normalizeSeatNumbers(busID int64, requested []string) ([]string, error) {
	if busID <= 0 {
		return nil, apperrors.InvalidRequest("busId is required")
	}
	if len(requested) == 0 {
		return nil, apperrors.InvalidRequest("at least one seat must be selected")
	}

	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, n := range requested {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, apperrors.InvalidRequest("seat numbers must not be empty")
		}
		if _, dup := seen[n]; dup {
			return nil, apperrors.InvalidRequest("seat %s is selected more than once", n)
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// resolveSeats looks up every requested seat before anything is changed.
func resolveSeats(bus *models.Bus, seatNumbers []string) ([]models.Seat, error) {
	idx := seatmap.Index(bus.Seats)
	seats := make([]models.Seat, 0, len(seatNumbers))
	for _, n := range seatNumbers {
		i, ok := idx[n]
		if !ok {
			return nil, apperrors.SeatNotFound(n)
		}
		seat := bus.Seats[i]
		if !seat.IsAvailable {
			return nil, apperrors.SeatAlreadyBooked(n)
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

func snapshot(seats []models.Seat) []models.BookedSeat {
	out := make([]models.BookedSeat, len(seats))
	for i, seat := range seats {
		out[i] = models.BookedSeat{SeatNumber: seat.SeatNumber, Price: seat.Price, Type: seat.Type}
	}
	return out
}

func summarize(bus *models.Bus) *models.BusSummary {
	amenities := bus.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return &models.BusSummary{
		ID:        bus.ID,
		BusNumber: bus.BusNumber,
		Capacity:  bus.Capacity,
		Amenities: amenities,
	}
}

func outcomeOf(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindConflict:
		return metrics.OutcomeConflict
	case apperrors.KindPersistence, "":
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeRejected
	}
}
