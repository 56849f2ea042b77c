package models

import "time"

// NATS Event Types
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
)

// BookingCreatedEvent represents a booking creation event
type BookingCreatedEvent struct {
	PaymentID   int64     `json:"payment_id"`
	Reference   string    `json:"reference"`
	BusID       int64     `json:"bus_id"`
	UserID      *int64    `json:"user_id"`
	SeatNumbers []string  `json:"seat_numbers"`
	Amount      int64     `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// BookingCancelledEvent represents a booking cancellation event
type BookingCancelledEvent struct {
	PaymentID   int64     `json:"payment_id"`
	BusID       int64     `json:"bus_id"`
	SeatNumbers []string  `json:"seat_numbers"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}
