package models

import (
	"time"
)

// Seat types
const (
	SeatTypeSleeper = "Sleeper"
	SeatTypeSeater  = "Seater"
)

// Seating positions, only meaningful for Seater seats
const (
	PositionWindow    = "Window"
	PositionNonWindow = "Non-Window"
)

// Payment statuses
const (
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusCancelled = "CANCELLED"
)

// User represents a user in the system
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// Bus owns an ordered seat list. Capacity always equals len(Seats).
type Bus struct {
	ID        int64     `json:"id" db:"id"`
	BusNumber string    `json:"busNumber" db:"bus_number"`
	Capacity  int       `json:"capacity" db:"capacity"`
	Amenities []string  `json:"amenities" db:"amenities"`
	Seats     []Seat    `json:"seats,omitempty"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Seat is a single seat of a bus. SeatingPosition is set only for Seater seats.
type Seat struct {
	SeatNumber      string  `json:"seatNumber" yaml:"seatNumber" db:"seat_number"`
	Type            string  `json:"type" yaml:"type" db:"type"`
	SeatingPosition *string `json:"seatingPosition,omitempty" yaml:"seatingPosition,omitempty" db:"seating_position"`
	Price           int64   `json:"price" yaml:"price" db:"price"`
	IsAvailable     bool    `json:"isAvailable" yaml:"-" db:"is_available"`
	Row             int     `json:"row" yaml:"row" db:"row_number"`
	Column          int     `json:"column" yaml:"column" db:"column_number"`
}

// BusSummary is the bus reference populated on a Payment for display.
type BusSummary struct {
	ID        int64    `json:"id"`
	BusNumber string   `json:"busNumber"`
	Capacity  int      `json:"capacity"`
	Amenities []string `json:"amenities"`
}

// Route is a start/end location pair served by a list of buses.
type Route struct {
	ID            int64     `json:"id" db:"id"`
	StartLocation string    `json:"startLocation" db:"start_location"`
	EndLocation   string    `json:"endLocation" db:"end_location"`
	StartKey      string    `json:"-" db:"start_key"`
	EndKey        string    `json:"-" db:"end_key"`
	DistanceKm    *int      `json:"distanceKm,omitempty" db:"distance_km"`
	DurationMin   *int      `json:"durationMin,omitempty" db:"duration_min"`
	BusIDs        []int64   `json:"busIds"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// BookedSeat is a snapshot of a seat taken at booking time.
type BookedSeat struct {
	SeatNumber string `json:"seatNumber" db:"seat_number"`
	Price      int64  `json:"price" db:"price"`
	Type       string `json:"type" db:"type"`
}

// CardDetails is stored as provided; it is never charged.
type CardDetails struct {
	CardNumber     string `json:"cardNumber"`
	CardHolderName string `json:"cardHolderName"`
	ExpiryDate     string `json:"expiryDate"`
	CVV            string `json:"cvv"`
}

// Payment is the booking record created once per successful checkout.
// UserID is nil for guest checkout.
type Payment struct {
	ID             int64        `json:"id" db:"id"`
	Reference      string       `json:"reference" db:"reference"`
	UserID         *int64       `json:"userId" db:"user_id"`
	BusID          int64        `json:"busId" db:"bus_id"`
	Bus            *BusSummary  `json:"bus,omitempty"`
	Seats          []BookedSeat `json:"seats"`
	StartLocation  *string      `json:"startLocation,omitempty" db:"start_location"`
	EndLocation    *string      `json:"endLocation,omitempty" db:"end_location"`
	Subtotal       int64        `json:"subtotal" db:"subtotal"`
	ServiceFee     int64        `json:"serviceFee" db:"service_fee"`
	ConvenienceFee int64        `json:"convenienceFee" db:"convenience_fee"`
	GSTAmount      int64        `json:"gstAmount" db:"gst_amount"`
	Amount         int64        `json:"amount" db:"amount"`
	Card           CardDetails  `json:"-"`
	Status         string       `json:"status" db:"status"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" db:"updated_at"`
}

// IsGuest reports whether the payment was made without a user.
func (p *Payment) IsGuest() bool {
	return p.UserID == nil
}

// OwnedBy reports whether userID owns the payment. Guest payments have no owner.
func (p *Payment) OwnedBy(userID int64) bool {
	return p.UserID != nil && *p.UserID == userID
}

// SeatNumbers returns the booked seat numbers in booking order.
func (p *Payment) SeatNumbers() []string {
	numbers := make([]string, len(p.Seats))
	for i, s := range p.Seats {
		numbers[i] = s.SeatNumber
	}
	return numbers
}
