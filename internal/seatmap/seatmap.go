// Package seatmap validates and normalizes the seat inventory of a bus.
package seatmap

import (
	"fmt"
	"strings"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"
	"busticket/internal/pricing"
)

// Validate checks a bus's seat list. Callers normalize first, so a Sleeper
// that still carries a seating position is rejected.
func Validate(seats []models.Seat) error {
	if len(seats) == 0 {
		return apperrors.Validation("seats", "bus must have at least one seat")
	}

	seen := make(map[string]struct{}, len(seats))
	for i, seat := range seats {
		if seat.SeatNumber == "" {
			return apperrors.Validation("seatNumber", fmt.Sprintf("seat %d has no seat number", i+1))
		}

		switch seat.Type {
		case models.SeatTypeSeater:
			if seat.SeatingPosition == nil {
				return apperrors.Validation("seatingPosition",
					fmt.Sprintf("seat %s: seating position is required for %s seats", seat.SeatNumber, models.SeatTypeSeater))
			}
			if !validPosition(*seat.SeatingPosition) {
				return apperrors.Validation("seatingPosition",
					fmt.Sprintf("seat %s: seating position %q must be %s or %s", seat.SeatNumber, *seat.SeatingPosition, models.PositionWindow, models.PositionNonWindow))
			}
		case models.SeatTypeSleeper:
			if seat.SeatingPosition != nil {
				return apperrors.Validation("seatingPosition",
					fmt.Sprintf("seat %s: %s seats have no seating position", seat.SeatNumber, models.SeatTypeSleeper))
			}
		default:
			return apperrors.Validation("type",
				fmt.Sprintf("seat %s: unknown seat type %q", seat.SeatNumber, seat.Type))
		}

		if seat.Price <= 0 {
			return apperrors.Validation("price",
				fmt.Sprintf("seat %s: price must be positive", seat.SeatNumber))
		}
		if seat.Price > pricing.MaxSeatPrice {
			return apperrors.Validation("price",
				fmt.Sprintf("seat %s: price exceeds %d", seat.SeatNumber, pricing.MaxSeatPrice))
		}

		seen[seat.SeatNumber] = struct{}{}
	}

	if len(seen) != len(seats) {
		return apperrors.Validation("seatNumber", "duplicate seat numbers within the same bus")
	}

	return nil
}

// Normalize returns a copy of seats with trimmed seat numbers and the seating
// position cleared on Sleeper seats.
func Normalize(seats []models.Seat) []models.Seat {
	out := make([]models.Seat, len(seats))
	for i, seat := range seats {
		seat.SeatNumber = strings.TrimSpace(seat.SeatNumber)
		if seat.Type == models.SeatTypeSleeper {
			seat.SeatingPosition = nil
		}
		out[i] = seat
	}
	return out
}

// Capacity is always the seat count.
func Capacity(seats []models.Seat) int {
	return len(seats)
}

// Available counts seats that can still be booked.
func Available(seats []models.Seat) int {
	n := 0
	for _, seat := range seats {
		if seat.IsAvailable {
			n++
		}
	}
	return n
}

// Index maps seat numbers to their position in seats.
func Index(seats []models.Seat) map[string]int {
	idx := make(map[string]int, len(seats))
	for i, seat := range seats {
		idx[seat.SeatNumber] = i
	}
	return idx
}

// Find returns the seat with the given number.
func Find(seats []models.Seat, number string) (models.Seat, bool) {
	for _, seat := range seats {
		if seat.SeatNumber == number {
			return seat, true
		}
	}
	return models.Seat{}, false
}

// Label renders a row/column position as a seat label: row 1 column 1 is "1A".
// Columns past Z wrap to AA, AB and so on.
func Label(row, column int) string {
	if row < 1 || column < 1 {
		return ""
	}
	var letters []byte
	for c := column; c > 0; c = (c - 1) / 26 {
		letters = append([]byte{byte('A' + (c-1)%26)}, letters...)
	}
	return fmt.Sprintf("%d%s", row, letters)
}

func validPosition(p string) bool {
	return p == models.PositionWindow || p == models.PositionNonWindow
}
