// Package pricing computes the fee breakdown of a seat selection.
package pricing

import (
	"fmt"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"
)

const (
	// ServiceFeePerSeat is charged once per booked seat.
	ServiceFeePerSeat int64 = 50
	// ConveniencePercent is applied to the subtotal.
	ConveniencePercent int64 = 2
	// GSTPercent is applied to subtotal + service fee + convenience fee.
	GSTPercent int64 = 12

	// MaxSeatPrice bounds a single seat price.
	MaxSeatPrice int64 = 1_000_000_000_000
	// MaxSubtotal bounds the sum of seat prices so that no step of the
	// breakdown overflows int64.
	MaxSubtotal int64 = 1_000_000_000_000_000
)

// Breakdown is the price of a booking. Total always equals the sum of the
// other four fields.
type Breakdown struct {
	Subtotal       int64 `json:"subtotal"`
	ServiceFee     int64 `json:"serviceFee"`
	ConvenienceFee int64 `json:"convenienceFee"`
	GSTAmount      int64 `json:"gstAmount"`
	Total          int64 `json:"total"`
}

// Calculate prices a list of seat prices. Each percentage is rounded half up
// on its own; GST is taken on subtotal plus both fees.
func Calculate(prices []int64) (Breakdown, error) {
	if len(prices) == 0 {
		return Breakdown{}, apperrors.InvalidRequest("at least one seat is required")
	}

	var subtotal int64
	for i, p := range prices {
		if p <= 0 {
			return Breakdown{}, apperrors.Validation("price", fmt.Sprintf("seat %d: price must be positive", i+1))
		}
		if p > MaxSeatPrice {
			return Breakdown{}, apperrors.Validation("price", fmt.Sprintf("seat %d: price exceeds %d", i+1, MaxSeatPrice))
		}
		if p > MaxSubtotal-subtotal {
			return Breakdown{}, apperrors.InvalidRequest("subtotal exceeds %d", MaxSubtotal)
		}
		subtotal += p
	}

	b := Breakdown{
		Subtotal:   subtotal,
		ServiceFee: int64(len(prices)) * ServiceFeePerSeat,
	}
	b.ConvenienceFee = percent(b.Subtotal, ConveniencePercent)
	b.GSTAmount = percent(b.Subtotal+b.ServiceFee+b.ConvenienceFee, GSTPercent)
	b.Total = b.Subtotal + b.ServiceFee + b.ConvenienceFee + b.GSTAmount

	return b, nil
}

// FromSeats prices the given seats at their current prices.
func FromSeats(seats []models.Seat) (Breakdown, error) {
	prices := make([]int64, len(seats))
	for i, s := range seats {
		prices[i] = s.Price
	}
	return Calculate(prices)
}

// percent returns round(amount * pct / 100) with halves rounded up.
// amount is never negative here.
func percent(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}
