package models

import "strings"

// CreatePaymentRequest - тело POST /api/payments
type CreatePaymentRequest struct {
	BusID       int64       `json:"busId"`
	SeatNumbers []string    `json:"seatNumbers"`
	CardDetails CardDetails `json:"cardDetails"`
}

// QuoteRequest - тело POST /api/payments/quote
type QuoteRequest struct {
	BusID       int64    `json:"busId" binding:"required"`
	SeatNumbers []string `json:"seatNumbers" binding:"required"`
}

// QuoteResponse - предварительный расчет стоимости
type QuoteResponse struct {
	BusID          int64        `json:"busId"`
	Seats          []BookedSeat `json:"seats"`
	Subtotal       int64        `json:"subtotal"`
	ServiceFee     int64        `json:"serviceFee"`
	ConvenienceFee int64        `json:"convenienceFee"`
	GSTAmount      int64        `json:"gstAmount"`
	Total          int64        `json:"total"`
}

// MaskedCard is the card snapshot as returned to clients.
type MaskedCard struct {
	CardNumber     string `json:"cardNumber"`
	CardHolderName string `json:"cardHolderName"`
	ExpiryDate     string `json:"expiryDate"`
}

// PaymentResponse - платеж с замаскированной картой
type PaymentResponse struct {
	*Payment
	CardDetails MaskedCard `json:"cardDetails"`
}

// NewPaymentResponse masks all but the last four card digits and drops the CVV.
func NewPaymentResponse(p *Payment) PaymentResponse {
	number := p.Card.CardNumber
	if len(number) > 4 {
		number = strings.Repeat("*", len(number)-4) + number[len(number)-4:]
	}
	return PaymentResponse{
		Payment: p,
		CardDetails: MaskedCard{
			CardNumber:     number,
			CardHolderName: p.Card.CardHolderName,
			ExpiryDate:     p.Card.ExpiryDate,
		},
	}
}

// CreateBusRequest - тело POST /api/buses
type CreateBusRequest struct {
	BusNumber string   `json:"busNumber" binding:"required"`
	Amenities []string `json:"amenities"`
	Seats     []Seat   `json:"seats" binding:"required"`
}

// UpdateBusRequest - тело PUT /api/buses/:id, полностью заменяет номер,
// удобства и набор мест
type UpdateBusRequest struct {
	BusNumber string   `json:"busNumber" binding:"required"`
	Amenities []string `json:"amenities"`
	Seats     []Seat   `json:"seats" binding:"required"`
}

// SeatMapResponse - карта мест автобуса
type SeatMapResponse struct {
	BusID          int64  `json:"busId"`
	BusNumber      string `json:"busNumber"`
	Capacity       int    `json:"capacity"`
	AvailableSeats int    `json:"availableSeats"`
	Seats          []Seat `json:"seats"`
}

// CreateRouteRequest - тело POST /api/routes
type CreateRouteRequest struct {
	StartLocation string  `json:"startLocation" binding:"required"`
	EndLocation   string  `json:"endLocation" binding:"required"`
	DistanceKm    *int    `json:"distanceKm"`
	DurationMin   *int    `json:"durationMin"`
	BusIDs        []int64 `json:"busIds"`
}

// RouteBus - автобус на маршруте с числом свободных мест
type RouteBus struct {
	BusID          int64  `json:"busId"`
	BusNumber      string `json:"busNumber"`
	AvailableSeats int    `json:"availableSeats"`
}

// RouteSearchResult - элемент результата поиска маршрутов
type RouteSearchResult struct {
	ID            int64      `json:"id"`
	StartLocation string     `json:"startLocation"`
	EndLocation   string     `json:"endLocation"`
	DistanceKm    *int       `json:"distanceKm,omitempty"`
	DurationMin   *int       `json:"durationMin,omitempty"`
	Buses         []RouteBus `json:"buses"`
}
