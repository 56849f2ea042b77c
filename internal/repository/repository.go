package repository

import (
	"busticket/internal/database"
)

// Repositories groups the table repositories over one Querier, which is either
// the pool or an open transaction.
type Repositories struct {
	Buses    *BusRepository
	Seats    *SeatRepository
	Routes   *RouteRepository
	Payments *PaymentRepository
	Users    *UserRepository
}

func NewRepositories(q database.Querier) *Repositories {
	return &Repositories{
		Buses:    NewBusRepository(q),
		Seats:    NewSeatRepository(q),
		Routes:   NewRouteRepository(q),
		Payments: NewPaymentRepository(q),
		Users:    NewUserRepository(q),
	}
}
