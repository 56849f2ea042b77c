package service

import (
	"busticket/internal/metrics"
	"busticket/internal/repository"
)

type Services struct {
	Bookings *BookingService
	Buses    *BusService
	Routes   *RouteService
}

// Store is everything the services need from storage; repository.Store
// implements it on Postgres.
type Store interface {
	repository.BookingStore
	repository.CatalogStore
}

// Dependencies of the service layer. Cache and Index may be nil.
type Dependencies struct {
	Store     Store
	Publisher EventPublisher
	Cache     SeatMapCache
	Index     RouteIndex
	Metrics   *metrics.Metrics
	Booking   BookingOptions
}

func NewServices(deps Dependencies) *Services {
	return &Services{
		Bookings: NewBookingService(deps.Store, deps.Publisher, deps.Cache, deps.Metrics, deps.Booking),
		Buses:    NewBusService(deps.Store, deps.Cache),
		Routes:   NewRouteService(deps.Store, deps.Index),
	}
}
