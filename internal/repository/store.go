package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"busticket/internal/database"
	apperrors "busticket/internal/errors"
	"busticket/internal/models"
)

// BookingTx is what a booking or a cancellation may do inside its transaction.
type BookingTx interface {
	// LockBus locks the bus row and returns the bus with its seats, or nil
	// when the bus does not exist.
	LockBus(ctx context.Context, busID int64) (*models.Bus, error)
	RouteForBus(ctx context.Context, busID int64) (*models.Route, error)
	// MarkSeatsBooked fails with a Conflict error unless every seat flipped.
	MarkSeatsBooked(ctx context.Context, busID int64, seatNumbers []string) error
	ReleaseSeats(ctx context.Context, busID int64, seatNumbers []string) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
	GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status string) error
	// UpdateBus rewrites the bus row and makes its seats equal to bus.Seats.
	UpdateBus(ctx context.Context, bus *models.Bus) error
}

// BookingStore runs booking transactions and payment reads.
type BookingStore interface {
	// InTx commits when fn returns nil and rolls everything back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
	GetBus(ctx context.Context, busID int64) (*models.Bus, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
}

// CatalogStore manages buses and routes. Bus updates run through InTx so
// they serialize with bookings on the bus row lock.
type CatalogStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
	CreateBus(ctx context.Context, bus *models.Bus) error
	ListBuses(ctx context.Context) ([]models.Bus, error)
	GetBus(ctx context.Context, busID int64) (*models.Bus, error)
	GetBusByNumber(ctx context.Context, busNumber string) (*models.Bus, error)
	BusSummaries(ctx context.Context, busIDs []int64) ([]models.RouteBus, error)
	CreateRoute(ctx context.Context, route *models.Route) error
	AttachBus(ctx context.Context, routeID, busID int64) error
	GetRoute(ctx context.Context, id int64) (*models.Route, error)
	FindRoute(ctx context.Context, startKey, endKey string) (*models.Route, error)
	ListRoutes(ctx context.Context) ([]models.Route, error)
	RoutesForBus(ctx context.Context, busID int64) ([]models.Route, error)
}

// Store is the Postgres implementation of BookingStore and CatalogStore.
type Store struct {
	db    *database.DB
	repos *Repositories
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db, repos: NewRepositories(db)}
}

// Users exposes the user repository for the auth middleware.
func (s *Store) Users() *UserRepository {
	return s.repos.Users
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &pgTx{repos: NewRepositories(tx)})
	})
}

func (s *Store) GetBus(ctx context.Context, busID int64) (*models.Bus, error) {
	return loadBus(ctx, s.repos, busID, false)
}

func (s *Store) GetBusByNumber(ctx context.Context, busNumber string) (*models.Bus, error) {
	bus, err := s.repos.Buses.GetByNumber(ctx, busNumber)
	if err != nil || bus == nil {
		return nil, err
	}
	bus.Seats, err = s.repos.Seats.ListByBus(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

func (s *Store) ListPaymentsByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	return s.repos.Payments.GetByUserID(ctx, userID)
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return s.repos.Payments.GetByID(ctx, id)
}

// CreateBus inserts the bus and all its seats in one transaction. A taken bus
// number is reported as a validation error on busNumber.
func (s *Store) CreateBus(ctx context.Context, bus *models.Bus) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		repos := NewRepositories(tx)
		if err := repos.Buses.Create(ctx, bus); err != nil {
			if taken := busNumberTaken(bus.BusNumber, err); taken != nil {
				return taken
			}
			return fmt.Errorf("failed to insert bus: %w", err)
		}
		return repos.Seats.InsertBatch(ctx, bus.ID, bus.Seats)
	})
}

func (s *Store) ListBuses(ctx context.Context) ([]models.Bus, error) {
	return s.repos.Buses.List(ctx)
}

// busNumberTaken maps a unique violation on buses.bus_number to a validation
// error; any other error yields nil.
func busNumberTaken(busNumber string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return apperrors.Validation("busNumber", "bus "+busNumber+" already exists")
	}
	return nil
}

func (s *Store) BusSummaries(ctx context.Context, busIDs []int64) ([]models.RouteBus, error) {
	return s.repos.Buses.Summaries(ctx, busIDs)
}

func (s *Store) CreateRoute(ctx context.Context, route *models.Route) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return NewRouteRepository(tx).Create(ctx, route)
	})
}

func (s *Store) AttachBus(ctx context.Context, routeID, busID int64) error {
	return s.repos.Routes.AddBuses(ctx, routeID, []int64{busID})
}

func (s *Store) GetRoute(ctx context.Context, id int64) (*models.Route, error) {
	return s.repos.Routes.GetByID(ctx, id)
}

func (s *Store) FindRoute(ctx context.Context, startKey, endKey string) (*models.Route, error) {
	return s.repos.Routes.GetByKeys(ctx, startKey, endKey)
}

func (s *Store) ListRoutes(ctx context.Context) ([]models.Route, error) {
	return s.repos.Routes.List(ctx)
}

func (s *Store) RoutesForBus(ctx context.Context, busID int64) ([]models.Route, error) {
	return s.repos.Routes.ListByBus(ctx, busID)
}

func loadBus(ctx context.Context, repos *Repositories, busID int64, lock bool) (*models.Bus, error) {
	var bus *models.Bus
	var err error
	if lock {
		bus, err = repos.Buses.GetByIDForUpdate(ctx, busID)
	} else {
		bus, err = repos.Buses.GetByID(ctx, busID)
	}
	if err != nil || bus == nil {
		return nil, err
	}

	bus.Seats, err = repos.Seats.ListByBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

type pgTx struct {
	repos *Repositories
}

func (t *pgTx) LockBus(ctx context.Context, busID int64) (*models.Bus, error) {
	return loadBus(ctx, t.repos, busID, true)
}

func (t *pgTx) RouteForBus(ctx context.Context, busID int64) (*models.Route, error) {
	return t.repos.Routes.FirstForBus(ctx, busID)
}

func (t *pgTx) MarkSeatsBooked(ctx context.Context, busID int64, seatNumbers []string) error {
	affected, err := t.repos.Seats.MarkBooked(ctx, busID, seatNumbers)
	if err != nil {
		return err
	}
	if affected != int64(len(seatNumbers)) {
		return apperrors.Conflict(fmt.Sprintf("only %d of %d seats could be booked", affected, len(seatNumbers)))
	}
	return nil
}

func (t *pgTx) ReleaseSeats(ctx context.Context, busID int64, seatNumbers []string) error {
	affected, err := t.repos.Seats.Release(ctx, busID, seatNumbers)
	if err != nil {
		return err
	}
	if affected != int64(len(seatNumbers)) {
		slog.Warn("Released fewer seats than requested",
			"bus_id", busID, "requested", len(seatNumbers), "released", affected)
	}
	return nil
}

func (t *pgTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	return t.repos.Payments.Create(ctx, payment)
}

func (t *pgTx) GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return t.repos.Payments.GetByIDForUpdate(ctx, id)
}

func (t *pgTx) UpdateBus(ctx context.Context, bus *models.Bus) error {
	if err := t.repos.Buses.Update(ctx, bus); err != nil {
		if taken := busNumberTaken(bus.BusNumber, err); taken != nil {
			return taken
		}
		return fmt.Errorf("failed to update bus: %w", err)
	}
	return t.repos.Seats.Replace(ctx, bus.ID, bus.Seats)
}

func (t *pgTx) UpdatePaymentStatus(ctx context.Context, id int64, status string) error {
	return t.repos.Payments.UpdateStatus(ctx, id, status)
}

var (
	_ BookingStore = (*Store)(nil)
	_ CatalogStore = (*Store)(nil)
)
