// Package repotest provides an in-memory store for tests of packages built on
// top of the repository interfaces.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"
	"busticket/internal/repository"
)

var (
	_ repository.BookingStore = (*MemStore)(nil)
	_ repository.CatalogStore = (*MemStore)(nil)
)

// MemStore keeps buses, routes, payments and users in memory. Transactions
// are serialized and run against a copy of the state that replaces it on
// success.
type MemStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state
}

type state struct {
	buses    map[int64]*models.Bus
	routes   map[int64]*models.Route
	payments map[int64]*models.Payment
	users    map[int64]*models.User
	nextID   int64
	clock    time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{st: &state{
		buses:    map[int64]*models.Bus{},
		routes:   map[int64]*models.Route{},
		payments: map[int64]*models.Payment{},
		users:    map[int64]*models.User{},
		clock:    time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}}
}

func (s *state) clone() *state {
	c := &state{
		buses:    make(map[int64]*models.Bus, len(s.buses)),
		routes:   make(map[int64]*models.Route, len(s.routes)),
		payments: make(map[int64]*models.Payment, len(s.payments)),
		users:    s.users,
		nextID:   s.nextID,
		clock:    s.clock,
	}
	for id, b := range s.buses {
		c.buses[id] = cloneBus(b)
	}
	for id, r := range s.routes {
		c.routes[id] = cloneRoute(r)
	}
	for id, p := range s.payments {
		c.payments[id] = clonePayment(p)
	}
	return c
}

func (s *state) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func cloneBus(b *models.Bus) *models.Bus {
	c := *b
	c.Seats = append([]models.Seat(nil), b.Seats...)
	c.Amenities = append([]string(nil), b.Amenities...)
	return &c
}

func cloneRoute(r *models.Route) *models.Route {
	c := *r
	c.BusIDs = append([]int64(nil), r.BusIDs...)
	return &c
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	c.Seats = append([]models.BookedSeat(nil), p.Seats...)
	if p.Bus != nil {
		bus := *p.Bus
		c.Bus = &bus
	}
	return &c
}

// AddUser registers a user for authentication lookups.
func (m *MemStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.users[u.UserID] = &u
}

func (m *MemStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *MemStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.st.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.BookingTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	work := m.st.clone()
	m.mu.Unlock()

	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.st = work
	m.mu.Unlock()
	return nil
}

func (m *MemStore) GetBus(_ context.Context, busID int64) (*models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.bus(busID), nil
}

func (s *state) bus(busID int64) *models.Bus {
	bus, ok := s.buses[busID]
	if !ok {
		return nil
	}
	return cloneBus(bus)
}

func (m *MemStore) GetBusByNumber(_ context.Context, busNumber string) (*models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bus := range m.st.buses {
		if bus.BusNumber == busNumber {
			return cloneBus(bus), nil
		}
	}
	return nil, nil
}

// CreateBus enforces unique bus numbers the way the buses table does.
func (m *MemStore) CreateBus(_ context.Context, bus *models.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.st.numberTaken(bus.BusNumber, 0); err != nil {
		return err
	}
	m.st.nextID++
	bus.ID = m.st.nextID
	bus.CreatedAt = m.st.tick()
	bus.UpdatedAt = bus.CreatedAt
	m.st.buses[bus.ID] = cloneBus(bus)
	return nil
}

func (s *state) numberTaken(busNumber string, except int64) error {
	for id, b := range s.buses {
		if id != except && b.BusNumber == busNumber {
			return apperrors.Validation("busNumber", "bus "+busNumber+" already exists")
		}
	}
	return nil
}

// ListBuses returns buses without seats, ordered by id.
func (m *MemStore) ListBuses(_ context.Context) ([]models.Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Bus, 0, len(m.st.buses))
	for _, b := range m.st.buses {
		c := cloneBus(b)
		c.Seats = nil
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) BusSummaries(_ context.Context, busIDs []int64) ([]models.RouteBus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RouteBus{}
	for _, id := range busIDs {
		bus, ok := m.st.buses[id]
		if !ok {
			continue
		}
		available := 0
		for _, seat := range bus.Seats {
			if seat.IsAvailable {
				available++
			}
		}
		out = append(out, models.RouteBus{BusID: id, BusNumber: bus.BusNumber, AvailableSeats: available})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusID < out[j].BusID })
	return out, nil
}

func (m *MemStore) CreateRoute(_ context.Context, route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.routes {
		if r.StartKey == route.StartKey && r.EndKey == route.EndKey {
			return fmt.Errorf("route %s -> %s already exists", route.StartKey, route.EndKey)
		}
	}
	m.st.nextID++
	route.ID = m.st.nextID
	route.CreatedAt = m.st.tick()
	m.st.routes[route.ID] = cloneRoute(route)
	return nil
}

func (m *MemStore) AttachBus(_ context.Context, routeID, busID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	route, ok := m.st.routes[routeID]
	if !ok {
		return fmt.Errorf("route %d not found", routeID)
	}
	for _, id := range route.BusIDs {
		if id == busID {
			return nil
		}
	}
	route.BusIDs = append(route.BusIDs, busID)
	return nil
}

func (m *MemStore) GetRoute(_ context.Context, id int64) (*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	route, ok := m.st.routes[id]
	if !ok {
		return nil, nil
	}
	return cloneRoute(route), nil
}

func (m *MemStore) FindRoute(_ context.Context, startKey, endKey string) (*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, route := range m.st.routes {
		if route.StartKey == startKey && route.EndKey == endKey {
			return cloneRoute(route), nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListRoutes(_ context.Context) ([]models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.sortedRoutes(0), nil
}

func (m *MemStore) RoutesForBus(_ context.Context, busID int64) ([]models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.sortedRoutes(busID), nil
}

// sortedRoutes returns routes by id; busID > 0 keeps only routes carrying it.
func (s *state) sortedRoutes(busID int64) []models.Route {
	out := []models.Route{}
	for _, route := range s.routes {
		if busID > 0 && !carries(route, busID) {
			continue
		}
		out = append(out, *cloneRoute(route))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func carries(route *models.Route, busID int64) bool {
	for _, id := range route.BusIDs {
		if id == busID {
			return true
		}
	}
	return false
}

func (m *MemStore) ListPaymentsByUser(_ context.Context, userID int64) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Payment{}
	for _, p := range m.st.payments {
		if p.OwnedBy(userID) {
			out = append(out, *clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemStore) GetPayment(_ context.Context, id int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

// memTx works on a private copy of the state.
type memTx struct {
	st *state
}

func (t *memTx) LockBus(_ context.Context, busID int64) (*models.Bus, error) {
	return t.st.bus(busID), nil
}

func (t *memTx) RouteForBus(_ context.Context, busID int64) (*models.Route, error) {
	routes := t.st.sortedRoutes(busID)
	if len(routes) == 0 {
		return nil, nil
	}
	return &routes[0], nil
}

func (t *memTx) setAvailable(busID int64, seatNumbers []string, available bool) int {
	bus, ok := t.st.buses[busID]
	if !ok {
		return 0
	}
	changed := 0
	for _, n := range seatNumbers {
		for i := range bus.Seats {
			if bus.Seats[i].SeatNumber == n && bus.Seats[i].IsAvailable != available {
				bus.Seats[i].IsAvailable = available
				changed++
			}
		}
	}
	return changed
}

func (t *memTx) MarkSeatsBooked(_ context.Context, busID int64, seatNumbers []string) error {
	if n := t.setAvailable(busID, seatNumbers, false); n != len(seatNumbers) {
		return apperrors.Conflict(fmt.Sprintf("only %d of %d seats could be booked", n, len(seatNumbers)))
	}
	return nil
}

func (t *memTx) ReleaseSeats(_ context.Context, busID int64, seatNumbers []string) error {
	t.setAvailable(busID, seatNumbers, true)
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) error {
	t.st.nextID++
	p.ID = t.st.nextID
	p.CreatedAt = t.st.tick()
	p.UpdatedAt = p.CreatedAt
	t.st.payments[p.ID] = clonePayment(p)
	return nil
}

func (t *memTx) GetPaymentForUpdate(_ context.Context, id int64) (*models.Payment, error) {
	p, ok := t.st.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (t *memTx) UpdateBus(_ context.Context, bus *models.Bus) error {
	current, ok := t.st.buses[bus.ID]
	if !ok {
		return fmt.Errorf("bus %d not found", bus.ID)
	}
	if err := t.st.numberTaken(bus.BusNumber, bus.ID); err != nil {
		return err
	}
	bus.CreatedAt = current.CreatedAt
	bus.UpdatedAt = t.st.tick()
	t.st.buses[bus.ID] = cloneBus(bus)
	return nil
}

func (t *memTx) UpdatePaymentStatus(_ context.Context, id int64, status string) error {
	p, ok := t.st.payments[id]
	if !ok {
		return fmt.Errorf("payment %d not found", id)
	}
	p.Status = status
	p.UpdatedAt = t.st.tick()
	return nil
}
