package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"
	"busticket/internal/repository"
	"busticket/internal/search"
)

// fakeStore is an in-memory BookingStore and CatalogStore. Transactions hold
// a per-bus lock from LockBus until they end and stage their writes, so a
// failed transaction leaves nothing behind.
type fakeStore struct {
	mu       sync.Mutex
	busLocks map[int64]*sync.Mutex
	buses    map[int64]*models.Bus
	routes   map[int64]*models.Route
	payments map[int64]*models.Payment
	nextID   int64
	clock    time.Time

	// injected failures
	failInsert    error
	conflictsLeft int
	markCalls     int
	committedTxs  int
	rolledBackTxs int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		busLocks: map[int64]*sync.Mutex{},
		buses:    map[int64]*models.Bus{},
		routes:   map[int64]*models.Route{},
		payments: map[int64]*models.Payment{},
		clock:    time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func strPtr(s string) *string { return &s }

// addBus stores a bus whose seats are priced as given, all available.
func (s *fakeStore) addBus(busNumber string, seats ...models.Seat) *models.Bus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	bus := &models.Bus{ID: s.nextID, BusNumber: busNumber, Capacity: len(seats), Amenities: []string{"wifi"}}
	for _, seat := range seats {
		seat.IsAvailable = true
		bus.Seats = append(bus.Seats, seat)
	}
	s.buses[bus.ID] = bus
	return cloneBus(bus)
}

func (s *fakeStore) seat(busID int64, number string) models.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range s.buses[busID].Seats {
		if seat.SeatNumber == number {
			return seat
		}
	}
	panic("no seat " + number)
}

func (s *fakeStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func cloneBus(b *models.Bus) *models.Bus {
	c := *b
	c.Seats = append([]models.Seat(nil), b.Seats...)
	c.Amenities = append([]string(nil), b.Amenities...)
	return &c
}

func clonePayment(p *models.Payment) *models.Payment {
	c := *p
	c.Seats = append([]models.BookedSeat(nil), p.Seats...)
	return &c
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.BookingTx) error) error {
	tx := &fakeTx{s: s, booked: map[int64][]string{}, released: map[int64][]string{}, statuses: map[int64]string{}, buses: map[int64]*models.Bus{}}
	defer tx.unlock()

	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		s.rolledBackTxs++
		s.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *fakeStore) GetBus(_ context.Context, busID int64) (*models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bus, ok := s.buses[busID]
	if !ok {
		return nil, nil
	}
	return cloneBus(bus), nil
}

func (s *fakeStore) GetBusByNumber(_ context.Context, busNumber string) (*models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bus := range s.buses {
		if bus.BusNumber == busNumber {
			return cloneBus(bus), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListPaymentsByUser(_ context.Context, userID int64) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
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

func (s *fakeStore) GetPayment(_ context.Context, id int64) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (s *fakeStore) CreateBus(_ context.Context, bus *models.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	bus.ID = s.nextID
	s.buses[bus.ID] = cloneBus(bus)
	return nil
}

func (s *fakeStore) ListBuses(_ context.Context) ([]models.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Bus{}
	for _, bus := range s.buses {
		c := cloneBus(bus)
		c.Seats = nil
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) BusSummaries(_ context.Context, busIDs []int64) ([]models.RouteBus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RouteBus{}
	for _, id := range busIDs {
		bus, ok := s.buses[id]
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

func (s *fakeStore) CreateRoute(_ context.Context, route *models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	route.ID = s.nextID
	c := *route
	c.BusIDs = append([]int64(nil), route.BusIDs...)
	s.routes[route.ID] = &c
	return nil
}

func (s *fakeStore) AttachBus(_ context.Context, routeID, busID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[routeID]
	if !ok {
		return fmt.Errorf("route %d missing", routeID)
	}
	for _, id := range route.BusIDs {
		if id == busID {
			return nil
		}
	}
	route.BusIDs = append(route.BusIDs, busID)
	return nil
}

func (s *fakeStore) GetRoute(_ context.Context, id int64) (*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[id]
	if !ok {
		return nil, nil
	}
	c := *route
	return &c, nil
}

func (s *fakeStore) FindRoute(_ context.Context, startKey, endKey string) (*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, route := range s.routes {
		if route.StartKey == startKey && route.EndKey == endKey {
			c := *route
			c.BusIDs = append([]int64(nil), route.BusIDs...)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListRoutes(_ context.Context) ([]models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Route{}
	for _, route := range s.routes {
		out = append(out, *route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) RoutesForBus(ctx context.Context, busID int64) ([]models.Route, error) {
	all, _ := s.ListRoutes(ctx)
	out := []models.Route{}
	for _, route := range all {
		for _, id := range route.BusIDs {
			if id == busID {
				out = append(out, route)
				break
			}
		}
	}
	return out, nil
}

type fakeTx struct {
	s        *fakeStore
	locked   []*sync.Mutex
	booked   map[int64][]string
	released map[int64][]string
	payments []*models.Payment
	statuses map[int64]string
	buses    map[int64]*models.Bus
}

func (t *fakeTx) unlock() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.locked[i].Unlock()
	}
	t.locked = nil
}

func (t *fakeTx) LockBus(ctx context.Context, busID int64) (*models.Bus, error) {
	t.s.mu.Lock()
	lock, ok := t.s.busLocks[busID]
	if !ok {
		lock = &sync.Mutex{}
		t.s.busLocks[busID] = lock
	}
	t.s.mu.Unlock()

	lock.Lock()
	t.locked = append(t.locked, lock)

	return t.s.GetBus(ctx, busID)
}

func (t *fakeTx) RouteForBus(ctx context.Context, busID int64) (*models.Route, error) {
	routes, _ := t.s.RoutesForBus(ctx, busID)
	if len(routes) == 0 {
		return nil, nil
	}
	return &routes[0], nil
}

func (t *fakeTx) MarkSeatsBooked(_ context.Context, busID int64, seatNumbers []string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.markCalls++

	if t.s.conflictsLeft > 0 {
		t.s.conflictsLeft--
		return apperrors.Conflict("seat state changed concurrently")
	}

	bus := t.s.buses[busID]
	available := 0
	for _, n := range seatNumbers {
		for _, seat := range bus.Seats {
			if seat.SeatNumber == n && seat.IsAvailable {
				available++
			}
		}
	}
	if available != len(seatNumbers) {
		return apperrors.Conflict(fmt.Sprintf("only %d of %d seats could be booked", available, len(seatNumbers)))
	}
	t.booked[busID] = append(t.booked[busID], seatNumbers...)
	return nil
}

func (t *fakeTx) ReleaseSeats(_ context.Context, busID int64, seatNumbers []string) error {
	t.released[busID] = append(t.released[busID], seatNumbers...)
	return nil
}

func (t *fakeTx) InsertPayment(_ context.Context, p *models.Payment) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.failInsert != nil {
		return t.s.failInsert
	}
	t.s.nextID++
	t.s.clock = t.s.clock.Add(time.Minute)
	p.ID = t.s.nextID
	p.CreatedAt = t.s.clock
	p.UpdatedAt = t.s.clock
	t.payments = append(t.payments, p)
	return nil
}

func (t *fakeTx) GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return t.s.GetPayment(ctx, id)
}

func (t *fakeTx) UpdatePaymentStatus(_ context.Context, id int64, status string) error {
	t.statuses[id] = status
	return nil
}

func (t *fakeTx) UpdateBus(_ context.Context, bus *models.Bus) error {
	t.buses[bus.ID] = cloneBus(bus)
	return nil
}

func (t *fakeTx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, bus := range t.buses {
		s.buses[id] = bus
	}

	setAvailability := func(busID int64, numbers []string, available bool) {
		bus := s.buses[busID]
		for _, n := range numbers {
			for i := range bus.Seats {
				if bus.Seats[i].SeatNumber == n {
					bus.Seats[i].IsAvailable = available
				}
			}
		}
	}
	for busID, numbers := range t.booked {
		setAvailability(busID, numbers, false)
	}
	for busID, numbers := range t.released {
		setAvailability(busID, numbers, true)
	}
	for _, p := range t.payments {
		s.payments[p.ID] = clonePayment(p)
	}
	for id, status := range t.statuses {
		s.payments[id].Status = status
	}
	s.committedTxs++
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []interface{}
	err      error
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return p.err
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[int64][]byte
	gets    int
	sets    int
	dropped []int64
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[int64][]byte{}} }

func (c *fakeCache) GetSeatMap(_ context.Context, busID int64) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	d, ok := c.data[busID]
	return d, ok, nil
}

func (c *fakeCache) SetSeatMap(_ context.Context, busID int64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[busID] = data
	return nil
}

func (c *fakeCache) InvalidateSeatMap(_ context.Context, busID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, busID)
	c.dropped = append(c.dropped, busID)
	return nil
}

type fakeIndex struct {
	mu     sync.Mutex
	docs   map[int64]search.RouteDocument
	failed bool
}

func newFakeIndex() *fakeIndex { return &fakeIndex{docs: map[int64]search.RouteDocument{}} }

func (i *fakeIndex) IndexRoute(_ context.Context, doc *search.RouteDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs[doc.ID] = *doc
	return nil
}

func (i *fakeIndex) SearchRoutes(_ context.Context, startKey, endKey string) ([]models.RouteSearchResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.failed {
		return nil, fmt.Errorf("index unavailable")
	}
	out := []models.RouteSearchResult{}
	for _, doc := range i.docs {
		if doc.StartKey == startKey && doc.EndKey == endKey {
			out = append(out, doc.Result())
		}
	}
	return out, nil
}

var (
	_ repository.BookingStore = (*fakeStore)(nil)
	_ repository.CatalogStore = (*fakeStore)(nil)
)
