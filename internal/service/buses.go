package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "busticket/internal/errors"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/repository"
	"busticket/internal/seatmap"
)

// SeatMapCache is satisfied by cache.ValkeyClient.
type SeatMapCache interface {
	GetSeatMap(ctx context.Context, busID int64) ([]byte, bool, error)
	SetSeatMap(ctx context.Context, busID int64, data []byte) error
	InvalidateSeatMap(ctx context.Context, busID int64) error
}

type BusService struct {
	store repository.CatalogStore
	cache SeatMapCache
}

// NewBusService accepts a nil cache; seat maps are then always read from the store.
func NewBusService(store repository.CatalogStore, cache SeatMapCache) *BusService {
	return &BusService{store: store, cache: cache}
}

// Create normalizes and validates the seat list and stores the bus with all
// seats available. Capacity is derived from the seat count.
func (s *BusService) Create(ctx context.Context, req *models.CreateBusRequest) (*models.Bus, error) {
	bus, err := prepareBus(req.BusNumber, req.Amenities, req.Seats)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetBusByNumber(ctx, bus.BusNumber)
	if err != nil {
		return nil, apperrors.Persistence("failed to check bus number", err)
	}
	if existing != nil {
		return nil, apperrors.Validation("busNumber", "bus "+bus.BusNumber+" already exists")
	}

	// a concurrent create with the same number still fails on the unique index
	if err := s.store.CreateBus(ctx, bus); err != nil {
		return nil, apperrors.Persistence("failed to create bus", err)
	}

	logger.WithContext(ctx).Info("Bus created", "bus_id", bus.ID, "bus_number", bus.BusNumber, "capacity", bus.Capacity)
	return bus, nil
}

// List returns all buses without their seats.
func (s *BusService) List(ctx context.Context) ([]models.Bus, error) {
	buses, err := s.store.ListBuses(ctx)
	if err != nil {
		return nil, apperrors.Persistence("failed to list buses", err)
	}
	return buses, nil
}

// Update replaces the bus number, amenities and seat set under the bus row
// lock. Booked seats must stay in the new set and remain booked; new seats
// are available.
func (s *BusService) Update(ctx context.Context, id int64, req *models.UpdateBusRequest) (*models.Bus, error) {
	bus, err := prepareBus(req.BusNumber, req.Amenities, req.Seats)
	if err != nil {
		return nil, err
	}
	bus.ID = id

	existing, err := s.store.GetBusByNumber(ctx, bus.BusNumber)
	if err != nil {
		return nil, apperrors.Persistence("failed to check bus number", err)
	}
	if existing != nil && existing.ID != id {
		return nil, apperrors.Validation("busNumber", "bus "+bus.BusNumber+" already exists")
	}

	index := seatmap.Index(bus.Seats)
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.BookingTx) error {
		current, err := tx.LockBus(ctx, id)
		if err != nil {
			return apperrors.Persistence("failed to lock bus", err)
		}
		if current == nil {
			return apperrors.NotFound("bus")
		}

		for _, seat := range current.Seats {
			if seat.IsAvailable {
				continue
			}
			i, ok := index[seat.SeatNumber]
			if !ok {
				return apperrors.Validation("seats",
					fmt.Sprintf("seat %s is booked and cannot be removed", seat.SeatNumber))
			}
			bus.Seats[i].IsAvailable = false
		}

		if err := tx.UpdateBus(ctx, bus); err != nil {
			return apperrors.Persistence("failed to update bus", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("bus update failed", err)
	}

	log := logger.WithContext(ctx)
	if err := s.InvalidateSeatMap(ctx, id); err != nil {
		log.Warn("Failed to invalidate seat map", "bus_id", id, "error", err)
	}
	log.Info("Bus updated", "bus_id", id, "bus_number", bus.BusNumber, "capacity", bus.Capacity)
	return bus, nil
}

// prepareBus trims, normalizes and validates bus input. Missing seat numbers
// come from the row/column label; every seat starts available.
func prepareBus(busNumber string, amenities []string, seats []models.Seat) (*models.Bus, error) {
	busNumber = strings.TrimSpace(busNumber)
	if busNumber == "" {
		return nil, apperrors.Validation("busNumber", "bus number is required")
	}

	seats = seatmap.Normalize(seats)
	for i := range seats {
		if seats[i].SeatNumber == "" {
			seats[i].SeatNumber = seatmap.Label(seats[i].Row, seats[i].Column)
		}
		seats[i].IsAvailable = true
	}
	if err := seatmap.Validate(seats); err != nil {
		return nil, err
	}

	trimmed := make([]string, 0, len(amenities))
	for _, a := range amenities {
		if a = strings.TrimSpace(a); a != "" {
			trimmed = append(trimmed, a)
		}
	}

	return &models.Bus{
		BusNumber: busNumber,
		Capacity:  seatmap.Capacity(seats),
		Amenities: trimmed,
		Seats:     seats,
	}, nil
}

func (s *BusService) Get(ctx context.Context, id int64) (*models.Bus, error) {
	bus, err := s.store.GetBus(ctx, id)
	if err != nil {
		return nil, apperrors.Persistence("failed to get bus", err)
	}
	if bus == nil {
		return nil, apperrors.NotFound("bus")
	}
	return bus, nil
}

// SeatMap returns the bus seat map, served from cache when possible.
func (s *BusService) SeatMap(ctx context.Context, id int64) (*models.SeatMapResponse, error) {
	log := logger.WithContext(ctx)

	if s.cache != nil {
		data, ok, err := s.cache.GetSeatMap(ctx, id)
		if err != nil {
			log.Warn("Seat map cache lookup failed", "bus_id", id, "error", err)
		}
		if ok {
			var cached models.SeatMapResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
			log.Warn("Discarding malformed cached seat map", "bus_id", id)
		}
	}

	bus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &models.SeatMapResponse{
		BusID:          bus.ID,
		BusNumber:      bus.BusNumber,
		Capacity:       bus.Capacity,
		AvailableSeats: seatmap.Available(bus.Seats),
		Seats:          bus.Seats,
	}

	if s.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.cache.SetSeatMap(ctx, id, data); err != nil {
				log.Warn("Failed to cache seat map", "bus_id", id, "error", err)
			}
		}
	}

	return resp, nil
}

// InvalidateSeatMap drops the cached seat map of a bus.
func (s *BusService) InvalidateSeatMap(ctx context.Context, busID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateSeatMap(ctx, busID)
}
