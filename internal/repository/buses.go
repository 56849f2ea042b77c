package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"busticket/internal/database"
	"busticket/internal/models"
)

type BusRepository struct {
	q database.Querier
}

func NewBusRepository(q database.Querier) *BusRepository {
	return &BusRepository{q: q}
}

const busColumns = `id, bus_number, capacity, amenities, created_at, updated_at`

func scanBus(row interface{ Scan(...any) error }) (*models.Bus, error) {
	bus := &models.Bus{}
	err := row.Scan(
		&bus.ID,
		&bus.BusNumber,
		&bus.Capacity,
		pq.Array(&bus.Amenities),
		&bus.CreatedAt,
		&bus.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bus.Amenities == nil {
		bus.Amenities = []string{}
	}
	return bus, nil
}

// Create inserts the bus row only; seats go through SeatRepository.InsertBatch.
func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	amenities := bus.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	query := `
		INSERT INTO buses (bus_number, capacity, amenities)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	return r.q.QueryRowContext(ctx, query,
		bus.BusNumber,
		bus.Capacity,
		pq.Array(amenities),
	).Scan(&bus.ID, &bus.CreatedAt, &bus.UpdatedAt)
}

// Update rewrites the bus row; seats go through SeatRepository.Replace.
func (r *BusRepository) Update(ctx context.Context, bus *models.Bus) error {
	amenities := bus.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	query := `
		UPDATE buses
		SET bus_number = $2, capacity = $3, amenities = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	return r.q.QueryRowContext(ctx, query,
		bus.ID,
		bus.BusNumber,
		bus.Capacity,
		pq.Array(amenities),
	).Scan(&bus.CreatedAt, &bus.UpdatedAt)
}

// List returns all buses without seats, ordered by id.
func (r *BusRepository) List(ctx context.Context) ([]models.Bus, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+busColumns+` FROM buses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buses := []models.Bus{}
	for rows.Next() {
		bus, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, *bus)
	}
	return buses, rows.Err()
}

func (r *BusRepository) GetByID(ctx context.Context, id int64) (*models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1`

	bus, err := scanBus(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return bus, err
}

// GetByIDForUpdate locks the bus row until the surrounding transaction ends.
func (r *BusRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE id = $1 FOR UPDATE`

	bus, err := scanBus(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return bus, err
}

func (r *BusRepository) GetByNumber(ctx context.Context, busNumber string) (*models.Bus, error) {
	query := `SELECT ` + busColumns + ` FROM buses WHERE bus_number = $1`

	bus, err := scanBus(r.q.QueryRowContext(ctx, query, busNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return bus, err
}

// Summaries returns bus numbers with their current count of available seats,
// ordered by bus id. Unknown ids are skipped.
func (r *BusRepository) Summaries(ctx context.Context, ids []int64) ([]models.RouteBus, error) {
	if len(ids) == 0 {
		return []models.RouteBus{}, nil
	}

	query := `
		SELECT b.id, b.bus_number, COUNT(s.id) FILTER (WHERE s.is_available)
		FROM buses b
		LEFT JOIN seats s ON s.bus_id = b.id
		WHERE b.id = ANY($1)
		GROUP BY b.id, b.bus_number
		ORDER BY b.id`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buses := []models.RouteBus{}
	for rows.Next() {
		var bus models.RouteBus
		if err := rows.Scan(&bus.BusID, &bus.BusNumber, &bus.AvailableSeats); err != nil {
			return nil, err
		}
		buses = append(buses, bus)
	}

	return buses, rows.Err()
}
