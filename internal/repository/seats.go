package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"busticket/internal/database"
	"busticket/internal/models"
)

type SeatRepository struct {
	q database.Querier
}

func NewSeatRepository(q database.Querier) *SeatRepository {
	return &SeatRepository{q: q}
}

// InsertBatch inserts the seats of a bus, keeping their order in the position column.
func (r *SeatRepository) InsertBatch(ctx context.Context, busID int64, seats []models.Seat) error {
	query := `
		INSERT INTO seats (bus_id, seat_number, type, seating_position, price, is_available, row_number, column_number, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i, seat := range seats {
		_, err := r.q.ExecContext(ctx, query,
			busID,
			seat.SeatNumber,
			seat.Type,
			seat.SeatingPosition,
			seat.Price,
			seat.IsAvailable,
			seat.Row,
			seat.Column,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert seat %s: %w", seat.SeatNumber, err)
		}
	}

	return nil
}

// Replace makes the seat set of a bus equal to seats: rows missing from the
// list are deleted, the rest are upserted in list order.
func (r *SeatRepository) Replace(ctx context.Context, busID int64, seats []models.Seat) error {
	numbers := make([]string, len(seats))
	for i, seat := range seats {
		numbers[i] = seat.SeatNumber
	}

	_, err := r.q.ExecContext(ctx,
		`DELETE FROM seats WHERE bus_id = $1 AND NOT (seat_number = ANY($2))`,
		busID, pq.Array(numbers))
	if err != nil {
		return fmt.Errorf("failed to delete removed seats: %w", err)
	}

	query := `
		INSERT INTO seats (bus_id, seat_number, type, seating_position, price, is_available, row_number, column_number, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (bus_id, seat_number) DO UPDATE SET
			type = EXCLUDED.type,
			seating_position = EXCLUDED.seating_position,
			price = EXCLUDED.price,
			is_available = EXCLUDED.is_available,
			row_number = EXCLUDED.row_number,
			column_number = EXCLUDED.column_number,
			position = EXCLUDED.position`

	for i, seat := range seats {
		_, err := r.q.ExecContext(ctx, query,
			busID,
			seat.SeatNumber,
			seat.Type,
			seat.SeatingPosition,
			seat.Price,
			seat.IsAvailable,
			seat.Row,
			seat.Column,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert seat %s: %w", seat.SeatNumber, err)
		}
	}

	return nil
}

// ListByBus returns the seats of a bus in their original order.
func (r *SeatRepository) ListByBus(ctx context.Context, busID int64) ([]models.Seat, error) {
	query := `
		SELECT seat_number, type, seating_position, price, is_available, row_number, column_number
		FROM seats
		WHERE bus_id = $1
		ORDER BY position`

	rows, err := r.q.QueryContext(ctx, query, busID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := []models.Seat{}
	for rows.Next() {
		var seat models.Seat
		err := rows.Scan(
			&seat.SeatNumber,
			&seat.Type,
			&seat.SeatingPosition,
			&seat.Price,
			&seat.IsAvailable,
			&seat.Row,
			&seat.Column,
		)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}

	return seats, rows.Err()
}

// MarkBooked flips the given seats to unavailable, but only those still
// available. It returns the number of rows changed.
func (r *SeatRepository) MarkBooked(ctx context.Context, busID int64, seatNumbers []string) (int64, error) {
	query := `
		UPDATE seats
		SET is_available = false
		WHERE bus_id = $1 AND seat_number = ANY($2) AND is_available = true`

	result, err := r.q.ExecContext(ctx, query, busID, pq.Array(seatNumbers))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Release makes the given seats available again and returns the rows changed.
func (r *SeatRepository) Release(ctx context.Context, busID int64, seatNumbers []string) (int64, error) {
	query := `
		UPDATE seats
		SET is_available = true
		WHERE bus_id = $1 AND seat_number = ANY($2) AND is_available = false`

	result, err := r.q.ExecContext(ctx, query, busID, pq.Array(seatNumbers))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
