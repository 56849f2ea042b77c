package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"busticket/internal/database"
	"busticket/internal/models"
)

type PaymentRepository struct {
	q database.Querier
}

func NewPaymentRepository(q database.Querier) *PaymentRepository {
	return &PaymentRepository{q: q}
}

const paymentSelect = `
		SELECT p.id, p.reference, p.user_id, p.bus_id,
		       b.bus_number, b.capacity, b.amenities,
		       p.start_location, p.end_location,
		       p.subtotal, p.service_fee, p.convenience_fee, p.gst_amount, p.amount,
		       p.card_number, p.card_holder_name, p.expiry_date, p.cvv,
		       p.status, p.created_at, p.updated_at
		FROM payments p
		JOIN buses b ON b.id = p.bus_id`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	payment := &models.Payment{Bus: &models.BusSummary{}}
	err := row.Scan(
		&payment.ID,
		&payment.Reference,
		&payment.UserID,
		&payment.BusID,
		&payment.Bus.BusNumber,
		&payment.Bus.Capacity,
		pq.Array(&payment.Bus.Amenities),
		&payment.StartLocation,
		&payment.EndLocation,
		&payment.Subtotal,
		&payment.ServiceFee,
		&payment.ConvenienceFee,
		&payment.GSTAmount,
		&payment.Amount,
		&payment.Card.CardNumber,
		&payment.Card.CardHolderName,
		&payment.Card.ExpiryDate,
		&payment.Card.CVV,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.Bus.ID = payment.BusID
	if payment.Bus.Amenities == nil {
		payment.Bus.Amenities = []string{}
	}
	return payment, nil
}

// Create inserts the payment and its seat snapshots.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (reference, user_id, bus_id, start_location, end_location,
		                      subtotal, service_fee, convenience_fee, gst_amount, amount,
		                      card_number, card_holder_name, expiry_date, cvv, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRowContext(ctx, query,
		payment.Reference,
		payment.UserID,
		payment.BusID,
		payment.StartLocation,
		payment.EndLocation,
		payment.Subtotal,
		payment.ServiceFee,
		payment.ConvenienceFee,
		payment.GSTAmount,
		payment.Amount,
		payment.Card.CardNumber,
		payment.Card.CardHolderName,
		payment.Card.ExpiryDate,
		payment.Card.CVV,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return err
	}

	seatQuery := `
		INSERT INTO payment_seats (payment_id, seat_number, price, type, position)
		VALUES ($1, $2, $3, $4, $5)`

	for i, seat := range payment.Seats {
		if _, err := r.q.ExecContext(ctx, seatQuery, payment.ID, seat.SeatNumber, seat.Price, seat.Type, i); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	return r.getOne(ctx, paymentSelect+`
		WHERE p.id = $1`, id)
}

// GetByIDForUpdate locks the payment row until the surrounding transaction ends.
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return r.getOne(ctx, paymentSelect+`
		WHERE p.id = $1
		FOR UPDATE OF p`, id)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, id int64) (*models.Payment, error) {
	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadSeats(ctx, []*models.Payment{payment}); err != nil {
		return nil, err
	}
	return payment, nil
}

// GetByUserID returns the user's payments, newest first.
func (r *PaymentRepository) GetByUserID(ctx context.Context, userID int64) ([]models.Payment, error) {
	query := paymentSelect + `
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC, p.id DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ptrs []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadSeats(ctx, ptrs); err != nil {
		return nil, err
	}

	payments := make([]models.Payment, len(ptrs))
	for i, p := range ptrs {
		payments[i] = *p
	}
	return payments, nil
}

func (r *PaymentRepository) loadSeats(ctx context.Context, payments []*models.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	ids := make([]int64, len(payments))
	byID := make(map[int64]*models.Payment, len(payments))
	for i, p := range payments {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Seats = []models.BookedSeat{}
	}

	query := `
		SELECT payment_id, seat_number, price, type
		FROM payment_seats
		WHERE payment_id = ANY($1)
		ORDER BY payment_id, position`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var paymentID int64
		var seat models.BookedSeat
		if err := rows.Scan(&paymentID, &seat.SeatNumber, &seat.Price, &seat.Type); err != nil {
			return err
		}
		if p, ok := byID[paymentID]; ok {
			p.Seats = append(p.Seats, seat)
		}
	}

	return rows.Err()
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.q.ExecContext(ctx, query, status, id)
	return err
}
