package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
)

type BookingRepository interface {
	Create(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error)
	Get(ctx context.Context, id int64, expand []string) (*domain.Booking, error)
	Update(ctx context.Context, id int64, patch *domain.BookingPatch) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q query.Query) ([]domain.Booking, error)

	// CreateFromCheckout records a completed checkout as a paid booking.
	CreateFromCheckout(ctx context.Context, tourID, userID int64, price float64) (*domain.Booking, error)
}

type bookingRepository struct {
	pool   *pgxpool.Pool
	schema query.Schema
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{
		pool: pool,
		schema: query.Schema{
			Table: "bookings",
			Columns: map[string]string{
				"id":        "id",
				"tour":      "tour_id",
				"user":      "user_id",
				"price":     "price",
				"paid":      "paid",
				"createdAt": "created_at",
			},
			DefaultSort: []query.SortKey{{Field: "createdAt", Desc: true}},
		},
	}
}

const bookingCols = `id, tour_id, user_id, price, paid, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.TourID, &b.UserID, &b.Price, &b.Paid, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	const q = `
		INSERT INTO bookings (tour_id, user_id, price, paid)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	paid := true
	if req.Paid != nil {
		paid = *req.Paid
	}
	return scanBooking(r.pool.QueryRow(ctx, q, req.TourID, req.UserID, req.Price, paid))
}

func (r *bookingRepository) CreateFromCheckout(ctx context.Context, tourID, userID int64, price float64) (*domain.Booking, error) {
	const q = `
		INSERT INTO bookings (tour_id, user_id, price, paid)
		VALUES ($1, $2, $3, true)
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q, tourID, userID, price))
}

func (r *bookingRepository) Get(ctx context.Context, id int64, expand []string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q, id))
}

func (r *bookingRepository) Update(ctx context.Context, id int64, patch *domain.BookingPatch) (*domain.Booking, error) {
	const q = `
		UPDATE bookings
		SET price = COALESCE($2, price),
		    paid = COALESCE($3, paid),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q, id, patch.Price, patch.Paid))
}

func (r *bookingRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM bookings WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return translate(err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NewNotFound("no record found with that ID")
	}
	return nil
}

func (r *bookingRepository) List(ctx context.Context, q query.Query) ([]domain.Booking, error) {
	sql, args, err := r.schema.Compile(bookingCols, q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.TourID, &b.UserID, &b.Price, &b.Paid, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, translate(err)
		}
		bookings = append(bookings, b)
	}
	return bookings, translate(rows.Err())
}
