package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
	"github.com/peakscape/tours-api/internal/utils"
)

type TourRepository interface {
	Create(ctx context.Context, req *domain.CreateTourRequest) (*domain.Tour, error)
	Get(ctx context.Context, id int64, expand []string) (*domain.Tour, error)
	Update(ctx context.Context, id int64, patch *domain.TourPatch) (*domain.Tour, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q query.Query) ([]domain.Tour, error)

	Stats(ctx context.Context) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error)
	Within(ctx context.Context, lat, lng, radiusKm float64) ([]domain.Tour, error)
	Distances(ctx context.Context, lat, lng, multiplier float64) ([]domain.TourDistance, error)
}

type tourRepository struct {
	pool    *pgxpool.Pool
	reviews ReviewRepository
	schema  query.Schema
}

func NewTourRepository(pool *pgxpool.Pool, reviews ReviewRepository) TourRepository {
	return &tourRepository{
		pool:    pool,
		reviews: reviews,
		schema: query.Schema{
			Table: "tours",
			Columns: map[string]string{
				"id":              "id",
				"name":            "name",
				"slug":            "slug",
				"duration":        "duration",
				"maxGroupSize":    "max_group_size",
				"difficulty":      "difficulty",
				"ratingsAverage":  "ratings_average",
				"ratingsQuantity": "ratings_quantity",
				"price":           "price",
				"priceDiscount":   "price_discount",
				"secret":          "secret",
				"createdAt":       "created_at",
			},
			DefaultSort: []query.SortKey{{Field: "createdAt", Desc: true}},
		},
	}
}

const tourCols = `id, name, slug, duration, max_group_size, difficulty, ratings_average, ratings_quantity, price, price_discount, summary, description, image_cover, images, start_dates, start_lat, start_lng, start_address, start_description, secret, created_at, updated_at`

func scanTour(row pgx.Row) (*domain.Tour, error) {
	var t domain.Tour
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
		&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &t.PriceDiscount,
		&t.Summary, &t.Description, &t.ImageCover, &t.Images, &t.StartDates,
		&t.StartLocation.Lat, &t.StartLocation.Lng, &t.StartLocation.Address,
		&t.StartLocation.Description, &t.Secret, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *tourRepository) Create(ctx context.Context, req *domain.CreateTourRequest) (*domain.Tour, error) {
	const q = `
		INSERT INTO tours (
			name, slug, duration, max_group_size, difficulty, ratings_average,
			ratings_quantity, price, price_discount, summary, description,
			image_cover, images, start_dates, start_lat, start_lng,
			start_address, start_description, secret
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + tourCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanTour(r.pool.QueryRow(ctx, q,
		req.Name, utils.Slugify(req.Name), req.Duration, req.MaxGroupSize,
		req.Difficulty, domain.DefaultRatingsAverage, req.Price,
		req.PriceDiscount, req.Summary, req.Description, req.ImageCover,
		req.Images, req.StartDates, req.StartLocation.Lat,
		req.StartLocation.Lng, req.StartLocation.Address,
		req.StartLocation.Description, req.Secret,
	))
}

func (r *tourRepository) Get(ctx context.Context, id int64, expand []string) (*domain.Tour, error) {
	const q = `SELECT ` + tourCols + ` FROM tours WHERE id = $1 AND NOT secret`

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tour, err := scanTour(r.pool.QueryRow(qctx, q, id))
	if err != nil || tour == nil {
		return tour, err
	}

	for _, rel := range expand {
		if rel == "reviews" {
			reviews, err := r.reviews.ListByTour(ctx, tour.ID)
			if err != nil {
				return nil, err
			}
			tour.Reviews = reviews
		}
	}

	return tour, nil
}

func (r *tourRepository) Update(ctx context.Context, id int64, patch *domain.TourPatch) (*domain.Tour, error) {
	const q = `
		UPDATE tours
		SET name = COALESCE($2, name),
		    slug = COALESCE($3, slug),
		    duration = COALESCE($4, duration),
		    max_group_size = COALESCE($5, max_group_size),
		    difficulty = COALESCE($6, difficulty),
		    price = COALESCE($7, price),
		    price_discount = COALESCE($8, price_discount),
		    summary = COALESCE($9, summary),
		    description = COALESCE($10, description),
		    image_cover = COALESCE($11, image_cover),
		    images = COALESCE($12, images),
		    start_dates = COALESCE($13, start_dates),
		    secret = COALESCE($14, secret),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + tourCols

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var slug *string
	if patch.Name != nil {
		s := utils.Slugify(*patch.Name)
		slug = &s
	}

	return scanTour(r.pool.QueryRow(ctx, q, id,
		patch.Name, slug, patch.Duration, patch.MaxGroupSize, patch.Difficulty,
		patch.Price, patch.PriceDiscount, patch.Summary, patch.Description,
		patch.ImageCover, patch.Images, patch.StartDates, patch.Secret,
	))
}

func (r *tourRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM tours WHERE id = $1`

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

func (r *tourRepository) List(ctx context.Context, q query.Query) ([]domain.Tour, error) {
	sql, args, err := r.schema.Compile(tourCols, q)
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

	var tours []domain.Tour
	for rows.Next() {
		var t domain.Tour
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
			&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &t.PriceDiscount,
			&t.Summary, &t.Description, &t.ImageCover, &t.Images, &t.StartDates,
			&t.StartLocation.Lat, &t.StartLocation.Lng, &t.StartLocation.Address,
			&t.StartLocation.Description, &t.Secret, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, translate(err)
		}
		tours = append(tours, t)
	}

	return tours, translate(rows.Err())
}

func (r *tourRepository) Stats(ctx context.Context) ([]domain.TourStats, error) {
	const q = `
		SELECT upper(difficulty),
		       count(*),
		       coalesce(sum(ratings_quantity), 0),
		       coalesce(round(avg(ratings_average)::numeric, 2), 0),
		       coalesce(round(avg(price)::numeric, 2), 0),
		       coalesce(min(price), 0),
		       coalesce(max(price), 0)
		FROM tours
		WHERE NOT secret AND ratings_average >= 4.5
		GROUP BY upper(difficulty)
		ORDER BY coalesce(round(avg(price)::numeric, 2), 0)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var stats []domain.TourStats
	for rows.Next() {
		var s domain.TourStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, translate(err)
		}
		stats = append(stats, s)
	}

	return stats, translate(rows.Err())
}

func (r *tourRepository) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error) {
	const q = `
		SELECT extract(month FROM d)::int AS month,
		       count(*) AS starts,
		       array_agg(name) AS tours
		FROM tours, unnest(start_dates) AS d
		WHERE NOT secret
		  AND d >= make_date($1, 1, 1)
		  AND d < make_date($1 + 1, 1, 1)
		GROUP BY month
		ORDER BY starts DESC
		LIMIT 12`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, year)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var plan []domain.MonthlyPlanEntry
	for rows.Next() {
		var e domain.MonthlyPlanEntry
		if err := rows.Scan(&e.Month, &e.NumTourStarts, &e.Tours); err != nil {
			return nil, translate(err)
		}
		plan = append(plan, e)
	}

	return plan, translate(rows.Err())
}

// haversineKm is the great-circle distance in kilometers between a query
// point ($1 lat, $2 lng) and a tour's start location.
const haversineKm = `6371 * acos(least(1.0,
	cos(radians($1)) * cos(radians(start_lat)) * cos(radians(start_lng) - radians($2))
	+ sin(radians($1)) * sin(radians(start_lat))))`

func (r *tourRepository) Within(ctx context.Context, lat, lng, radiusKm float64) ([]domain.Tour, error) {
	const q = `
		SELECT ` + tourCols + `
		FROM tours
		WHERE NOT secret AND ` + haversineKm + ` <= $3`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, lat, lng, radiusKm)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var tours []domain.Tour
	for rows.Next() {
		var t domain.Tour
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
			&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &t.PriceDiscount,
			&t.Summary, &t.Description, &t.ImageCover, &t.Images, &t.StartDates,
			&t.StartLocation.Lat, &t.StartLocation.Lng, &t.StartLocation.Address,
			&t.StartLocation.Description, &t.Secret, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, translate(err)
		}
		tours = append(tours, t)
	}

	return tours, translate(rows.Err())
}

func (r *tourRepository) Distances(ctx context.Context, lat, lng, multiplier float64) ([]domain.TourDistance, error) {
	const q = `
		SELECT id, name, round((` + haversineKm + ` * $3)::numeric, 3)
		FROM tours
		WHERE NOT secret
		ORDER BY 3`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, lat, lng, multiplier)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var distances []domain.TourDistance
	for rows.Next() {
		var d domain.TourDistance
		if err := rows.Scan(&d.ID, &d.Name, &d.Distance); err != nil {
			return nil, translate(err)
		}
		distances = append(distances, d)
	}

	return distances, translate(rows.Err())
}
