package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
)

type ReviewRepository interface {
	Create(ctx context.Context, req *domain.CreateReviewRequest) (*domain.Review, error)
	Get(ctx context.Context, id int64, expand []string) (*domain.Review, error)
	Update(ctx context.Context, id int64, patch *domain.ReviewPatch) (*domain.Review, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q query.Query) ([]domain.Review, error)
	ListByTour(ctx context.Context, tourID int64) ([]domain.Review, error)

	// RecalcTourRatings rewrites the owning tour's aggregate count and
	// average from a fresh scan of its reviews, in one atomic statement.
	RecalcTourRatings(ctx context.Context, tourID int64) error
}

type reviewRepository struct {
	pool   *pgxpool.Pool
	schema query.Schema
}

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{
		pool: pool,
		schema: query.Schema{
			Table: "reviews r JOIN users u ON u.id = r.user_id",
			Columns: map[string]string{
				"id":        "r.id",
				"review":    "r.review",
				"rating":    "r.rating",
				"tour":      "r.tour_id",
				"user":      "r.user_id",
				"createdAt": "r.created_at",
			},
			DefaultSort: []query.SortKey{{Field: "createdAt", Desc: true}},
		},
	}
}

const reviewCols = `r.id, r.review, r.rating, r.tour_id, r.user_id, u.name, u.photo, r.created_at, r.updated_at`

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	var author domain.ReviewAuthor
	err := row.Scan(
		&rv.ID, &rv.Review, &rv.Rating, &rv.TourID, &rv.UserID,
		&author.Name, &author.Photo, &rv.CreatedAt, &rv.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	rv.Author = &author
	return &rv, nil
}

func (r *reviewRepository) Create(ctx context.Context, req *domain.CreateReviewRequest) (*domain.Review, error) {
	const q = `
		WITH inserted AS (
			INSERT INTO reviews (review, rating, tour_id, user_id)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT ` + reviewCols + `
		FROM inserted r JOIN users u ON u.id = r.user_id`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rv, err := scanReview(r.pool.QueryRow(ctx, q, req.Review, req.Rating, req.TourID, req.UserID))
	if err != nil {
		if apperr.IsKind(err, apperr.Conflict) {
			return nil, apperr.NewConflict("you have already reviewed this tour")
		}
		return nil, err
	}
	return rv, nil
}

func (r *reviewRepository) Get(ctx context.Context, id int64, expand []string) (*domain.Review, error) {
	const q = `
		SELECT ` + reviewCols + `
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanReview(r.pool.QueryRow(ctx, q, id))
}

func (r *reviewRepository) Update(ctx context.Context, id int64, patch *domain.ReviewPatch) (*domain.Review, error) {
	const q = `
		WITH updated AS (
			UPDATE reviews
			SET review = COALESCE($2, review),
			    rating = COALESCE($3, rating),
			    updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + reviewCols + `
		FROM updated r JOIN users u ON u.id = r.user_id`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanReview(r.pool.QueryRow(ctx, q, id, patch.Review, patch.Rating))
}

func (r *reviewRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM reviews WHERE id = $1`

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

func (r *reviewRepository) List(ctx context.Context, q query.Query) ([]domain.Review, error) {
	sql, args, err := r.schema.Compile(reviewCols, q)
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

	return collectReviews(rows)
}

func (r *reviewRepository) ListByTour(ctx context.Context, tourID int64) ([]domain.Review, error) {
	const q = `
		SELECT ` + reviewCols + `
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.tour_id = $1
		ORDER BY r.created_at DESC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, tourID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

func collectReviews(rows pgx.Rows) ([]domain.Review, error) {
	var reviews []domain.Review
	for rows.Next() {
		var rv domain.Review
		var author domain.ReviewAuthor
		if err := rows.Scan(
			&rv.ID, &rv.Review, &rv.Rating, &rv.TourID, &rv.UserID,
			&author.Name, &author.Photo, &rv.CreatedAt, &rv.UpdatedAt,
		); err != nil {
			return nil, translate(err)
		}
		rv.Author = &author
		reviews = append(reviews, rv)
	}
	return reviews, translate(rows.Err())
}

func (r *reviewRepository) RecalcTourRatings(ctx context.Context, tourID int64) error {
	// Single statement, so concurrent recomputes for the same tour resolve
	// last-write-wins with each write internally consistent.
	const q = `
		UPDATE tours
		SET ratings_quantity = s.qty,
		    ratings_average = s.avg,
		    updated_at = now()
		FROM (
			SELECT count(*) AS qty,
			       coalesce(round(avg(rating)::numeric, 1), $2) AS avg
			FROM reviews
			WHERE tour_id = $1
		) s
		WHERE tours.id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, tourID, domain.DefaultRatingsAverage)
	return translate(err)
}
