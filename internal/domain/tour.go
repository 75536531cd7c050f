package domain

import (
	"strings"
	"time"

	"github.com/peakscape/tours-api/internal/apperr"
)

type Location struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Address     string  `json:"address,omitempty"`
	Description string  `json:"description,omitempty"`
}

type Tour struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Duration        int         `json:"duration"`
	MaxGroupSize    int         `json:"maxGroupSize"`
	Difficulty      string      `json:"difficulty"`
	RatingsAverage  float64     `json:"ratingsAverage"`
	RatingsQuantity int         `json:"ratingsQuantity"`
	Price           float64     `json:"price"`
	PriceDiscount   *float64    `json:"priceDiscount,omitempty"`
	Summary         string      `json:"summary"`
	Description     string      `json:"description,omitempty"`
	ImageCover      string      `json:"imageCover"`
	Images          []string    `json:"images,omitempty"`
	StartDates      []time.Time `json:"startDates,omitempty"`
	StartLocation   Location    `json:"startLocation"`
	Secret          bool        `json:"-"`
	Reviews         []Review    `json:"reviews,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"-"`
}

const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"

	// Aggregate rating shown while a tour has no reviews.
	DefaultRatingsAverage = 4.5
)

var validDifficulties = map[string]bool{
	DifficultyEasy:      true,
	DifficultyMedium:    true,
	DifficultyDifficult: true,
}

// TourStats is one row of the per-difficulty aggregate report.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// MonthlyPlanEntry counts the tours starting in one month of a year.
type MonthlyPlanEntry struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// TourDistance is a tour's distance from a reference point, in the unit the
// caller asked for.
type TourDistance struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

type CreateTourRequest struct {
	Name          string      `json:"name"`
	Duration      int         `json:"duration"`
	MaxGroupSize  int         `json:"maxGroupSize"`
	Difficulty    string      `json:"difficulty"`
	Price         float64     `json:"price"`
	PriceDiscount *float64    `json:"priceDiscount,omitempty"`
	Summary       string      `json:"summary"`
	Description   string      `json:"description,omitempty"`
	ImageCover    string      `json:"imageCover"`
	Images        []string    `json:"images,omitempty"`
	StartDates    []time.Time `json:"startDates,omitempty"`
	StartLocation Location    `json:"startLocation"`
	Secret        bool        `json:"secret,omitempty"`
}

func (r *CreateTourRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Summary = strings.TrimSpace(r.Summary)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateTourRequest) Validate() error {
	if n := len(r.Name); n < 10 || n > 40 {
		return apperr.NewValidation("a tour name must have between 10 and 40 characters")
	}
	if r.Duration <= 0 {
		return apperr.NewValidation("a tour must have a duration")
	}
	if r.MaxGroupSize <= 0 {
		return apperr.NewValidation("a tour must have a group size")
	}
	if !validDifficulties[r.Difficulty] {
		return apperr.NewValidation("difficulty is either easy, medium or difficult")
	}
	if r.Price <= 0 {
		return apperr.NewValidation("a tour must have a price")
	}
	if r.PriceDiscount != nil && *r.PriceDiscount >= r.Price {
		return apperr.NewValidation("discount price should be below the regular price")
	}
	if r.Summary == "" {
		return apperr.NewValidation("a tour must have a summary")
	}
	if r.ImageCover == "" {
		return apperr.NewValidation("a tour must have a cover image")
	}
	return nil
}

type TourPatch struct {
	Name          *string      `json:"name,omitempty"`
	Duration      *int         `json:"duration,omitempty"`
	MaxGroupSize  *int         `json:"maxGroupSize,omitempty"`
	Difficulty    *string      `json:"difficulty,omitempty"`
	Price         *float64     `json:"price,omitempty"`
	PriceDiscount *float64     `json:"priceDiscount,omitempty"`
	Summary       *string      `json:"summary,omitempty"`
	Description   *string      `json:"description,omitempty"`
	ImageCover    *string      `json:"imageCover,omitempty"`
	Images        *[]string    `json:"images,omitempty"`
	StartDates    *[]time.Time `json:"startDates,omitempty"`
	Secret        *bool        `json:"secret,omitempty"`
}

func (p *TourPatch) Validate() error {
	if p.Name != nil {
		if n := len(strings.TrimSpace(*p.Name)); n < 10 || n > 40 {
			return apperr.NewValidation("a tour name must have between 10 and 40 characters")
		}
	}
	if p.Difficulty != nil && !validDifficulties[*p.Difficulty] {
		return apperr.NewValidation("difficulty is either easy, medium or difficult")
	}
	if p.Price != nil && *p.Price <= 0 {
		return apperr.NewValidation("a tour must have a price")
	}
	if p.Duration != nil && *p.Duration <= 0 {
		return apperr.NewValidation("a tour must have a duration")
	}
	return nil
}
