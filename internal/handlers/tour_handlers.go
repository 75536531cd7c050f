package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/repository"
)

const milesPerKm = 0.621371

type TourHandlers struct {
	tours repository.TourRepository
}

func NewTourHandlers(tours repository.TourRepository) *TourHandlers {
	return &TourHandlers{tours: tours}
}

// AliasTopTours preloads the query string for the top-5-cheap listing before
// the generic list handler runs.
func AliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}

// ExpandReviews makes the tour detail read carry its reviews by default.
func ExpandReviews(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("expand") == "" {
			q.Set("expand", "reviews")
			r.URL.RawQuery = q.Encode()
		}
		next.ServeHTTP(w, r)
	})
}

func (h *TourHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (h *TourHandlers) MonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 {
		writeError(w, r, apperr.NewValidation("invalid year"))
		return
	}

	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, http.StatusOK, len(plan), plan)
}

// ToursWithin lists tours whose start location falls inside the given radius,
// e.g. /tours-within/250/center/34.1,-118.1/unit/mi.
func (h *TourHandlers) ToursWithin(w http.ResponseWriter, r *http.Request) {
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil || distance <= 0 {
		writeError(w, r, apperr.NewValidation("invalid distance"))
		return
	}
	lat, lng, err := parseLatLng(chi.URLParam(r, "latlng"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	unit := chi.URLParam(r, "unit")

	radiusKm := distance
	switch unit {
	case "km":
	case "mi":
		radiusKm = distance / milesPerKm
	default:
		writeError(w, r, apperr.NewValidation("unit must be mi or km"))
		return
	}

	tours, err := h.tours.Within(r.Context(), lat, lng, radiusKm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, http.StatusOK, len(tours), tours)
}

// Distances reports each tour's distance from the given point in the
// requested unit.
func (h *TourHandlers) Distances(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := parseLatLng(chi.URLParam(r, "latlng"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	multiplier := 1.0
	switch chi.URLParam(r, "unit") {
	case "km":
	case "mi":
		multiplier = milesPerKm
	default:
		writeError(w, r, apperr.NewValidation("unit must be mi or km"))
		return
	}

	distances, err := h.tours.Distances(r.Context(), lat, lng, multiplier)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, http.StatusOK, len(distances), distances)
}

func parseLatLng(raw string) (lat, lng float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, apperr.NewValidation("please provide latitude and longitude in the format lat,lng")
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, apperr.NewValidation("please provide latitude and longitude in the format lat,lng")
	}
	return lat, lng, nil
}
