package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/handlers"
	"github.com/peakscape/tours-api/internal/query"
)

// fakeTourStore records the queries it is handed and serves canned data, so
// the tests pin down exactly what the handler layer asks of the store.
type fakeTourStore struct {
	nextID    int64
	records   map[int64]*domain.Tour
	lastQuery *query.Query
}

func newFakeTourStore() *fakeTourStore {
	return &fakeTourStore{nextID: 1, records: make(map[int64]*domain.Tour)}
}

func (f *fakeTourStore) Create(_ context.Context, req *domain.CreateTourRequest) (*domain.Tour, error) {
	tour := &domain.Tour{ID: f.nextID, Name: req.Name, Price: req.Price, Duration: req.Duration}
	f.nextID++
	f.records[tour.ID] = tour
	return tour, nil
}

func (f *fakeTourStore) Get(_ context.Context, id int64, _ []string) (*domain.Tour, error) {
	tour, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return tour, nil
}

func (f *fakeTourStore) Update(_ context.Context, id int64, patch *domain.TourPatch) (*domain.Tour, error) {
	tour, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	if patch.Price != nil {
		tour.Price = *patch.Price
	}
	return tour, nil
}

func (f *fakeTourStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.records[id]; !ok {
		return apperr.NewNotFound("no record found with that ID")
	}
	delete(f.records, id)
	return nil
}

func (f *fakeTourStore) List(_ context.Context, q query.Query) ([]domain.Tour, error) {
	f.lastQuery = &q
	var out []domain.Tour
	for _, tour := range f.records {
		out = append(out, *tour)
	}
	return out, nil
}

func setupResourceServer(t *testing.T) (*httptest.Server, *fakeTourStore) {
	t.Helper()
	store := newFakeTourStore()
	res := handlers.NewResource[domain.Tour, domain.CreateTourRequest, domain.TourPatch](store, 500)
	res.Scope = func(*http.Request) []query.Predicate {
		return []query.Predicate{{Field: "secret", Op: query.OpEq, Value: false}}
	}

	r := chi.NewRouter()
	r.Get("/tours", res.List)
	r.Post("/tours", res.Create)
	r.Get("/tours/{id}", res.Get)
	r.Patch("/tours/{id}", res.Update)
	r.Delete("/tours/{id}", res.Delete)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, store
}

func seedTour(t *testing.T, server *httptest.Server) map[string]any {
	t.Helper()
	body := map[string]any{
		"name":         "The Forest Hiker Adventure",
		"duration":     5,
		"maxGroupSize": 25,
		"difficulty":   "easy",
		"price":        497.0,
		"summary":      "Breathtaking hike through the Canadian Banff National Park",
		"imageCover":   "tour-1-cover.jpg",
	}
	resp := postJSON(t, server.URL+"/tours", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var envelope struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if envelope.Status != "success" {
		t.Fatalf("Expected success envelope, got %+v", envelope)
	}
	return envelope.Data
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestResource_ListComposesFilterSortPaginate(t *testing.T) {
	server, store := setupResourceServer(t)
	seedTour(t, server)

	resp, err := http.Get(server.URL + "/tours?duration[gte]=5&sort=-ratingsAverage,price&page=2&limit=10&fields=name,price")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	q := store.lastQuery
	if q == nil {
		t.Fatal("List was never called")
	}
	if len(q.Predicates) != 2 {
		t.Fatalf("Expected scope + filter predicates, got %+v", q.Predicates)
	}
	if q.Predicates[0].Field != "secret" {
		t.Fatalf("Expected scope predicate first, got %+v", q.Predicates)
	}
	if q.Predicates[1].Field != "duration" || q.Predicates[1].Op != query.OpGte {
		t.Fatalf("Expected duration >= filter, got %+v", q.Predicates[1])
	}
	if len(q.Sort) != 2 || !q.Sort[0].Desc || q.Sort[0].Field != "ratingsAverage" {
		t.Fatalf("Unexpected sort %+v", q.Sort)
	}
	if q.Page != 2 || q.Limit != 10 || q.Offset != 10 {
		t.Fatalf("Unexpected pagination page=%d limit=%d offset=%d", q.Page, q.Limit, q.Offset)
	}
}

func TestResource_ListCapsLimit(t *testing.T) {
	server, store := setupResourceServer(t)

	resp, err := http.Get(server.URL + "/tours?page=3&limit=100000")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	q := store.lastQuery
	if q.Limit != 500 {
		t.Fatalf("Expected limit capped at 500, got %d", q.Limit)
	}
	// Offset must follow the capped limit, not the requested one.
	if q.Offset != 1000 {
		t.Fatalf("Expected offset recomputed to 1000, got %d", q.Offset)
	}
}

func TestResource_ListHugePageKeepsOffsetNonNegative(t *testing.T) {
	server, store := setupResourceServer(t)

	resp, err := http.Get(server.URL + "/tours?page=9223372036854775807&limit=100000")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if store.lastQuery.Offset < 0 {
		t.Fatalf("Offset overflowed to %d", store.lastQuery.Offset)
	}
}

func TestResource_ListEnvelope(t *testing.T) {
	server, _ := setupResourceServer(t)
	seedTour(t, server)

	resp, err := http.Get(server.URL + "/tours?fields=name")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Status  string           `json:"status"`
		Results int              `json:"results"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if envelope.Status != "success" || envelope.Results != 1 || len(envelope.Data) != 1 {
		t.Fatalf("Unexpected envelope %+v", envelope)
	}

	record := envelope.Data[0]
	if _, hasID := record["id"]; !hasID {
		t.Fatal("id must survive projection")
	}
	if _, hasName := record["name"]; !hasName {
		t.Fatal("name was requested and must be present")
	}
	if _, hasPrice := record["price"]; hasPrice {
		t.Fatal("price was not requested and must be projected away")
	}
}

func TestResource_CreateValidation(t *testing.T) {
	server, store := setupResourceServer(t)

	resp := postJSON(t, server.URL+"/tours", map[string]any{
		"name": "too short", "duration": 5, "maxGroupSize": 10,
		"difficulty": "easy", "price": 100.0, "summary": "x", "imageCover": "c.jpg",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
	var envelope map[string]any
	json.NewDecoder(resp.Body).Decode(&envelope)
	if envelope["status"] != "fail" {
		t.Fatalf("Expected fail status, got %v", envelope)
	}
	if len(store.records) != 0 {
		t.Fatal("Invalid tour must not be stored")
	}
}

func TestResource_GetNotFound(t *testing.T) {
	server, _ := setupResourceServer(t)

	cases := []struct {
		path string
		want int
	}{
		{"/tours/9999", http.StatusNotFound},
		{"/tours/not-a-number", http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := http.Get(server.URL + tc.path)
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("GET %s: expected %d, got %d", tc.path, tc.want, resp.StatusCode)
		}
	}
}

func TestResource_DeleteReturnsNoContent(t *testing.T) {
	server, _ := setupResourceServer(t)
	created := seedTour(t, server)
	id := int64(created["id"].(float64))

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/tours/%d", server.URL, id), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	resp2, _ := http.DefaultClient.Do(req)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 on second delete, got %d", resp2.StatusCode)
	}
}
