package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/query"
)

// Store is the resource capability set the generic handlers run against.
// Repositories satisfy it directly; services that wrap writes (reviews) slot
// in the same way.
type Store[T, C, P any] interface {
	Create(ctx context.Context, req *C) (*T, error)
	Get(ctx context.Context, id int64, expand []string) (*T, error)
	Update(ctx context.Context, id int64, patch *P) (*T, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q query.Query) ([]T, error)
}

type validator interface {
	Validate() error
}

type normalizer interface {
	Normalize()
}

// Resource serves the standard CRUD surface for one entity type.
type Resource[T, C, P any] struct {
	store       Store[T, C, P]
	maxPageSize int

	// Scope contributes predicates every list query must carry, resolved per
	// request (nested-route parents, visibility rules).
	Scope func(r *http.Request) []query.Predicate

	// BeforeCreate fills request fields that come from the route or the
	// session rather than the body.
	BeforeCreate func(r *http.Request, req *C) error
}

func NewResource[T, C, P any](store Store[T, C, P], maxPageSize int) *Resource[T, C, P] {
	return &Resource[T, C, P]{store: store, maxPageSize: maxPageSize}
}

func (res *Resource[T, C, P]) Create(w http.ResponseWriter, r *http.Request) {
	var req C
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if res.BeforeCreate != nil {
		if err := res.BeforeCreate(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if n, ok := any(&req).(normalizer); ok {
		n.Normalize()
	}
	if v, ok := any(&req).(validator); ok {
		if err := v.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	record, err := res.store.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, record)
}

func (res *Resource[T, C, P]) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := res.store.Get(r.Context(), id, expandParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if record == nil {
		writeError(w, r, apperr.NewNotFound("no record found with that ID"))
		return
	}

	fields := query.New(r.URL.Query()).LimitFields().Build().Fields
	writeData(w, http.StatusOK, query.Project(record, fields))
}

func (res *Resource[T, C, P]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch P
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if v, ok := any(&patch).(validator); ok {
		if err := v.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	record, err := res.store.Update(r.Context(), id, &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if record == nil {
		writeError(w, r, apperr.NewNotFound("no record found with that ID"))
		return
	}
	writeData(w, http.StatusOK, record)
}

func (res *Resource[T, C, P]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := res.store.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resource[T, C, P]) List(w http.ResponseWriter, r *http.Request) {
	b := query.New(r.URL.Query()).Filter().Sort().LimitFields().Paginate()
	q := b.Build()

	if res.Scope != nil {
		// Scope predicates go ahead of the client's own filters.
		q.Predicates = append(res.Scope(r), q.Predicates...)
	}

	// The builder leaves the limit uncapped; the cap is API policy. Offset is
	// recomputed so page numbering stays consistent under the cap.
	if res.maxPageSize > 0 && q.Limit > res.maxPageSize {
		q.Limit = res.maxPageSize
		q.Offset = query.OffsetFor(q.Page, q.Limit)
	}

	records, err := res.store.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, http.StatusOK, len(records), query.ProjectAll(records, q.Fields))
}

func expandParam(r *http.Request) []string {
	raw := r.URL.Query().Get("expand")
	if raw == "" {
		return nil
	}
	var expand []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			expand = append(expand, part)
		}
	}
	return expand
}
