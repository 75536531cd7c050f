// Package query composes filter, sort, projection and pagination parameters
// from a request's query string into a storage query. Building has no side
// effects; nothing runs until a repository compiles the result through a
// Schema and executes it.
package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type Op string

const (
	OpEq  Op = "="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Predicate is a single filter condition against an API-level field name.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

type SortKey struct {
	Field string
	Desc  bool
}

// Query is the immutable product of a Builder.
type Query struct {
	Predicates []Predicate
	Sort       []SortKey
	Fields     []string
	Page       int
	Limit      int
	Offset     int
}

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Control keys stripped out of the filter set.
var reservedKeys = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
	"expand": true,
}

var suffixOps = map[string]Op{
	"gte": OpGte,
	"gt":  OpGt,
	"lte": OpLte,
	"lt":  OpLt,
}

type Builder struct {
	values url.Values
	q      Query
}

func New(values url.Values) *Builder {
	return &Builder{
		values: values,
		q: Query{
			Page:  DefaultPage,
			Limit: DefaultLimit,
		},
	}
}

// Where injects an explicit predicate ahead of anything parsed from the
// query string. Owning entity types use this for scoping (soft-deleted or
// secret records, parent filters on nested routes).
func (b *Builder) Where(field string, op Op, value any) *Builder {
	b.q.Predicates = append(b.q.Predicates, Predicate{Field: field, Op: op, Value: value})
	return b
}

// Filter turns the remaining query parameters into predicates. A key of the
// form field[gte|gt|lte|lt] becomes a range comparison; everything else is an
// equality filter. Unknown fields pass through; the schema rejects them at
// compile time.
func (b *Builder) Filter() *Builder {
	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		if reservedKeys[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, op := parseFilterKey(key)
		b.q.Predicates = append(b.q.Predicates, Predicate{
			Field: field,
			Op:    op,
			Value: b.values.Get(key),
		})
	}
	return b
}

// parseFilterKey splits "price[gte]" into ("price", OpGte). A bare key is an
// equality filter.
func parseFilterKey(key string) (string, Op) {
	open := strings.IndexByte(key, '[')
	if open > 0 && strings.HasSuffix(key, "]") {
		if op, ok := suffixOps[key[open+1:len(key)-1]]; ok {
			return key[:open], op
		}
	}
	return key, OpEq
}

// Sort parses the comma-separated sort parameter; a leading '-' marks a key
// as descending. Keys apply as a stable multi-key ordering in the order
// given. Without the parameter the ordering falls to the schema's default.
func (b *Builder) Sort() *Builder {
	raw := b.values.Get("sort")
	if raw == "" {
		return b
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := SortKey{Field: part}
		if strings.HasPrefix(part, "-") {
			key = SortKey{Field: part[1:], Desc: true}
		}
		b.q.Sort = append(b.q.Sort, key)
	}
	return b
}

// LimitFields parses the comma-separated projection allow-list. Empty means
// every field.
func (b *Builder) LimitFields() *Builder {
	raw := b.values.Get("fields")
	if raw == "" {
		return b
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			b.q.Fields = append(b.q.Fields, part)
		}
	}
	return b
}

// Paginate parses page and limit. Junk or missing values fall back to the
// defaults rather than erroring. No upper bound is applied here; that policy
// belongs to the caller.
func (b *Builder) Paginate() *Builder {
	b.q.Page = positiveInt(b.values.Get("page"), DefaultPage)
	b.q.Limit = positiveInt(b.values.Get("limit"), DefaultLimit)
	b.q.Offset = OffsetFor(b.q.Page, b.q.Limit)
	return b
}

// OffsetFor computes the row offset for a 1-based page, saturating instead of
// overflowing on absurd page numbers. A saturated offset yields an empty page.
func OffsetFor(page, limit int) int {
	if limit > 0 && page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (b *Builder) Build() Query {
	return b.q
}
