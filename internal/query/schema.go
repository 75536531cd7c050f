package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/peakscape/tours-api/internal/apperr"
)

// Schema maps API-level field names onto table columns and compiles a Query
// into an executable SELECT. Field names have to be translated through the
// column map because SQL identifiers cannot be parameterized; anything not in
// the map is rejected.
type Schema struct {
	Table       string
	Columns     map[string]string
	DefaultSort []SortKey
}

// Compile produces a full SELECT statement with positional arguments.
// selectCols is the fixed scan column list owned by the repository.
func (s Schema) Compile(selectCols string, q Query) (string, []any, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	sb.WriteString(selectCols)
	sb.WriteString(" FROM ")
	sb.WriteString(s.Table)

	where, args, err := s.compileWhere(q.Predicates, args)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	order, err := s.compileOrder(q.Sort)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(order)

	args = append(args, q.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, q.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	return sb.String(), args, nil
}

func (s Schema) compileWhere(preds []Predicate, args []any) (string, []any, error) {
	if len(preds) == 0 {
		return "", args, nil
	}

	clauses := make([]string, 0, len(preds))
	for _, p := range preds {
		col, ok := s.Columns[p.Field]
		if !ok {
			return "", nil, apperr.NewValidation(fmt.Sprintf("cannot filter on unknown field %q", p.Field))
		}
		args = append(args, coerceValue(p.Value))
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, p.Op, len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// coerceValue turns string literals from the query string into typed values,
// so the driver does not hand Postgres a text parameter against a numeric or
// boolean column.
func coerceValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}

func (s Schema) compileOrder(keys []SortKey) (string, error) {
	if len(keys) == 0 {
		keys = s.DefaultSort
	}
	if len(keys) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		col, ok := s.Columns[k.Field]
		if !ok {
			return "", apperr.NewValidation(fmt.Sprintf("cannot sort on unknown field %q", k.Field))
		}
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		parts = append(parts, col+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
