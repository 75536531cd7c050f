package query

import "encoding/json"

// Project applies the fields allow-list to a single record. Records always
// scan their full column set into typed structs, so projection happens on the
// serialized form rather than in SQL. The id field is always kept. An empty
// allow-list returns the record untouched.
func Project(record any, fields []string) any {
	if len(fields) == 0 {
		return record
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return record
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return record
	}

	keep := make(map[string]bool, len(fields)+1)
	keep["id"] = true
	for _, f := range fields {
		keep[f] = true
	}

	out := make(map[string]json.RawMessage, len(keep))
	for k, v := range m {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}

// ProjectAll applies Project to every element of a list.
func ProjectAll[T any](records []T, fields []string) []any {
	out := make([]any, len(records))
	for i := range records {
		out[i] = Project(records[i], fields)
	}
	return out
}
