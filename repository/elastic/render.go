package elastic

import (
	"github.com/fastygo/ocxers/repository/docstore"
)

// searchSource renders a search body; hits carry their sequence number and
// primary term so callers can issue conditional updates.
func searchSource(q docstore.Query) map[string]any {
	body := map[string]any{
		"query":               querySource(q),
		"seq_no_primary_term": true,
	}
	if q.Size > 0 {
		body["size"] = q.Size
	}
	if len(q.Aggs) > 0 {
		body["aggs"] = q.Aggs
	}
	return body
}

func querySource(q docstore.Query) map[string]any {
	if len(q.Must) == 0 && len(q.Should) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	boolQuery := map[string]any{}
	if len(q.Must) > 0 {
		boolQuery["must"] = clauseSources(q.Must)
	}
	if len(q.Should) > 0 {
		boolQuery["should"] = clauseSources(q.Should)
		if len(q.Must) == 0 {
			boolQuery["minimum_should_match"] = 1
		}
	}
	return map[string]any{"bool": boolQuery}
}

func clauseSources(clauses []docstore.Clause) []map[string]any {
	out := make([]map[string]any, 0, len(clauses))
	for _, c := range clauses {
		switch v := c.(type) {
		case docstore.Term:
			out = append(out, map[string]any{"term": map[string]any{v.Field: v.Value}})
		case docstore.Terms:
			out = append(out, map[string]any{"terms": map[string]any{v.Field: v.Values}})
		case docstore.Wildcard:
			out = append(out, map[string]any{"wildcard": map[string]any{
				v.Field: map[string]any{"value": v.Pattern, "case_insensitive": v.CaseInsensitive},
			}})
		}
	}
	return out
}
