package docstore

import (
	"fmt"
	"regexp"
	"strings"
)

// IDField addresses the document identifier in clauses.
const IDField = "_id"

// Clause is one condition of a Query.
type Clause interface {
	// Matches evaluates the clause against a stored document.
	Matches(id string, fields map[string]any) bool
}

// Term matches documents whose field equals Value exactly.
type Term struct {
	Field string
	Value any
}

// Terms matches documents whose field equals any of Values.
type Terms struct {
	Field  string
	Values []string
}

// Wildcard matches a glob pattern ("*" and "?") against a string field. A
// backslash makes the next character literal.
type Wildcard struct {
	Field           string
	Pattern         string
	CaseInsensitive bool
}

// Query is a boolean combination of clauses. All Must clauses have to match;
// when Must is empty at least one Should clause has to match. An empty query
// matches everything. Aggs is passed to the store verbatim and its results
// come back in Result.Aggregations.
type Query struct {
	Must   []Clause
	Should []Clause
	Size   int
	Aggs   map[string]any
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`)

// EscapeWildcard quotes the glob metacharacters of s so it matches literally
// inside a Wildcard pattern.
func EscapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}

// MatchAll returns a query matching every document, limited to size hits.
func MatchAll(size int) Query {
	return Query{Size: size}
}

// ByID returns a query for a single identifier.
func ByID(id string) Query {
	return Query{Must: []Clause{Term{Field: IDField, Value: id}}}
}

// Matches evaluates the query against a stored document.
func (q Query) Matches(id string, fields map[string]any) bool {
	for _, c := range q.Must {
		if !c.Matches(id, fields) {
			return false
		}
	}
	if len(q.Must) > 0 || len(q.Should) == 0 {
		return true
	}
	for _, c := range q.Should {
		if c.Matches(id, fields) {
			return true
		}
	}
	return false
}

func (t Term) Matches(id string, fields map[string]any) bool {
	want := fmt.Sprint(t.Value)
	for _, have := range FieldValues(id, fields, t.Field) {
		if have == want {
			return true
		}
	}
	return false
}

func (t Terms) Matches(id string, fields map[string]any) bool {
	if len(t.Values) == 0 {
		return false
	}
	for _, have := range FieldValues(id, fields, t.Field) {
		for _, want := range t.Values {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (w Wildcard) Matches(id string, fields map[string]any) bool {
	re, err := globToRegexp(w.Pattern, w.CaseInsensitive)
	if err != nil {
		return false
	}
	for _, have := range FieldValues(id, fields, w.Field) {
		if re.MatchString(have) {
			return true
		}
	}
	return false
}

// FieldValues resolves a field to its string forms. Multi-valued fields yield one
// entry per element and a ".keyword" suffix addresses the field itself.
func FieldValues(id string, fields map[string]any, field string) []string {
	if field == IDField {
		return []string{id}
	}
	field = strings.TrimSuffix(field, ".keyword")
	raw, ok := fields[field]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return v
	default:
		return []string{fmt.Sprint(v)}
	}
}

func globToRegexp(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if caseInsensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(`\\`)
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
