package bolt

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fastygo/ocxers/repository/docstore"
)

// termsAgg counts distinct values of one field over the matching documents.
// It is the only aggregation the embedded store evaluates.
type termsAgg struct {
	name   string
	field  string
	size   int
	counts map[string]int
}

type bucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

type termsResult struct {
	SumOtherDocCount int      `json:"sum_other_doc_count"`
	Buckets          []bucket `json:"buckets"`
}

func parseAggs(aggs map[string]any) ([]*termsAgg, error) {
	out := make([]*termsAgg, 0, len(aggs))
	for name, raw := range aggs {
		spec, _ := raw.(map[string]any)
		terms, ok := spec["terms"].(map[string]any)
		if !ok || len(spec) != 1 {
			return nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedAggregation, name)
		}
		field, _ := terms["field"].(string)
		if field == "" {
			return nil, fmt.Errorf("%w: %s has no field", docstore.ErrUnsupportedAggregation, name)
		}
		size := defaultSize
		switch v := terms["size"].(type) {
		case int:
			size = v
		case float64:
			size = int(v)
		}
		out = append(out, &termsAgg{name: name, field: field, size: size, counts: map[string]int{}})
	}
	return out, nil
}

func (a *termsAgg) add(id string, fields map[string]any) {
	for _, v := range docstore.FieldValues(id, fields, a.field) {
		a.counts[v]++
	}
}

func (a *termsAgg) result() termsResult {
	buckets := make([]bucket, 0, len(a.counts))
	for key, n := range a.counts {
		buckets = append(buckets, bucket{Key: key, DocCount: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].DocCount != buckets[j].DocCount {
			return buckets[i].DocCount > buckets[j].DocCount
		}
		return buckets[i].Key < buckets[j].Key
	})
	res := termsResult{Buckets: buckets}
	if a.size >= 0 && len(buckets) > a.size {
		for _, b := range buckets[a.size:] {
			res.SumOtherDocCount += b.DocCount
		}
		res.Buckets = buckets[:a.size]
	}
	return res
}

func renderAggs(aggs []*termsAgg) (json.RawMessage, error) {
	out := make(map[string]termsResult, len(aggs))
	for _, a := range aggs {
		out[a.name] = a.result()
	}
	return json.Marshal(out)
}
