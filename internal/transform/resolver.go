package transform

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Mapping lists, per logical field, the header spellings that may carry it, most preferred first.
type Mapping map[string][]string

// Resolver maps logical fields to the concrete headers of one decoded file.
type Resolver struct {
	columns  []string
	folded   []string
	resolved map[string]string
	mapping  Mapping
}

// NewResolver resolves every field of mapping against columns once. For each field the
// first candidate present in columns wins.
func NewResolver(columns []string, mapping Mapping) *Resolver {
	r := &Resolver{
		columns:  columns,
		folded:   make([]string, len(columns)),
		resolved: make(map[string]string, len(mapping)),
		mapping:  mapping,
	}
	for i, c := range columns {
		r.folded[i] = Fold(c)
	}

	for field, candidates := range mapping {
		if col, ok := r.find(candidates); ok {
			r.resolved[field] = col
		}
	}
	return r
}

// Find resolves an ad-hoc candidate list that is not part of the mapping.
func (r *Resolver) Find(candidates ...string) (string, bool) {
	return r.find(candidates)
}

func (r *Resolver) find(candidates []string) (string, bool) {
	for _, cand := range candidates {
		want := Fold(cand)
		// Exact folded matches beat placeholder matches for the same candidate.
		for i, f := range r.folded {
			if f == want {
				return r.columns[i], true
			}
		}
		for i, f := range r.folded {
			if headerMatches(f, want) {
				return r.columns[i], true
			}
		}
	}
	return "", false
}

// Column returns the header resolved for field.
func (r *Resolver) Column(field string) (string, bool) {
	col, ok := r.resolved[field]
	return col, ok
}

// Has reports whether field resolved to a header.
func (r *Resolver) Has(field string) bool {
	_, ok := r.resolved[field]
	return ok
}

// Resolved returns a copy of the field -> header assignments.
func (r *Resolver) Resolved() map[string]string {
	out := make(map[string]string, len(r.resolved))
	for k, v := range r.resolved {
		out[k] = v
	}
	return out
}

// Suggest returns the header closest to field's first candidate, for "did you mean" messages.
func (r *Resolver) Suggest(field string) string {
	candidates := r.mapping[field]
	if len(candidates) == 0 || len(r.columns) == 0 {
		return ""
	}

	for _, cand := range candidates {
		ranks := fuzzy.RankFindNormalizedFold(cand, r.columns)
		if len(ranks) > 0 {
			sort.Sort(ranks)
			return ranks[0].Target
		}
	}

	best, bestDist := "", 4
	for i, f := range r.folded {
		if d := fuzzy.LevenshteinDistance(Fold(candidates[0]), f); d < bestDist {
			best, bestDist = r.columns[i], d
		}
	}
	return best
}
