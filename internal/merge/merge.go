// Package merge implements the schema merger (§4.3): it reduces a
// column's per-cell type-hypothesis counter down to one final Type, then
// builds the field's public Statistics from its Statistician.
package merge

import (
	"github.com/csvdescribe/csvdescribe/internal/model"
	"github.com/csvdescribe/csvdescribe/internal/stats"
)

// ResolveType reduces a column's observed type multiset to a single
// final type, following the join lattice: same-type unanimity wins;
// otherwise pairwise join rules decide. A column with no non-empty
// cells resolves to TypeString.
func ResolveType(counts map[model.Type]int) model.Type {
	observed := make([]model.Type, 0, len(counts))
	for t, c := range counts {
		if c > 0 {
			observed = append(observed, t)
		}
	}
	if len(observed) == 0 {
		return model.TypeString
	}
	result := observed[0]
	for _, t := range observed[1:] {
		result = join(result, t)
	}
	return result
}

// join combines two types per the lattice rules (§4.3).
func join(a, b model.Type) model.Type {
	if a == b {
		return a
	}
	if isNumeric(a) && isNumeric(b) {
		return model.TypeNumber
	}
	if a == model.TypeString || b == model.TypeString {
		return model.TypeString
	}
	if isTemporal(a) && isTemporal(b) {
		return model.TypeString
	}
	if isStructured(a) && isStructured(b) {
		return model.TypeString
	}
	// Boolean only joins with itself; any other mismatch, including one
	// side boolean, falls through to string.
	return model.TypeString
}

func isNumeric(t model.Type) bool {
	return t == model.TypeInteger || t == model.TypeNumber
}

func isTemporal(t model.Type) bool {
	return t == model.TypeDate || t == model.TypeDateTime || t == model.TypeTime
}

func isStructured(t model.Type) bool {
	return t == model.TypeArray || t == model.TypeObject
}

// FormatFor returns the format tag for the final type. For temporal
// types it is the pattern recorded by the statistician when the column
// unanimously agreed on that type; otherwise it is the type's own name.
func FormatFor(final model.Type, formatByType map[model.Type]string) string {
	if isTemporal(final) {
		if f, ok := formatByType[final]; ok {
			return f
		}
	}
	return string(final)
}

// BuildField reduces a Statistician's accumulated state plus a resolved
// type into the final public Field. computeStats is the closed option
// set's stats flag (§4.6): when false, quantile, top-20, and Welford
// results are omitted while type, count, empty_count, and min/max
// length and string are always kept.
func BuildField(name string, final model.Type, s *stats.Statistician, computeStats bool) model.Field {
	st := model.Statistics{
		Count:      s.Count,
		EmptyCount: s.EmptyCount,
		MinLen:     s.MinLen,
		MaxLen:     s.MaxLen,
		MinStr:     s.MinStr,
		MaxStr:     s.MaxStr,
	}

	if n, ok := s.ExactUnique(); ok {
		st.ExactUnique = &n
		st.ExactValues, _ = s.ExactValues()
		if computeStats {
			st.Top20 = s.Top20()
		}
	} else if n, ok := s.EstimateUnique(); ok {
		st.EstimateUnique = &n
	}

	// Numeric/quantile slots are only populated when the final type is
	// numeric; a column that resolved to string or a temporal type
	// carries no numeric summary even if some cells happened to parse
	// as numbers before the lattice widened the column.
	if computeStats && isNumeric(final) {
		if sum, mean, variance, stddev, min, max, ok := s.NumericSummary(); ok {
			st.Sum, st.Mean, st.Variance, st.StdDev = &sum, &mean, &variance, &stddev
			st.MinNumber, st.MaxNumber = &min, &max
		}
		if median, lowerQ, upperQ, deciles, centiles, ok := s.Quantiles(); ok {
			st.Median, st.LowerQuartile, st.UpperQuartile = &median, &lowerQ, &upperQ
			st.Deciles, st.Centiles = deciles, centiles
		}
	}

	return model.Field{
		Name:   name,
		Type:   final,
		Format: FormatFor(final, s.FormatByType),
		Stats:  st,
	}
}
