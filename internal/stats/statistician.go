// Package stats implements the column statistician (§4.2): per-column,
// per-chunk mutable state that is mergeable with a peer.
package stats

import (
	"math"
	"sort"

	"github.com/csvdescribe/csvdescribe/internal/classify"
	"github.com/csvdescribe/csvdescribe/internal/model"
)

// exactThreshold bounds the exact distinct-value counter; beyond it the
// statistician discards the map and switches to a cardinality sketch.
const exactThreshold = 100

// Statistician accumulates statistics for one column across a stream of
// non-empty and empty cells. It is the unit merged across chunk workers.
type Statistician struct {
	Count      int
	EmptyCount int

	MinLen, MaxLen int
	MinStr, MaxStr string
	sawString      bool

	// Bounded exact distinct counter; nil once overflowed to sketch.
	exact map[string]int
	// Cardinality sketch; nil until overflow.
	sketch *CardinalitySketch

	// Welford aggregator, updated only for numeric cells.
	numCount       int
	mean, m2, sum  float64
	minNum, maxNum float64
	sawNum         bool

	quantile *QuantileSketch

	// TypeCounts is the per-cell type-hypothesis counter (§3).
	TypeCounts map[model.Type]int
	// FormatByType records, for each type seen, one surviving format
	// string (used by the schema merger when exactly one temporal type
	// was observed across the column).
	FormatByType map[model.Type]string
}

// New returns an empty statistician. seed drives the quantile sketch's
// reservoir sampling so results are reproducible at a fixed thread count.
func New(seed int64) *Statistician {
	return &Statistician{
		exact:        make(map[string]int),
		quantile:     NewQuantileSketch(seed),
		TypeCounts:   make(map[model.Type]int),
		FormatByType: make(map[model.Type]string),
	}
}

// ObserveEmpty feeds one empty cell.
func (s *Statistician) ObserveEmpty() {
	s.EmptyCount++
}

// Observe feeds one non-empty cell along with its classifier hypothesis.
// infer selects whether this cell's hypothesis counts toward the
// column's type vote (§4.6 sample_size caps type inference to the
// first N rows while every other statistic still sees every row).
func (s *Statistician) Observe(cell string, h classify.Hypothesis, infer bool) {
	s.Count++
	if infer {
		s.TypeCounts[h.Type]++
		s.FormatByType[h.Type] = h.Format
	}

	l := len(cell)
	if !s.sawString || l < s.MinLen {
		s.MinLen = l
	}
	if !s.sawString || l > s.MaxLen {
		s.MaxLen = l
	}
	if !s.sawString || cell < s.MinStr {
		s.MinStr = cell
	}
	if !s.sawString || cell > s.MaxStr {
		s.MaxStr = cell
	}
	s.sawString = true

	s.observeDistinct(cell)

	if h.HasNum {
		s.observeNumeric(h.Number)
	}
}

func (s *Statistician) observeDistinct(cell string) {
	if s.sketch != nil {
		s.sketch.Add(cell)
		return
	}
	if _, ok := s.exact[cell]; ok {
		s.exact[cell]++
		return
	}
	if len(s.exact) < exactThreshold {
		s.exact[cell] = 1
		return
	}
	// Overflow: replay accumulated keys into a fresh sketch, then
	// discard the map.
	s.sketch = NewCardinalitySketch()
	for k, c := range s.exact {
		for i := 0; i < c; i++ {
			s.sketch.Add(k)
		}
	}
	s.sketch.Add(cell)
	s.exact = nil
}

func (s *Statistician) observeNumeric(v float64) {
	s.numCount++
	delta := v - s.mean
	s.mean += delta / float64(s.numCount)
	delta2 := v - s.mean
	s.m2 += delta * delta2
	s.sum += v
	if !s.sawNum || v < s.minNum {
		s.minNum = v
	}
	if !s.sawNum || v > s.maxNum {
		s.maxNum = v
	}
	s.sawNum = true
	s.quantile.Add(v)
}

// Merge combines other into s. Merge is associative and commutative on
// every exact slot (§4.2's merge contract); the quantile reservoir's
// merge is a random re-sample, so its contents depend on merge order.
func (s *Statistician) Merge(other *Statistician) {
	s.Count += other.Count
	s.EmptyCount += other.EmptyCount

	if other.sawString {
		if !s.sawString || other.MinLen < s.MinLen {
			s.MinLen = other.MinLen
		}
		if !s.sawString || other.MaxLen > s.MaxLen {
			s.MaxLen = other.MaxLen
		}
		if !s.sawString || other.MinStr < s.MinStr {
			s.MinStr = other.MinStr
		}
		if !s.sawString || other.MaxStr > s.MaxStr {
			s.MaxStr = other.MaxStr
		}
		s.sawString = true
	}

	s.mergeDistinct(other)

	for t, c := range other.TypeCounts {
		s.TypeCounts[t] += c
		if _, ok := s.FormatByType[t]; !ok {
			s.FormatByType[t] = other.FormatByType[t]
		}
	}

	if other.sawNum {
		s.mergeNumeric(other)
	}

	s.quantile.Merge(other.quantile)
}

func (s *Statistician) mergeDistinct(other *Statistician) {
	bothExact := s.sketch == nil && other.sketch == nil
	if bothExact {
		union := make(map[string]int, len(s.exact)+len(other.exact))
		for k, c := range s.exact {
			union[k] = c
		}
		for k, c := range other.exact {
			union[k] += c
		}
		if len(union) <= exactThreshold {
			s.exact = union
			return
		}
		// Promote both sides to sketches and merge.
		s.sketch = NewCardinalitySketch()
		for k, c := range union {
			for i := 0; i < c; i++ {
				s.sketch.Add(k)
			}
		}
		s.exact = nil
		return
	}

	if s.sketch == nil {
		// Promote s to a sketch first.
		s.sketch = NewCardinalitySketch()
		for k, c := range s.exact {
			for i := 0; i < c; i++ {
				s.sketch.Add(k)
			}
		}
		s.exact = nil
	}
	if other.sketch != nil {
		s.sketch.Merge(other.sketch)
	} else {
		for k, c := range other.exact {
			for i := 0; i < c; i++ {
				s.sketch.Add(k)
			}
		}
	}
}

// mergeNumeric follows the standard parallel Welford merge formula.
func (s *Statistician) mergeNumeric(other *Statistician) {
	if !s.sawNum {
		s.numCount = other.numCount
		s.mean = other.mean
		s.m2 = other.m2
		s.sum = other.sum
		s.minNum = other.minNum
		s.maxNum = other.maxNum
		s.sawNum = true
		return
	}

	nA, nB := float64(s.numCount), float64(other.numCount)
	delta := other.mean - s.mean
	total := nA + nB

	newMean := s.mean + delta*nB/total
	newM2 := s.m2 + other.m2 + delta*delta*nA*nB/total

	s.mean = newMean
	s.m2 = newM2
	s.numCount += other.numCount
	s.sum += other.sum
	if other.minNum < s.minNum {
		s.minNum = other.minNum
	}
	if other.maxNum > s.maxNum {
		s.maxNum = other.maxNum
	}
}

// Top20 returns up to 20 most frequent non-empty strings, descending by
// count, ties broken lexicographically. Only meaningful while the exact
// counter has not overflowed (ExactUnique() reports ok=false otherwise).
func (s *Statistician) Top20() []model.TopValue {
	if s.exact == nil {
		return nil
	}
	type kv struct {
		k string
		c int
	}
	all := make([]kv, 0, len(s.exact))
	for k, c := range s.exact {
		all = append(all, kv{k, c})
	}
	// simple insertion-style sort by (count desc, key asc); N <= 100.
	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && less(all[j], all[j-1]) {
			all[j], all[j-1] = all[j-1], all[j]
			j--
		}
	}
	n := len(all)
	if n > 20 {
		n = 20
	}
	out := make([]model.TopValue, n)
	for i := 0; i < n; i++ {
		out[i] = model.TopValue{Value: all[i].k, Count: all[i].c}
	}
	return out
}

func less(a, b struct {
	k string
	c int
}) bool {
	if a.c != b.c {
		return a.c > b.c
	}
	return a.k < b.k
}

// ExactUnique returns the exact distinct count and ok=true iff the exact
// counter has not overflowed to a sketch.
func (s *Statistician) ExactUnique() (int, bool) {
	if s.exact == nil {
		return 0, false
	}
	return len(s.exact), true
}

// EstimateUnique returns the sketch estimate and ok=true iff the exact
// counter has overflowed.
func (s *Statistician) EstimateUnique() (uint64, bool) {
	if s.sketch == nil {
		return 0, false
	}
	return s.sketch.Estimate(), true
}

// ExactValues returns the column's full exact distinct-value set,
// sorted, and ok=true iff the exact counter has not overflowed to a
// sketch. Used for foreign-key containment scoring (§4.6), which needs
// the whole set rather than the Top20 sample.
func (s *Statistician) ExactValues() ([]string, bool) {
	if s.exact == nil {
		return nil, false
	}
	out := make([]string, 0, len(s.exact))
	for k := range s.exact {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, true
}

// NumericSummary returns Welford-derived aggregates; ok is false if no
// numeric cell was ever observed.
func (s *Statistician) NumericSummary() (sum, mean, variance, stddev, min, max float64, ok bool) {
	if !s.sawNum || s.numCount == 0 {
		return 0, 0, 0, 0, 0, 0, false
	}
	variance = 0
	if s.numCount > 1 {
		variance = s.m2 / float64(s.numCount)
	}
	return s.sum, s.mean, variance, math.Sqrt(variance), s.minNum, s.maxNum, true
}

// Quantiles returns median, lower/upper quartile, deciles (9), and
// centiles (99) from the reservoir, per §3/§8.
func (s *Statistician) Quantiles() (median, lowerQ, upperQ float64, deciles, centiles []float64, ok bool) {
	if s.quantile == nil || s.quantile.Count() == 0 {
		return 0, 0, 0, nil, nil, false
	}
	ranks := make([]float64, 0, 3+9+99)
	ranks = append(ranks, 0.5, 0.25, 0.75)
	for i := 1; i <= 9; i++ {
		ranks = append(ranks, float64(i)/10)
	}
	for i := 1; i <= 99; i++ {
		ranks = append(ranks, float64(i)/100)
	}
	vals := s.quantile.Quantiles(ranks)
	median, lowerQ, upperQ = vals[0], vals[1], vals[2]
	deciles = vals[3:12]
	centiles = vals[12:111]
	return median, lowerQ, upperQ, deciles, centiles, true
}
