package merge

import (
	"strconv"
	"testing"

	"github.com/csvdescribe/csvdescribe/internal/classify"
	"github.com/csvdescribe/csvdescribe/internal/model"
	"github.com/csvdescribe/csvdescribe/internal/stats"
)

func TestResolveType_UnanimityWins(t *testing.T) {
	got := ResolveType(map[model.Type]int{model.TypeInteger: 5})
	if got != model.TypeInteger {
		t.Errorf("ResolveType() = %v, want integer", got)
	}
}

func TestResolveType_NoObservationsIsString(t *testing.T) {
	got := ResolveType(map[model.Type]int{})
	if got != model.TypeString {
		t.Errorf("ResolveType() = %v, want string", got)
	}
	got = ResolveType(map[model.Type]int{model.TypeInteger: 0})
	if got != model.TypeString {
		t.Errorf("ResolveType() with zero counts = %v, want string", got)
	}
}

func TestResolveType_JoinRules(t *testing.T) {
	cases := []struct {
		name   string
		counts map[model.Type]int
		want   model.Type
	}{
		{"integer+number=number", map[model.Type]int{model.TypeInteger: 1, model.TypeNumber: 1}, model.TypeNumber},
		{"integer+string=string", map[model.Type]int{model.TypeInteger: 1, model.TypeString: 1}, model.TypeString},
		{"date+datetime=string", map[model.Type]int{model.TypeDate: 1, model.TypeDateTime: 1}, model.TypeString},
		{"array+object=string", map[model.Type]int{model.TypeArray: 1, model.TypeObject: 1}, model.TypeString},
		{"boolean+integer=string", map[model.Type]int{model.TypeBoolean: 1, model.TypeInteger: 1}, model.TypeString},
		{"boolean+boolean=boolean", map[model.Type]int{model.TypeBoolean: 2}, model.TypeBoolean},
		{"array+string=string", map[model.Type]int{model.TypeArray: 1, model.TypeString: 1}, model.TypeString},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveType(tc.counts); got != tc.want {
				t.Errorf("ResolveType(%v) = %v, want %v", tc.counts, got, tc.want)
			}
		})
	}
}

func TestFormatFor_TemporalUsesRecordedFormat(t *testing.T) {
	formats := map[model.Type]string{model.TypeDate: "2006-01-02"}
	if got := FormatFor(model.TypeDate, formats); got != "2006-01-02" {
		t.Errorf("FormatFor(date) = %q, want layout", got)
	}
	if got := FormatFor(model.TypeInteger, formats); got != "integer" {
		t.Errorf("FormatFor(integer) = %q, want %q", got, "integer")
	}
}

func TestBuildField_StringColumnCarriesNoNumericSummary(t *testing.T) {
	c := classify.New(false)
	s := stats.New(1)
	for _, cell := range []string{"alpha", "beta"} {
		s.Observe(cell, c.Classify(cell), true)
	}
	field := BuildField("name", model.TypeString, s, true)
	if field.Stats.Sum != nil || field.Stats.Mean != nil {
		t.Error("string field carries a numeric summary, want nil")
	}
	if field.Stats.ExactUnique == nil || *field.Stats.ExactUnique != 2 {
		t.Errorf("ExactUnique = %v, want 2", field.Stats.ExactUnique)
	}
}

func TestBuildField_NumericColumnCarriesSummaryAndQuantiles(t *testing.T) {
	c := classify.New(false)
	s := stats.New(1)
	for _, cell := range []string{"1", "2", "3", "4", "5"} {
		s.Observe(cell, c.Classify(cell), true)
	}
	field := BuildField("n", model.TypeInteger, s, true)
	if field.Stats.Sum == nil || *field.Stats.Sum != 15 {
		t.Errorf("Sum = %v, want 15", field.Stats.Sum)
	}
	if field.Stats.Median == nil {
		t.Error("Median is nil for a numeric field")
	}
	if len(field.Stats.Deciles) != 9 {
		t.Errorf("len(Deciles) = %d, want 9", len(field.Stats.Deciles))
	}
}

func TestBuildField_EstimateUniqueUsedAfterOverflow(t *testing.T) {
	c := classify.New(false)
	s := stats.New(1)
	for i := 0; i < 200; i++ {
		cell := strconv.Itoa(i)
		s.Observe(cell, c.Classify(cell), true)
	}
	field := BuildField("n", model.TypeInteger, s, true)
	if field.Stats.ExactUnique != nil {
		t.Error("ExactUnique set after overflow, want nil")
	}
	if field.Stats.EstimateUnique == nil {
		t.Error("EstimateUnique is nil after overflow")
	}
}

func TestBuildField_StatsFalseOmitsQuantileTop20AndWelford(t *testing.T) {
	c := classify.New(false)
	s := stats.New(1)
	for _, cell := range []string{"1", "2", "3", "1"} {
		s.Observe(cell, c.Classify(cell), true)
	}
	field := BuildField("n", model.TypeInteger, s, false)

	if field.Stats.Count != 4 || field.Stats.MinLen != 1 || field.Stats.MaxLen != 1 {
		t.Errorf("stats=false must still keep count/min-max length: %+v", field.Stats)
	}
	if field.Stats.Sum != nil || field.Stats.Mean != nil || field.Stats.Variance != nil {
		t.Error("stats=false left a Welford summary populated")
	}
	if field.Stats.Median != nil || field.Stats.Deciles != nil {
		t.Error("stats=false left quantiles populated")
	}
	if field.Stats.Top20 != nil {
		t.Error("stats=false left top20 populated")
	}
}
