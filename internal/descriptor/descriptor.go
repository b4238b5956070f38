// Package descriptor serialises a described Package to the Tabular
// Data Package JSON shape (§4.7).
package descriptor

import (
	"encoding/json"
	"io"

	"github.com/csvdescribe/csvdescribe/internal/model"
)

type packageDoc struct {
	Profile   string         `json:"profile"`
	Resources []*resourceDoc `json:"resources"`
}

type resourceDoc struct {
	Profile     string          `json:"profile"`
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	RowCount    int             `json:"row_count"`
	Dialect     dialectDoc      `json:"dialect"`
	Schema      schemaDoc       `json:"schema"`
	ForeignKeys []foreignKeyDoc `json:"foreignKeys,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type foreignKeyDoc struct {
	FromField  string  `json:"fromField"`
	ToResource string  `json:"toResource"`
	ToField    string  `json:"toField"`
	Ratio      float64 `json:"ratio"`
}

type dialectDoc struct {
	Delimiter string `json:"delimiter"`
	QuoteChar string `json:"quoteChar"`
}

type schemaDoc struct {
	Fields []fieldDoc `json:"fields"`
}

type fieldDoc struct {
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Format string    `json:"format"`
	Stats  *statsDoc `json:"stats,omitempty"`
}

type statsDoc struct {
	Count      int    `json:"count"`
	EmptyCount int    `json:"empty_count"`
	MinLen     int    `json:"min_len"`
	MaxLen     int    `json:"max_len"`
	MinStr     string `json:"min_str,omitempty"`
	MaxStr     string `json:"max_str,omitempty"`

	ExactUnique    *int          `json:"exact_unique,omitempty"`
	EstimateUnique *uint64       `json:"estimate_unique,omitempty"`
	Top20          []topValueDoc `json:"top_20,omitempty"`

	MinNumber *float64 `json:"min_number,omitempty"`
	MaxNumber *float64 `json:"max_number,omitempty"`
	Sum       *float64 `json:"sum,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
	Variance  *float64 `json:"variance,omitempty"`
	StdDev    *float64 `json:"stddev,omitempty"`

	Median        *float64  `json:"median,omitempty"`
	LowerQuartile *float64  `json:"lower_quartile,omitempty"`
	UpperQuartile *float64  `json:"upper_quartile,omitempty"`
	Deciles       []float64 `json:"deciles,omitempty"`
	Centiles      []float64 `json:"centiles,omitempty"`
}

type topValueDoc struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Encode writes pkg's JSON descriptor to w, preserving resource and
// field order and leaving floats unrounded.
func Encode(w io.Writer, pkg *model.Package) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toDoc(pkg))
}

func toDoc(pkg *model.Package) packageDoc {
	doc := packageDoc{Profile: pkg.Profile}
	for _, res := range pkg.Resources {
		doc.Resources = append(doc.Resources, resourceToDoc(res))
	}
	return doc
}

func resourceToDoc(res *model.Resource) *resourceDoc {
	rd := &resourceDoc{
		Profile:  "tabular-data-resource",
		Name:     res.Name,
		Path:     res.Path,
		RowCount: res.RowCount,
		Dialect: dialectDoc{
			Delimiter: string(res.Dialect.Delimiter),
			QuoteChar: string(res.Dialect.Quote),
		},
	}
	if res.FatalError != nil {
		rd.Error = res.FatalError.Error()
	}
	for _, f := range res.Fields {
		rd.Schema.Fields = append(rd.Schema.Fields, fieldToDoc(f))
	}
	for _, fk := range res.ForeignKeys {
		rd.ForeignKeys = append(rd.ForeignKeys, foreignKeyDoc{
			FromField:  fk.FromField,
			ToResource: fk.ToResource,
			ToField:    fk.ToField,
			Ratio:      fk.Ratio,
		})
	}
	return rd
}

func fieldToDoc(f model.Field) fieldDoc {
	fd := fieldDoc{Name: f.Name, Type: string(f.Type), Format: f.Format}
	s := f.Stats
	sd := &statsDoc{
		Count:          s.Count,
		EmptyCount:     s.EmptyCount,
		MinLen:         s.MinLen,
		MaxLen:         s.MaxLen,
		MinStr:         s.MinStr,
		MaxStr:         s.MaxStr,
		ExactUnique:    s.ExactUnique,
		EstimateUnique: s.EstimateUnique,
		MinNumber:      s.MinNumber,
		MaxNumber:      s.MaxNumber,
		Sum:            s.Sum,
		Mean:           s.Mean,
		Variance:       s.Variance,
		StdDev:         s.StdDev,
		Median:         s.Median,
		LowerQuartile:  s.LowerQuartile,
		UpperQuartile:  s.UpperQuartile,
		Deciles:        s.Deciles,
		Centiles:       s.Centiles,
	}
	for _, tv := range s.Top20 {
		sd.Top20 = append(sd.Top20, topValueDoc{Value: tv.Value, Count: tv.Count})
	}
	fd.Stats = sd
	return fd
}
