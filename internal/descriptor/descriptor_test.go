package descriptor

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/csvdescribe/csvdescribe/internal/model"
)

func TestEncode_TopLevelShape(t *testing.T) {
	pkg := model.NewPackage()
	n := 3
	pkg.Resources = []*model.Resource{
		{
			Name: "people", Path: "people.csv", RowCount: 2,
			Dialect: model.Dialect{Delimiter: ',', Quote: '"'},
			Fields: []model.Field{
				{Name: "id", Type: model.TypeInteger, Format: "integer", Stats: model.Statistics{Count: 2, ExactUnique: &n}},
			},
		},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, pkg); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got["profile"] != "tabular-data-package" {
		t.Errorf("profile = %v, want tabular-data-package", got["profile"])
	}
	resources, ok := got["resources"].([]any)
	if !ok || len(resources) != 1 {
		t.Fatalf("resources = %v, want a one-element array", got["resources"])
	}
	resource := resources[0].(map[string]any)
	if resource["profile"] != "tabular-data-resource" {
		t.Errorf("resource profile = %v, want tabular-data-resource", resource["profile"])
	}
	if resource["name"] != "people" {
		t.Errorf("resource name = %v, want people", resource["name"])
	}
	dialect := resource["dialect"].(map[string]any)
	if dialect["delimiter"] != "," {
		t.Errorf("dialect.delimiter = %v, want ,", dialect["delimiter"])
	}
}

func TestEncode_OmitsUnsetOptionalStats(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{
			Name: "r", Fields: []model.Field{
				{Name: "s", Type: model.TypeString, Format: "string", Stats: model.Statistics{Count: 1}},
			},
		},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, pkg); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out := buf.String()
	for _, absent := range []string{`"mean"`, `"sum"`, `"exact_unique"`, `"median"`, `"top_20"`} {
		if bytes.Contains([]byte(out), []byte(absent)) {
			t.Errorf("output contains %s for a field with no numeric stats, want omitted", absent)
		}
	}
}

func TestEncode_StatsUsesSpecFieldNames(t *testing.T) {
	n := 2
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{
			Name: "r", Fields: []model.Field{
				{Name: "s", Type: model.TypeString, Format: "string", Stats: model.Statistics{
					Count: 2, MinLen: 1, MaxLen: 3, MinStr: "a", MaxStr: "ccc",
					ExactUnique: &n,
					Top20:       []model.TopValue{{Value: "a", Count: 1}},
				}},
			},
		},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, pkg); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"min_len"`, `"max_len"`, `"min_str"`, `"max_str"`, `"exact_unique"`, `"top_20"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("output missing spec key %s: %s", want, out)
		}
	}
	for _, absent := range []string{`"min_length"`, `"max_length"`, `"unique"`, `"unique_estimate"`, `"top20"`} {
		if bytes.Contains([]byte(out), []byte(absent)) {
			t.Errorf("output contains stale key %s, want renamed to spec form", absent)
		}
	}
}

func TestEncode_ForeignKeysSerialized(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{
			Name: "orders",
			ForeignKeys: []model.ForeignKey{
				{FromResource: "orders", FromField: "customer_id", ToResource: "customers", ToField: "id", Ratio: 1.0},
			},
		},
		{Name: "customers"},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, pkg); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var got map[string]any
	json.Unmarshal(buf.Bytes(), &got)
	resources := got["resources"].([]any)
	orders := resources[0].(map[string]any)
	fks, ok := orders["foreignKeys"].([]any)
	if !ok || len(fks) != 1 {
		t.Fatalf("orders.foreignKeys = %v, want a one-element array", orders["foreignKeys"])
	}
	fk := fks[0].(map[string]any)
	if fk["toResource"] != "customers" || fk["toField"] != "id" || fk["fromField"] != "customer_id" {
		t.Errorf("foreignKeys[0] = %+v, want customer_id -> customers.id", fk)
	}
	customers := resources[1].(map[string]any)
	if _, present := customers["foreignKeys"]; present {
		t.Error("customers.foreignKeys present for a resource with no detected keys, want omitted")
	}
}

func TestEncode_FatalErrorSurfacedAsErrorField(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{Name: "broken", FatalError: errString("cannot open input")},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, pkg); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var got map[string]any
	json.Unmarshal(buf.Bytes(), &got)
	resource := got["resources"].([]any)[0].(map[string]any)
	if resource["error"] != "cannot open input" {
		t.Errorf("error field = %v, want the fatal error message", resource["error"])
	}
}

type errString string

func (e errString) Error() string { return string(e) }
