package orchestrator

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/csvdescribe/csvdescribe/internal/model"
)

func namedReader(name, content string) NamedReader {
	return NamedReader{Name: name, Reader: bytes.NewReader([]byte(content))}
}

func TestDescribeReaders_OneResourcePerInput(t *testing.T) {
	inputs := []NamedReader{
		namedReader("a", "id\n1\n2\n"),
		namedReader("b", "id\n3\n4\n5\n"),
	}
	pkg := DescribeReaders(context.Background(), inputs, Options{Threads: 1, Parallelism: 2})
	if len(pkg.Resources) != 2 {
		t.Fatalf("len(Resources) = %d, want 2", len(pkg.Resources))
	}
	if pkg.Resources[0].Name != "a" || pkg.Resources[1].Name != "b" {
		t.Errorf("resource names = %q/%q, want a/b in input order", pkg.Resources[0].Name, pkg.Resources[1].Name)
	}
	if pkg.Resources[1].RowCount != 3 {
		t.Errorf("resource b RowCount = %d, want 3", pkg.Resources[1].RowCount)
	}
}

func TestResolveNameCollisions_SuffixesLaterDuplicates(t *testing.T) {
	resources := []*model.Resource{
		{Name: "orders"},
		{Name: "orders"},
		{Name: "orders"},
		{Name: "customers"},
	}
	resolveNameCollisions(resources)

	want := []string{"orders", "orders_2", "orders_3", "customers"}
	for i, w := range want {
		if resources[i].Name != w {
			t.Errorf("resources[%d].Name = %q, want %q", i, resources[i].Name, w)
		}
	}
}

func TestResolveNameCollisions_SkipsNilResources(t *testing.T) {
	resources := []*model.Resource{
		{Name: "a"},
		nil,
		{Name: "a"},
	}
	resolveNameCollisions(resources)
	if resources[2].Name != "a_2" {
		t.Errorf("resources[2].Name = %q, want a_2", resources[2].Name)
	}
}

func intPtr(n int) *int { return &n }

func TestContainmentRatio_FullOverlapIsOne(t *testing.T) {
	a := model.Field{Stats: model.Statistics{ExactUnique: intPtr(3), ExactValues: []string{"x", "y", "z"}}}
	b := model.Field{Stats: model.Statistics{ExactUnique: intPtr(3), ExactValues: []string{"x", "y", "z"}}}
	if ratio := containmentRatio(a, b); ratio != 1.0 {
		t.Errorf("containmentRatio = %v, want 1.0", ratio)
	}
}

func TestContainmentRatio_NoOverlapIsZero(t *testing.T) {
	a := model.Field{Stats: model.Statistics{ExactUnique: intPtr(2), ExactValues: []string{"x", "y"}}}
	b := model.Field{Stats: model.Statistics{ExactUnique: intPtr(2), ExactValues: []string{"p", "q"}}}
	if ratio := containmentRatio(a, b); ratio != 0 {
		t.Errorf("containmentRatio = %v, want 0", ratio)
	}
}

func TestContainmentRatio_EmptyExactValuesIsZero(t *testing.T) {
	a := model.Field{}
	b := model.Field{Stats: model.Statistics{ExactValues: []string{"x"}}}
	if ratio := containmentRatio(a, b); ratio != 0 {
		t.Errorf("containmentRatio = %v, want 0", ratio)
	}
}

func TestContainmentRatio_SubsetAboveTwentyIsExact(t *testing.T) {
	// 30 distinct values, all shared: exceeds the old Top20 sample size,
	// so this only passes once containment is computed over the full set.
	a := make([]string, 30)
	for i := range a {
		a[i] = strconv.Itoa(i)
	}
	afield := model.Field{Stats: model.Statistics{ExactUnique: intPtr(30), ExactValues: a}}
	bfield := model.Field{Stats: model.Statistics{ExactUnique: intPtr(30), ExactValues: a}}
	if ratio := containmentRatio(afield, bfield); ratio != 1.0 {
		t.Errorf("containmentRatio = %v, want 1.0", ratio)
	}
}

func TestDetectForeignKeys_ReportsSubsetAboveThreshold(t *testing.T) {
	orderCustomerID := model.Field{
		Name: "customer_id",
		Stats: model.Statistics{
			ExactUnique: intPtr(3),
			ExactValues: []string{"1", "2", "3"},
		},
	}
	customerID := model.Field{
		Name: "id",
		Stats: model.Statistics{
			ExactUnique: intPtr(5),
			ExactValues: []string{"1", "2", "3", "4", "5"},
		},
	}
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{Name: "orders", Fields: []model.Field{orderCustomerID}},
		{Name: "customers", Fields: []model.Field{customerID}},
	}

	detectForeignKeys(pkg)

	if len(pkg.Resources[0].ForeignKeys) != 1 {
		t.Fatalf("len(ForeignKeys) = %d, want 1", len(pkg.Resources[0].ForeignKeys))
	}
	fk := pkg.Resources[0].ForeignKeys[0]
	if fk.FromResource != "orders" || fk.ToResource != "customers" {
		t.Errorf("fk = %+v, want orders -> customers", fk)
	}
}

func TestDetectForeignKeys_SkipsMismatchedTypesEvenOnStringOverlap(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{Name: "orders", Fields: []model.Field{{
			Name: "customer_id", Type: model.TypeInteger,
			Stats: model.Statistics{ExactUnique: intPtr(3), ExactValues: []string{"1", "2", "3"}},
		}}},
		{Name: "customers", Fields: []model.Field{{
			Name: "id", Type: model.TypeString,
			Stats: model.Statistics{ExactUnique: intPtr(3), ExactValues: []string{"1", "2", "3"}},
		}}},
	}
	detectForeignKeys(pkg)
	if len(pkg.Resources[0].ForeignKeys) != 0 {
		t.Errorf("ForeignKeys = %v, want none (integer column must not match a string column by raw value overlap)", pkg.Resources[0].ForeignKeys)
	}
}

func TestDetectForeignKeys_SkipsFieldsWithoutExactUnique(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		{Name: "a", Fields: []model.Field{{Name: "f", Stats: model.Statistics{ExactValues: []string{"1"}}}}},
		{Name: "b", Fields: []model.Field{{Name: "g", Stats: model.Statistics{ExactUnique: intPtr(1), ExactValues: []string{"1"}}}}},
	}
	detectForeignKeys(pkg)
	if len(pkg.Resources[0].ForeignKeys) != 0 {
		t.Errorf("ForeignKeys = %v, want none (fromField has no exact unique count)", pkg.Resources[0].ForeignKeys)
	}
}
