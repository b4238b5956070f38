package sqlout

import (
	"bytes"
	"strings"
	"testing"

	"github.com/csvdescribe/csvdescribe/internal/model"
)

func sampleResource() *model.Resource {
	return &model.Resource{
		Name: "Order Items",
		Path: "order_items.csv",
		Fields: []model.Field{
			{Name: "Order ID", Type: model.TypeInteger},
			{Name: "amount", Type: model.TypeNumber},
			{Name: "shipped_at", Type: model.TypeDateTime},
		},
	}
}

func TestCleanIdentifier_LowercasesAndStripsUnsafeChars(t *testing.T) {
	got := cleanIdentifier("Order ID")
	if got != "order_id" {
		t.Errorf("cleanIdentifier(%q) = %q, want order_id", "Order ID", got)
	}
}

func TestCreateTableSQL_MapsTypesPerDialect(t *testing.T) {
	res := sampleResource()
	sql := CreateTableSQL(Postgres, res)
	if !strings.Contains(sql, "bigint") || !strings.Contains(sql, "double precision") {
		t.Errorf("Postgres CreateTableSQL missing expected column types: %s", sql)
	}
	if !strings.Contains(sql, "order_items") && !strings.Contains(strings.ToLower(sql), "order_items") {
		t.Errorf("CreateTableSQL should reference the cleaned table name: %s", sql)
	}
}

func TestCreateTableSQL_MySQLUsesBacktickQuoting(t *testing.T) {
	res := sampleResource()
	sql := CreateTableSQL(MySQL, res)
	if !strings.Contains(sql, "`order_id`") {
		t.Errorf("MySQL CreateTableSQL should backtick-quote identifiers: %s", sql)
	}
}

func TestCreateTableSQL_UnknownTypeFallsBackToString(t *testing.T) {
	res := &model.Resource{Name: "r", Fields: []model.Field{{Name: "f", Type: model.Type("nonsense")}}}
	sql := CreateTableSQL(SQLite, res)
	if !strings.Contains(sql, "text") {
		t.Errorf("unrecognised type should fall back to the dialect's string type: %s", sql)
	}
}

func TestWriteDump_SkipsFatalResourcesAndEmitsLoadStatements(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{
		sampleResource(),
		{Name: "broken", FatalError: errBoom{}},
	}
	var buf bytes.Buffer
	if err := WriteDump(&buf, Postgres, pkg); err != nil {
		t.Fatalf("WriteDump() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "broken") {
		t.Error("WriteDump emitted a table for a resource with FatalError")
	}
	if !strings.Contains(out, "\\copy") {
		t.Errorf("Postgres dump missing \\copy load statement: %s", out)
	}
}

func TestWriteDump_MySQLUsesLoadDataInfile(t *testing.T) {
	pkg := model.NewPackage()
	pkg.Resources = []*model.Resource{sampleResource()}
	var buf bytes.Buffer
	WriteDump(&buf, MySQL, pkg)
	if !strings.Contains(buf.String(), "LOAD DATA LOCAL INFILE") {
		t.Errorf("MySQL dump missing LOAD DATA statement: %s", buf.String())
	}
}

func TestSortedDialects_IncludesAllFive(t *testing.T) {
	ds := SortedDialects()
	if len(ds) != 5 {
		t.Fatalf("len(SortedDialects()) = %d, want 5", len(ds))
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
