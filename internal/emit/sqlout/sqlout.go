// Package sqlout emits a described Package as SQL: either a CREATE
// TABLE + data-load dump script, or a direct connection that creates
// the tables and bulk-loads each resource's rows from its original
// file. Grounded on the sql-importer's schema-to-DDL mapping and its
// Postgres COPY-based bulk loader, generalised across dialects.
package sqlout

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/csvdescribe/csvdescribe/internal/model"
)

// Dialect selects the target SQL engine.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	MSSQL    Dialect = "mssql"
	SQLite   Dialect = "sqlite"
	DuckDB   Dialect = "duckdb"
)

// driverName maps a Dialect to the database/sql driver registered by
// this package's blank imports. DuckDB is deliberately excluded: its
// driver (marcboeker/go-duckdb) needs cgo and is wired through
// internal/emit/columnar instead, where it has a genuine home
// (Parquet/Arrow-oriented workloads) rather than forcing a cgo
// dependency onto every sqlout caller.
var driverName = map[Dialect]string{
	Postgres: "pgx",
	MySQL:    "mysql",
	MSSQL:    "sqlserver",
	SQLite:   "sqlite",
}

var sqlTypeMap = map[Dialect]map[model.Type]string{
	Postgres: {
		model.TypeString: "text", model.TypeInteger: "bigint", model.TypeNumber: "double precision",
		model.TypeBoolean: "boolean", model.TypeDate: "date", model.TypeDateTime: "timestamp",
		model.TypeTime: "time", model.TypeArray: "jsonb", model.TypeObject: "jsonb",
	},
	MySQL: {
		model.TypeString: "text", model.TypeInteger: "bigint", model.TypeNumber: "double",
		model.TypeBoolean: "boolean", model.TypeDate: "date", model.TypeDateTime: "datetime",
		model.TypeTime: "time", model.TypeArray: "json", model.TypeObject: "json",
	},
	MSSQL: {
		model.TypeString: "nvarchar(max)", model.TypeInteger: "bigint", model.TypeNumber: "float",
		model.TypeBoolean: "bit", model.TypeDate: "date", model.TypeDateTime: "datetime2",
		model.TypeTime: "time", model.TypeArray: "nvarchar(max)", model.TypeObject: "nvarchar(max)",
	},
	SQLite: {
		model.TypeString: "text", model.TypeInteger: "integer", model.TypeNumber: "real",
		model.TypeBoolean: "integer", model.TypeDate: "text", model.TypeDateTime: "text",
		model.TypeTime: "text", model.TypeArray: "text", model.TypeObject: "text",
	},
	DuckDB: {
		model.TypeString: "varchar", model.TypeInteger: "bigint", model.TypeNumber: "double",
		model.TypeBoolean: "boolean", model.TypeDate: "date", model.TypeDateTime: "timestamp",
		model.TypeTime: "time", model.TypeArray: "varchar", model.TypeObject: "varchar",
	},
}

var badChars = regexp.MustCompile(`[^a-z0-9_]+`)

// cleanIdentifier lower-cases and strips characters unsafe to use bare
// in any of the supported dialects.
func cleanIdentifier(n string) string {
	return badChars.ReplaceAllString(strings.ToLower(n), "_")
}

// CreateTableSQL renders one resource's CREATE TABLE statement.
func CreateTableSQL(dialect Dialect, res *model.Resource) string {
	types := sqlTypeMap[dialect]
	cols := make([]string, 0, len(res.Fields))
	for _, f := range res.Fields {
		sqlType, ok := types[f.Type]
		if !ok {
			sqlType = types[model.TypeString]
		}
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(dialect, cleanIdentifier(f.Name)), sqlType))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quoteIdent(dialect, cleanIdentifier(res.Name)), strings.Join(cols, ",\n  "))
}

func quoteIdent(dialect Dialect, name string) string {
	if dialect == MySQL {
		return "`" + name + "`"
	}
	return pq.QuoteIdentifier(name)
}

// WriteDump writes a full CREATE TABLE + bulk-load dump script for
// every resource in pkg. The load step is written as dialect-native
// bulk-load syntax referencing each resource's original file path
// rather than inlining row data, since the describer does not retain
// raw rows once a resource is merged.
func WriteDump(w io.Writer, dialect Dialect, pkg *model.Package) error {
	var buf bytes.Buffer
	for _, res := range pkg.Resources {
		if res.FatalError != nil {
			continue
		}
		table := cleanIdentifier(res.Name)
		buf.WriteString(CreateTableSQL(dialect, res))
		buf.WriteString(";\n\n")
		buf.WriteString(loadStatement(dialect, table, res.Path, res.Fields))
		buf.WriteString("\n\n")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func loadStatement(dialect Dialect, table, path string, fields []model.Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = cleanIdentifier(f.Name)
	}
	switch dialect {
	case Postgres:
		return fmt.Sprintf("\\copy %s (%s) FROM %s WITH (FORMAT csv, HEADER true)",
			pq.QuoteIdentifier(table), strings.Join(cols, ", "), pq.QuoteLiteral(path))
	case MySQL:
		return fmt.Sprintf("LOAD DATA LOCAL INFILE '%s' INTO TABLE `%s` FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '\"' LINES TERMINATED BY '\\n' IGNORE 1 LINES (%s);",
			escapeSingle(path), table, strings.Join(cols, ", "))
	case MSSQL:
		return fmt.Sprintf("BULK INSERT [%s] FROM '%s' WITH (FORMAT = 'CSV', FIRSTROW = 2);", table, escapeSingle(path))
	case SQLite:
		return fmt.Sprintf(".mode csv\n.import --skip 1 %s %s", path, table)
	case DuckDB:
		return fmt.Sprintf("COPY %s FROM '%s' (FORMAT CSV, HEADER);", table, escapeSingle(path))
	default:
		return "-- unsupported dialect: " + string(dialect)
	}
}

func escapeSingle(s string) string { return strings.ReplaceAll(s, "'", "''") }

// Config drives a direct-connection emit.
type Config struct {
	Dialect Dialect
	DSN     string
}

// Load connects to the target database, creates every resource's
// table, then bulk-loads its data by re-reading the resource's CSV
// file (the describer itself never retains row bodies past merge).
func Load(ctx context.Context, cfg Config, pkg *model.Package) error {
	driver, ok := driverName[cfg.Dialect]
	if !ok {
		return fmt.Errorf("sqlout: no direct-connection driver for dialect %q", cfg.Dialect)
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlout: open %s: %w", cfg.Dialect, err)
	}
	defer db.Close()

	for _, res := range pkg.Resources {
		if res.FatalError != nil {
			continue
		}
		if err := loadOne(ctx, db, cfg.Dialect, res); err != nil {
			return fmt.Errorf("sqlout: load %s: %w", res.Name, err)
		}
	}
	return nil
}

func loadOne(ctx context.Context, db *sql.DB, dialect Dialect, res *model.Resource) error {
	if _, err := db.ExecContext(ctx, CreateTableSQL(dialect, res)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	f, err := os.Open(res.Path)
	if err != nil {
		return fmt.Errorf("reopen source for load: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = rune(res.Dialect.Delimiter)
	if _, err := cr.Read(); err != nil { // discard header; column order matches res.Fields
		return fmt.Errorf("read header: %w", err)
	}

	cols := make([]string, len(res.Fields))
	for i, f := range res.Fields {
		cols[i] = cleanIdentifier(f.Name)
	}
	table := cleanIdentifier(res.Name)

	if dialect == Postgres {
		return copyInPostgres(ctx, db, table, cols, cr)
	}
	return batchInsert(ctx, db, dialect, table, cols, cr)
}

// copyInPostgres streams rows through pq.CopyIn, mirroring the
// sql-importer's bulk-load path.
func copyInPostgres(ctx context.Context, db *sql.DB, table string, cols []string, cr *csv.Reader) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, cols...))
	if err != nil {
		tx.Rollback()
		return err
	}

	args := make([]any, len(cols))
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return err
		}
		for i, v := range row {
			if v == "" {
				args[i] = nil
			} else {
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// batchInsert is the portable fallback for dialects without a native
// bulk-copy protocol wired here: one multi-row INSERT per batch of up
// to 500 rows, all inside a single transaction.
func batchInsert(ctx context.Context, db *sql.DB, dialect Dialect, table string, cols []string, cr *csv.Reader) error {
	const batchSize = 500
	placeholder := func(i int) string {
		if dialect == Postgres {
			return fmt.Sprintf("$%d", i+1)
		}
		return "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	batch := make([][]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(cols))
		for r, row := range batch {
			ph := make([]string, len(cols))
			for c := range cols {
				ph[c] = placeholder(r*len(cols) + c)
				if row[c] == "" {
					args = append(args, nil)
				} else {
					args = append(args, row[c])
				}
			}
			placeholders[r] = "(" + strings.Join(ph, ", ") + ")"
		}
		stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, stmtSQL, args...); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tx.Rollback()
			return err
		}
		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SortedDialects returns the supported dialects in a stable order, for
// help text and validation.
func SortedDialects() []Dialect {
	ds := []Dialect{Postgres, MySQL, MSSQL, SQLite, DuckDB}
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
	return ds
}
