// csvdescribe - CSV schema inference and statistics CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/csvdescribe/csvdescribe/internal/descriptor"
	"github.com/csvdescribe/csvdescribe/internal/emit/bundle"
	"github.com/csvdescribe/csvdescribe/internal/emit/columnar"
	"github.com/csvdescribe/csvdescribe/internal/emit/sheet"
	"github.com/csvdescribe/csvdescribe/internal/emit/sqlout"
	"github.com/csvdescribe/csvdescribe/internal/model"
	"github.com/csvdescribe/csvdescribe/internal/orchestrator"
)

var (
	accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	muted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

var (
	flagThreads      int
	flagDelimiter    string
	flagQuote        string
	flagStats        bool
	flagForceString  bool
	flagSampleSize   int
	flagSniffBytes   int
	flagParallelism  int
	flagForeignKeys  bool
	flagOut          string
	flagEmit         string
	flagSQLDSN       string
	flagSQLDialect   string
	flagSQLDump      string
	flagColumnarOut  string
	flagColumnarFast bool
	flagSheetOut     string
	flagBundleOut    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "csvdescribe <file>...",
	Short: "Infer schema and statistics from CSV files",
	Long: `csvdescribe streams one or more CSV files through a multi-threaded
type-inference engine and emits a Tabular Data Package descriptor:
per-column types, formats, and rich statistics.

Examples:
  csvdescribe data.csv
  csvdescribe --threads 8 --stats a.csv b.csv
  csvdescribe --emit sql --sql-dialect postgres --sql-dsn "$DSN" data.csv
  csvdescribe --emit bundle --bundle-out bundle.zip *.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDescribe,
}

func init() {
	rootCmd.Flags().IntVar(&flagThreads, "threads", 0, "Workers per resource (0 = NumCPU)")
	rootCmd.Flags().StringVar(&flagDelimiter, "delimiter", "", "Force delimiter (default: sniff)")
	rootCmd.Flags().StringVar(&flagQuote, "quote", "", "Quote character recorded in the descriptor's dialect (default: \"); rows are always parsed with \"")
	rootCmd.Flags().BoolVar(&flagStats, "stats", true, "Compute full statistics, not just types")
	rootCmd.Flags().BoolVar(&flagForceString, "force-string", false, "Classify every column as string")
	rootCmd.Flags().IntVar(&flagSampleSize, "sample-size", 0, "Rows sampled for type inference (0 = every row); statistics still see every row")
	rootCmd.Flags().IntVar(&flagSniffBytes, "sniff-bytes", 64*1024, "Bytes sampled for dialect sniffing")
	rootCmd.Flags().IntVar(&flagParallelism, "parallelism", 1, "Resources described concurrently")
	rootCmd.Flags().BoolVar(&flagForeignKeys, "fk", false, "Detect foreign keys across resources")
	rootCmd.Flags().StringVar(&flagOut, "out", "", "Write JSON descriptor here (default: stdout)")
	rootCmd.Flags().StringVar(&flagEmit, "emit", "", "Additionally emit: sql, columnar, sheet, bundle")
	rootCmd.Flags().StringVar(&flagSQLDSN, "sql-dsn", "", "SQL connection string for --emit sql")
	rootCmd.Flags().StringVar(&flagSQLDialect, "sql-dialect", "sqlite", "SQL dialect: postgres, mysql, mssql, sqlite, duckdb")
	rootCmd.Flags().StringVar(&flagSQLDump, "sql-dump", "", "Write a SQL dump script here instead of connecting")
	rootCmd.Flags().StringVar(&flagColumnarOut, "columnar-out", "", "Parquet output path for --emit columnar")
	rootCmd.Flags().BoolVar(&flagColumnarFast, "columnar-fast", false, "Use DuckDB's native CSV-to-Parquet COPY instead of re-parsing rows through Arrow")
	rootCmd.Flags().StringVar(&flagSheetOut, "sheet-out", "", "Workbook output path for --emit sheet")
	rootCmd.Flags().StringVar(&flagBundleOut, "bundle-out", "", "Archive output path for --emit bundle")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	threads := flagThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	opts := orchestrator.Options{
		Threads:           threads,
		Delimiter:         firstByte(flagDelimiter),
		Quote:             firstByte(flagQuote),
		Stats:             flagStats,
		ForceString:       flagForceString,
		SampleSize:        flagSampleSize,
		SniffBytes:        flagSniffBytes,
		Parallelism:       flagParallelism,
		DetectForeignKeys: flagForeignKeys,
	}

	bar := newBar(len(args))
	defer bar.Finish()

	start := time.Now()
	pkg := orchestrator.DescribeFiles(context.Background(), args, opts)
	bar.Add(len(args))

	out := os.Stdout
	if flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			return fmt.Errorf("cannot create %s: %w", flagOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := descriptor.Encode(out, pkg); err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}

	if flagEmit != "" {
		if err := runEmit(pkg); err != nil {
			return err
		}
	}

	fmt.Fprintln(os.Stderr, muted.Render(fmt.Sprintf("described %d resource(s) in %v", len(pkg.Resources), time.Since(start).Round(time.Millisecond))))
	return nil
}

func runEmit(pkg *model.Package) error {
	switch flagEmit {
	case "sql":
		dialect := sqlout.Dialect(flagSQLDialect)
		if flagSQLDump != "" {
			f, err := os.Create(flagSQLDump)
			if err != nil {
				return fmt.Errorf("create dump file: %w", err)
			}
			defer f.Close()
			return sqlout.WriteDump(f, dialect, pkg)
		}
		return sqlout.Load(context.Background(), sqlout.Config{Dialect: dialect, DSN: flagSQLDSN}, pkg)
	case "columnar":
		if flagColumnarOut == "" {
			return fmt.Errorf("--columnar-out is required with --emit columnar")
		}
		for _, res := range pkg.Resources {
			if res.FatalError != nil {
				continue
			}
			out := columnarPathFor(flagColumnarOut, res.Name, len(pkg.Resources))
			if flagColumnarFast {
				if err := columnar.WriteFileViaDuckDB(out, res); err != nil {
					return err
				}
				continue
			}
			if err := columnar.WriteFile(out, res, columnar.CompressionSnappy); err != nil {
				return err
			}
		}
		return nil
	case "sheet":
		if flagSheetOut == "" {
			return fmt.Errorf("--sheet-out is required with --emit sheet")
		}
		return sheet.WriteFile(flagSheetOut, pkg)
	case "bundle":
		if flagBundleOut == "" {
			return fmt.Errorf("--bundle-out is required with --emit bundle")
		}
		return bundle.WriteFile(flagBundleOut, pkg, bundle.Options{IncludeDescriptor: true})
	default:
		return fmt.Errorf("unknown --emit target %q", flagEmit)
	}
}

// columnarPathFor gives each resource its own file when a package
// describes more than one, so a multi-resource run never overwrites
// its own output.
func columnarPathFor(base, resourceName string, numResources int) string {
	if numResources <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s.%s%s", stem, resourceName, ext)
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

func newBar(total int) *progressbar.ProgressBar {
	if !isTerminal() {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(accent.Render("describing")),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func isTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
