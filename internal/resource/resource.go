// Package resource drives one resource's pipeline (§4.5): dialect
// sniff, header parse, a row producer, a bounded chunk queue, a fixed
// pool of inference workers, and a merger that folds partial results
// into the resource's final fields.
package resource

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/csvdescribe/csvdescribe/internal/chunkwork"
	"github.com/csvdescribe/csvdescribe/internal/classify"
	"github.com/csvdescribe/csvdescribe/internal/errs"
	"github.com/csvdescribe/csvdescribe/internal/merge"
	"github.com/csvdescribe/csvdescribe/internal/model"
	"github.com/csvdescribe/csvdescribe/internal/stats"
)

// Options are the closed set of per-resource description options (§4.6).
type Options struct {
	Threads     int
	Delimiter   byte // 0 means sniff
	Quote       byte // 0 means '"'; recorded in the dialect only, rows are always parsed with '"'
	Stats       bool
	ForceString bool

	// SampleSize caps type inference to the resource's first N
	// successfully-parsed rows; 0 means no cap. Every row, sampled or
	// not, still feeds every other statistic (count, length, distinct,
	// numeric, quantile).
	SampleSize int

	// SniffBytes bounds how many bytes are read to sniff the dialect
	// (delimiter/quote); 0 uses sniffSampleBytes. Independent of
	// SampleSize, which governs row-sampled type inference instead.
	SniffBytes int

	Seed int64 // quantile/cardinality sketch seed

	// Stop, when non-nil, is polled between chunks/rows in addition to
	// ctx cancellation; setting it halts the resource without cancelling
	// a context shared with unrelated work. The orchestrator passes one
	// flag to every resource of a run but never sets it itself, so a
	// sibling's fatal error does not halt the others.
	Stop *atomic.Bool
}

const (
	sniffSampleBytes = 64 * 1024
	chunkRows        = 1000
)

// Describe runs the full per-resource pipeline against one file and
// returns its described Resource. ctx cancellation stops row production
// and worker dispatch cooperatively; partial statistics accumulated
// before cancellation are discarded in favor of a CodeCancelled error.
func Describe(ctx context.Context, path string, opts Options) *model.Resource {
	res := &model.Resource{
		Name: resourceName(path),
		Path: path,
	}

	f, err := os.Open(path)
	if err != nil {
		res.FatalError = errs.OpenError(path, err)
		return res
	}
	defer f.Close()

	return describeReader(ctx, f, res, opts)
}

// DescribeNamed runs the pipeline against an already-open reader under
// an explicit resource name, for callers that don't have a filesystem
// path (archive members, HTTP bodies, in-memory buffers).
func DescribeNamed(ctx context.Context, name string, r io.ReadSeeker, opts Options) *model.Resource {
	res := &model.Resource{Name: name, Path: name}
	return describeReader(ctx, r, res, opts)
}

// describeReader is split out from Describe so tests can drive the
// pipeline from an in-memory reader without touching the filesystem.
func describeReader(ctx context.Context, f io.ReadSeeker, res *model.Resource, opts Options) *model.Resource {
	sample := make([]byte, 0, sniffSampleBytes)
	sniffBytes := opts.SniffBytes
	if sniffBytes <= 0 {
		sniffBytes = sniffSampleBytes
	}
	buf := make([]byte, sniffBytes)
	n, _ := io.ReadFull(f, buf)
	sample = buf[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		res.FatalError = errs.Wrap(err, errs.CodeOpen, "rewind after dialect sample")
		return res
	}

	delim, quote := opts.Delimiter, opts.Quote
	if delim == 0 || quote == 0 {
		sniffedDelim, sniffedQuote := sniffDialect(sample)
		if delim == 0 {
			delim = sniffedDelim
		}
		if quote == 0 {
			quote = sniffedQuote
		}
	}
	res.Dialect = model.Dialect{Delimiter: delim, Quote: quote}

	br := bufio.NewReader(f)
	stripBOM(br)

	reader := csv.NewReader(br)
	reader.Comma = runeOf(delim)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		res.FatalError = errs.Wrap(err, errs.CodeHeader, "cannot read header row").WithContext("path", res.Path)
		return res
	}
	header = synthesizeNames(header)

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}

	if err := runPipeline(ctx, reader, header, threads, opts, res); err != nil {
		if errs.IsCode(err, errs.CodeCancelled) {
			res.FatalError = err
		} else {
			res.FatalError = errs.Wrap(err, errs.CodeInternalInvariant, "resource pipeline")
		}
	}
	return res
}

// runPipeline wires reader -> chunker -> N inference workers -> merger.
func runPipeline(ctx context.Context, reader *csv.Reader, header []string, threads int, opts Options, res *model.Resource) error {
	numCols := len(header)

	// A header can carry fewer names than the data rows when the source
	// omits trailing column headers (§4.5): peek the first row and, if
	// it is wider than the header, pad the header with synthesized
	// names before anything is sized against numCols.
	rowIndex := 0
	var pending [][]string
	firstRecord, firstErr := reader.Read()
	switch {
	case firstErr == nil:
		rowIndex++
		if len(firstRecord) > numCols {
			header = padHeader(header, len(firstRecord))
			numCols = len(header)
		}
		if len(firstRecord) == numCols {
			res.RowCount++
			pending = [][]string{firstRecord}
		} else {
			res.ParseErrors = append(res.ParseErrors, model.ParseError{
				RowIndex: rowIndex,
				Kind:     "row_shape",
				Detail:   "field count mismatch",
			})
		}
	case firstErr != io.EOF:
		rowIndex++
		res.ParseErrors = append(res.ParseErrors, model.ParseError{
			RowIndex: rowIndex,
			Kind:     "row_shape",
			Detail:   firstErr.Error(),
		})
	}

	queue := make(chan chunkwork.Chunk, threads*2)
	resultsCh := make(chan []*stats.Statistician, threads*2)

	cancelled := opts.Stop
	if cancelled == nil {
		cancelled = &atomic.Bool{}
	}
	classifier := classify.New(opts.ForceString)

	g, gctx := errgroup.WithContext(ctx)

	// Producer: reads rows, groups into fixed-size chunks, counts
	// malformed rows rather than aborting the resource.
	g.Go(func() error {
		defer close(queue)
		rows := append(make([][]string, 0, chunkRows), pending...)
		producedRows := 0
		for {
			if cancelled.Load() || gctx.Err() != nil {
				return errs.Cancelled("row production")
			}
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			rowIndex++
			if err != nil {
				res.ParseErrors = append(res.ParseErrors, model.ParseError{
					RowIndex: rowIndex,
					Kind:     "row_shape",
					Detail:   err.Error(),
				})
				continue
			}
			if len(record) != numCols {
				res.ParseErrors = append(res.ParseErrors, model.ParseError{
					RowIndex: rowIndex,
					Kind:     "row_shape",
					Detail:   "field count mismatch",
				})
				continue
			}
			res.RowCount++
			rows = append(rows, record)
			if len(rows) == chunkRows {
				select {
				case queue <- chunkwork.Chunk{Rows: rows, RowsBefore: producedRows}:
				case <-gctx.Done():
					return errs.Cancelled("row production")
				}
				producedRows += len(rows)
				rows = make([][]string, 0, chunkRows)
			}
		}
		if len(rows) > 0 {
			select {
			case queue <- chunkwork.Chunk{Rows: rows, RowsBefore: producedRows}:
			case <-gctx.Done():
				return errs.Cancelled("row production")
			}
		}
		return nil
	})

	// Workers: pure classify+accumulate, no shared state.
	for i := 0; i < threads; i++ {
		g.Go(func() error {
			for {
				select {
				case chunk, ok := <-queue:
					if !ok {
						return nil
					}
					if cancelled.Load() {
						return errs.Cancelled("chunk worker")
					}
					cols := chunkwork.Process(chunk, numCols, classifier, opts.Seed, opts.SampleSize)
					select {
					case resultsCh <- cols:
					case <-gctx.Done():
						return errs.Cancelled("chunk worker")
					}
				case <-gctx.Done():
					return errs.Cancelled("chunk worker")
				}
			}
		})
	}

	merged := make([]*stats.Statistician, numCols)
	for i := range merged {
		merged[i] = stats.New(opts.Seed)
	}

	mergeDone := make(chan struct{})
	go func() {
		defer close(mergeDone)
		for cols := range resultsCh {
			for i, c := range cols {
				merged[i].Merge(c)
			}
		}
	}()

	err := g.Wait()
	close(resultsCh)
	<-mergeDone

	if err != nil {
		return err
	}

	res.Fields = make([]model.Field, numCols)
	for i, name := range header {
		final := merge.ResolveType(merged[i].TypeCounts)
		res.Fields[i] = merge.BuildField(name, final, merged[i], opts.Stats)
	}
	return nil
}

func resourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runeOf(b byte) rune {
	if b == 0 {
		return ','
	}
	return rune(b)
}

// stripBOM advances past a UTF-8 byte-order mark if the reader starts
// with one.
func stripBOM(r *bufio.Reader) {
	bom, err := r.Peek(3)
	if err != nil {
		return
	}
	if len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		r.Discard(3)
	}
}

// synthesizeNames replaces blank header cells with field_<i> and
// decodes any stray invalid UTF-8 defensively.
func synthesizeNames(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || !utf8.ValidString(h) {
			h = "field_" + strconv.Itoa(i)
		}
		out[i] = h
	}
	return out
}

// padHeader extends header up to width with field_<i> synthesized
// names, for the case where the header row carries fewer cells than
// the data rows that follow it (§4.5).
func padHeader(header []string, width int) []string {
	if width <= len(header) {
		return header
	}
	out := make([]string, width)
	copy(out, header)
	for i := len(header); i < width; i++ {
		out[i] = "field_" + strconv.Itoa(i)
	}
	return out
}
