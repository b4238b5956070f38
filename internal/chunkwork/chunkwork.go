// Package chunkwork implements the chunk worker (§4.4): a pure function
// over a batch of already-parsed rows, producing one Statistician per
// column. It performs no I/O and touches no state shared with any other
// worker, so a resource's workers can run concurrently without locks.
package chunkwork

import (
	"strings"

	"github.com/csvdescribe/csvdescribe/internal/classify"
	"github.com/csvdescribe/csvdescribe/internal/stats"
)

// Chunk is a batch of parsed rows handed to one worker. Rows is a slice
// of records, each a slice of cell strings already split/unquoted by
// the CSV reader; all rows in a chunk share the same column count as
// the resource's header.
type Chunk struct {
	Rows [][]string

	// RowsBefore is the count of successfully-parsed rows produced
	// earlier in the resource, before Rows[0]. Combined with sampleSize
	// passed to Process, it lets a chunk mid-resource know whether any of
	// its rows still fall within the first N rows eligible for type
	// inference.
	RowsBefore int
}

// Process classifies every cell in chunk and folds it into one
// Statistician per column, indexed the same as the header. seed drives
// each column's quantile sketch so results stay reproducible at a fixed
// thread count. sampleSize caps type inference to the resource's first
// N rows (§4.6); 0 means every row infers. Every row, capped or not,
// still feeds every other statistic.
func Process(chunk Chunk, numColumns int, classifier *classify.Classifier, seed int64, sampleSize int) []*stats.Statistician {
	cols := make([]*stats.Statistician, numColumns)
	for i := range cols {
		cols[i] = stats.New(seed)
	}

	for idx, row := range chunk.Rows {
		infer := sampleSize <= 0 || chunk.RowsBefore+idx < sampleSize
		for i := 0; i < numColumns && i < len(row); i++ {
			cell := row[i]
			if strings.TrimSpace(cell) == "" {
				cols[i].ObserveEmpty()
				continue
			}
			h := classifier.Classify(cell)
			cols[i].Observe(cell, h, infer)
		}
	}
	return cols
}
