// Package describe is the public library surface: describe one or many
// CSV files and get back a Tabular Data Package descriptor.
package describe

import (
	"context"

	"github.com/csvdescribe/csvdescribe/internal/model"
	"github.com/csvdescribe/csvdescribe/internal/orchestrator"
)

// Options is the closed set of description options exposed to callers.
type Options = orchestrator.Options

// Package is the described Tabular Data Package.
type Package = model.Package

// Resource is one described table within a Package.
type Resource = model.Resource

// Field is one described column.
type Field = model.Field

// Files describes every path in paths and assembles the results into
// one Package.
func Files(ctx context.Context, paths []string, opts Options) *Package {
	return orchestrator.DescribeFiles(ctx, paths, opts)
}

// NamedReader pairs a resource name with seekable content, for
// describing inputs that aren't plain filesystem paths.
type NamedReader = orchestrator.NamedReader

// Readers describes every named reader and assembles the results into
// one Package.
func Readers(ctx context.Context, named []NamedReader, opts Options) *Package {
	return orchestrator.DescribeReaders(ctx, named, opts)
}
