// Package orchestrator drives the describer across multiple resources
// (§4.6): parallel per-resource fan-out up to a configurable cap,
// name-collision resolution, foreign-key detection across resources,
// and assembly of the final Package descriptor.
package orchestrator

import (
	"context"
	"hash/fnv"
	"io"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/csvdescribe/csvdescribe/internal/model"
	"github.com/csvdescribe/csvdescribe/internal/resource"
)

// Options is the closed option set (§4.6) plus the orchestrator's own
// fan-out and FK-detection knobs.
type Options struct {
	Threads     int
	Delimiter   byte
	Quote       byte
	Stats       bool
	ForceString bool

	// SampleSize caps type inference to each resource's first N rows;
	// SniffBytes bounds how many bytes are read to sniff its dialect.
	// The two are independent (§4.6).
	SampleSize int
	SniffBytes int

	// Parallelism bounds how many resources describe concurrently; it
	// shares the same worker budget as each resource's Threads, so the
	// orchestrator never oversubscribes beyond Parallelism*Threads.
	Parallelism int
	Seed        int64

	// DetectForeignKeys turns on the cross-resource subset-containment
	// scan (§4.6); off by default since it is O(resources^2 * fields^2).
	DetectForeignKeys bool
}

// foreignKeyThreshold is the decided containment-ratio cutoff above
// which a (fromField, toField) pair is reported as a foreign key.
const foreignKeyThreshold = 0.98

// DescribeFiles describes every path and assembles them into one
// Package, resolving name collisions and optionally detecting foreign
// keys across the resulting resources.
func DescribeFiles(ctx context.Context, paths []string, opts Options) *model.Package {
	pkg := model.NewPackage()

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	resources := make([]*model.Resource, len(paths))
	stop := &atomic.Bool{}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, parallelism)
	var mu sync.Mutex

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			res := resource.Describe(gctx, path, resource.Options{
				Threads:     threads,
				Delimiter:   opts.Delimiter,
				Quote:       opts.Quote,
				Stats:       opts.Stats,
				ForceString: opts.ForceString,
				SampleSize:  opts.SampleSize,
				SniffBytes:  opts.SniffBytes,
				Seed:        opts.Seed,
				Stop:        stop,
			})

			mu.Lock()
			resources[i] = res
			mu.Unlock()
			return nil
		})
	}
	// Fan-out errors are per-resource (carried on Resource.FatalError),
	// so a sibling's fatal error never aborts the others; g.Wait only
	// surfaces context cancellation.
	_ = g.Wait()

	resolveNameCollisions(resources)
	pkg.Resources = resources

	if opts.DetectForeignKeys {
		detectForeignKeys(pkg)
	}

	return pkg
}

// DescribeReaders is the streaming-input counterpart to DescribeFiles,
// used by callers that already hold open readers (e.g. an archive
// member or an HTTP body) rather than filesystem paths.
func DescribeReaders(ctx context.Context, named []NamedReader, opts Options) *model.Package {
	pkg := model.NewPackage()
	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	resources := make([]*model.Resource, len(named))
	stop := &atomic.Bool{}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, parallelism)
	var mu sync.Mutex

	for i, nr := range named {
		i, nr := i, nr
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			res := resource.DescribeNamed(gctx, nr.Name, nr.Reader, resource.Options{
				Threads:     threads,
				Delimiter:   opts.Delimiter,
				Quote:       opts.Quote,
				Stats:       opts.Stats,
				ForceString: opts.ForceString,
				SampleSize:  opts.SampleSize,
				SniffBytes:  opts.SniffBytes,
				Seed:        opts.Seed,
				Stop:        stop,
			})

			mu.Lock()
			resources[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resolveNameCollisions(resources)
	pkg.Resources = resources

	if opts.DetectForeignKeys {
		detectForeignKeys(pkg)
	}

	return pkg
}

// NamedReader pairs a resource name with its content, for callers
// driving DescribeReaders from non-filesystem sources.
type NamedReader struct {
	Name   string
	Reader io.ReadSeeker
}

// resolveNameCollisions appends "_2", "_3", ... to later resources
// whose derived name collides with an earlier one, in input order.
func resolveNameCollisions(resources []*model.Resource) {
	seen := make(map[string]int)
	for _, res := range resources {
		if res == nil {
			continue
		}
		base := res.Name
		seen[base]++
		if n := seen[base]; n > 1 {
			res.Name = base + "_" + strconv.Itoa(n)
		}
	}
}

// detectForeignKeys scans every ordered pair of same-type fields across
// resources whose exact distinct-value sets are both available (i.e.
// neither overflowed to a cardinality sketch) and reports a foreign
// key when one field's value set is a subset of the other's above
// foreignKeyThreshold. Fields with an exact (non-estimated) unique
// count are the only candidates, since a field past the exact-tracking
// threshold has no full value set left to compare; a pair whose column
// types differ is skipped even if their string forms overlap, since a
// value-domain match across incompatible types isn't a real key
// relationship.
func detectForeignKeys(pkg *model.Package) {
	type fieldRef struct {
		resourceIdx int
		fieldIdx    int
	}
	var candidates []fieldRef
	for ri, res := range pkg.Resources {
		if res == nil {
			continue
		}
		for fi, field := range res.Fields {
			if field.Stats.ExactUnique != nil {
				candidates = append(candidates, fieldRef{ri, fi})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].resourceIdx != candidates[j].resourceIdx {
			return candidates[i].resourceIdx < candidates[j].resourceIdx
		}
		return candidates[i].fieldIdx < candidates[j].fieldIdx
	})

	for _, from := range candidates {
		for _, to := range candidates {
			if from == to || from.resourceIdx == to.resourceIdx {
				continue
			}
			fromRes := pkg.Resources[from.resourceIdx]
			toRes := pkg.Resources[to.resourceIdx]
			fromField := fromRes.Fields[from.fieldIdx]
			toField := toRes.Fields[to.fieldIdx]
			if fromField.Type != toField.Type {
				continue
			}

			ratio := containmentRatio(fromField, toField)
			if ratio >= foreignKeyThreshold {
				fromRes.ForeignKeys = append(fromRes.ForeignKeys, model.ForeignKey{
					FromResource: fromRes.Name,
					FromField:    fromField.Name,
					ToResource:   toRes.Name,
					ToField:      toField.Name,
					Ratio:        ratio,
				})
			}
		}
	}
}

// containmentRatio computes |A ∩ B| / |A| over each field's full exact
// distinct-value set (retained on Statistics.ExactValues while
// ExactUnique held below the exact-tracking threshold), giving an exact
// containment measurement rather than a Top20-sample approximation.
//
// Each side's set is hashed into a roaring.Bitmap of 32-bit hash codes;
// And's cardinality against a's (the from side's) cardinality gives the
// ratio in two set operations instead of a map-probe loop.
func containmentRatio(a, b model.Field) float64 {
	if len(a.Stats.ExactValues) == 0 {
		return 0
	}
	aBits := bitmapOf(a.Stats.ExactValues)
	bBits := bitmapOf(b.Stats.ExactValues)

	intersection := roaring.And(aBits, bBits)
	return float64(intersection.GetCardinality()) / float64(aBits.GetCardinality())
}

func bitmapOf(values []string) *roaring.Bitmap {
	bm := roaring.New()
	for _, v := range values {
		bm.Add(hash32(v))
	}
	return bm
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
