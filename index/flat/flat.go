// Package flat provides an append-only flat index for exact vector search.
//
// The index stores fixed-dimension float32 vectors at consecutive ordinal
// positions; the position is the vector's identifier and is never reused.
// Search is an exact linear scan by squared L2 distance, which is the
// right trade-off for catalogs up to the low hundreds of thousands of
// entries.
package flat

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/findhub/distance"
	"github.com/hupe1980/findhub/internal/queue"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("flat: k must be positive")

	// ErrCorrupt is returned when a persisted index cannot be decoded.
	ErrCorrupt = errors.New("flat: corrupt index file")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult represents a single nearest-neighbor result.
type SearchResult struct {
	ID       uint32  // Ordinal position of the vector
	Distance float32 // Distance to the query under the index metric
}

// Flat is an append-only exact-distance index.
//
// It uses a copy-on-write snapshot for the vector table: appends clone
// the slice header under a write mutex and publish it atomically, so
// searches never block on ingestion and always observe a consistent
// point-in-time state.
type Flat struct {
	state        atomic.Value // holds [][]float32
	writeMu      sync.Mutex   // serializes appends
	dimension    int
	distanceFunc distance.Func
}

// Options configures a Flat index.
type Options struct {
	// Metric selects the distance function used for search.
	// Defaults to squared L2.
	Metric distance.Metric
}

// New creates an empty flat index of the given fixed dimension.
func New(dimension int, optFns ...func(o *Options)) (*Flat, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	opts := Options{
		Metric: distance.MetricSquaredL2,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	distanceFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	f := &Flat{
		dimension:    dimension,
		distanceFunc: distanceFunc,
	}
	f.state.Store(make([][]float32, 0))

	return f, nil
}

func (f *Flat) getState() [][]float32 {
	return f.state.Load().([][]float32)
}

// Dimension returns the fixed vector dimensionality of the index.
func (f *Flat) Dimension() int { return f.dimension }

// Count returns the number of vectors in the index.
func (f *Flat) Count() int { return len(f.getState()) }

// Append adds a vector at the next ordinal position and returns that
// position. Append is not idempotent: calling twice appends twice.
func (f *Flat) Append(v []float32) (uint32, error) {
	if len(v) != f.dimension {
		return 0, &ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old := f.getState()

	// Copy the vector so later caller mutations cannot reach the index,
	// and clone the slice header so concurrent readers keep a stable view.
	vec := make([]float32, len(v))
	copy(vec, v)

	next := make([][]float32, len(old), len(old)+1)
	copy(next, old)
	next = append(next, vec)

	id := uint32(len(old))
	f.state.Store(next)

	return id, nil
}

// VectorByID returns a copy of the vector stored at the given ordinal.
func (f *Flat) VectorByID(id uint32) ([]float32, bool) {
	st := f.getState()
	if int(id) >= len(st) {
		return nil, false
	}
	out := make([]float32, len(st[id]))
	copy(out, st[id])
	return out, true
}

// Search returns up to k results ordered by ascending squared L2
// distance. If the index holds fewer than k vectors, all of them are
// returned; an empty index yields an empty result.
func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	return f.BruteSearch(query, k, nil)
}

// BruteSearch performs an exact linear scan, optionally restricted to
// ordinals accepted by filter. It is lock-free against appends.
func (f *Flat) BruteSearch(query []float32, k int, filter func(id uint32) bool) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	st := f.getState()
	if len(st) == 0 {
		return nil, nil
	}
	if len(query) != f.dimension {
		return nil, &ErrDimensionMismatch{Expected: f.dimension, Actual: len(query)}
	}

	actualK := k
	if actualK > len(st) {
		actualK = len(st)
	}

	top := queue.NewMax(actualK)
	for i, vec := range st {
		id := uint32(i)
		if filter != nil && !filter(id) {
			continue
		}

		d := f.distanceFunc(query, vec)
		if top.Len() < actualK {
			top.Push(queue.Item{ID: id, Distance: d})
			continue
		}
		if worst, _ := top.Top(); d < worst.Distance {
			top.Pop()
			top.Push(queue.Item{ID: id, Distance: d})
		}
	}

	results := make([]SearchResult, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := top.Pop()
		results[i] = SearchResult{ID: item.ID, Distance: item.Distance}
	}
	return results, nil
}
