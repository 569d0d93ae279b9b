package findhub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/findhub/blobstore"
	"github.com/hupe1980/findhub/index/flat"
	"github.com/hupe1980/findhub/ranker"
	"github.com/hupe1980/findhub/store"
	"github.com/hupe1980/findhub/wal"
)

// Data file names inside the catalog directory.
const (
	vectorsFile = "vectors.idx"
	catalogFile = "catalog.json"
	journalFile = "ingest.wal"

	// ImagesDirName is the subdirectory holding item images.
	ImagesDirName = "images"
)

// Item carries the caller-provided fields of an ingest. Identifier,
// vector position and timestamp are assigned by the catalog.
type Item struct {
	Description   string
	Location      string
	Category      string
	ItemType      string
	Contact       string
	ImageFilename string
	Tags          []string
}

// Query describes a search. Location, Category and the time window
// filter candidates before ranking. Vector drives semantic recall and
// Text drives keyword scoring; with neither set the filtered items are
// returned newest first.
type Query struct {
	Text     string
	Vector   []float32
	Location string
	Category string
	From     time.Time
	To       time.Time
}

// ReconcileReport compares the two persistent stores.
type ReconcileReport struct {
	IndexCount  int
	RecordCount int
}

// Drift returns how many vectors the index is ahead of the metadata
// store. A positive drift means interrupted ingests.
func (r ReconcileReport) Drift() int { return r.IndexCount - r.RecordCount }

// Consistent reports whether both stores agree.
func (r ReconcileReport) Consistent() bool { return r.Drift() == 0 }

// Catalog is the coordinator over the vector index, the metadata store
// and the ingest journal. All writes are serialized; reads work on
// immutable snapshots and never block ingest.
type Catalog struct {
	opts    options
	dataDir string
	index   *flat.Flat
	store   *store.Store
	journal *wal.Journal
	logger  *Logger

	mu      sync.RWMutex
	records []store.Record

	pushWG sync.WaitGroup
}

// Open loads the catalog at dataDir, creating it if empty.
//
// If a mirror is configured, missing data files are pulled first. An
// interrupted ingest left in the journal is replayed before the
// catalog accepts traffic, so both stores agree again after a crash.
func Open(ctx context.Context, dataDir string, optFns ...Option) (*Catalog, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(filepath.Join(dataDir, ImagesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if opts.mirror != nil {
		if err := blobstore.PullAll(ctx, opts.mirror, dataDir, vectorsFile, catalogFile); err != nil {
			return nil, fmt.Errorf("pull from mirror: %w", err)
		}
		opts.logger.Info("pulled data files from mirror", "dir", dataDir)
	}

	idx, err := openIndex(filepath.Join(dataDir, vectorsFile), opts.dimension)
	if err != nil {
		return nil, err
	}

	st := store.New(filepath.Join(dataDir, catalogFile), func(o *store.Options) {
		o.Codec = opts.codec
	})

	records, err := st.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	c := &Catalog{
		opts:    opts,
		dataDir: dataDir,
		index:   idx,
		store:   st,
		journal: wal.New(filepath.Join(dataDir, journalFile), func(o *wal.Options) {
			o.Codec = opts.codec
		}),
		logger:  opts.logger,
		records: records,
	}

	if err := c.replayJournal(); err != nil {
		return nil, err
	}

	if report := c.Reconcile(); !report.Consistent() {
		c.logger.Warn("stores disagree after open",
			"index_count", report.IndexCount,
			"record_count", report.RecordCount,
		)
	}

	c.logger.WithCount(len(c.records)).Info("catalog opened", "dir", dataDir)

	return c, nil
}

func openIndex(path string, dimension int) (*flat.Flat, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return flat.New(dimension)
		}
		return nil, err
	}

	idx, err := flat.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	if idx.Dimension() != dimension {
		return nil, fmt.Errorf("%w: index dimension %d, configured %d", ErrInvalidInput, idx.Dimension(), dimension)
	}

	return idx, nil
}

// replayJournal finishes the ingest a crash interrupted. The journal
// holds at most the last in-flight entry; whichever of its two writes
// is missing gets re-applied, then the journal is cleared.
func (c *Catalog) replayJournal() error {
	entries, err := c.journal.Replay()
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}

	for _, entry := range entries {
		if int(entry.VecID) == c.index.Count() {
			if _, err := c.index.Append(entry.Vector); err != nil {
				return fmt.Errorf("replay vector %d: %w", entry.VecID, err)
			}
			if err := c.index.SaveToFile(filepath.Join(c.dataDir, vectorsFile)); err != nil {
				return fmt.Errorf("persist replayed index: %w", err)
			}
			c.logger.WithVecID(entry.VecID).Info("replayed vector from journal")
		}

		if int(entry.VecID) >= c.index.Count() {
			continue // torn entry beyond the index, nothing to repair
		}

		if _, ok := store.FindByVecID(c.records, entry.VecID); !ok {
			if err := c.store.AppendAndPersist(entry.Record); err != nil {
				return fmt.Errorf("replay record %d: %w", entry.VecID, err)
			}
			c.records = append(c.records, entry.Record)
			c.logger.WithVecID(entry.VecID).Info("replayed record from journal")
		}
	}

	if err := c.journal.Reset(); err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}

	return nil
}

// Dimension returns the vector dimension of the catalog.
func (c *Catalog) Dimension() int { return c.index.Dimension() }

// ImagesDir returns the directory item images are stored in.
func (c *Catalog) ImagesDir() string { return filepath.Join(c.dataDir, ImagesDirName) }

// Count returns the number of metadata records.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}

// NextVecID returns the identifier the next ingest will assign. The
// index is the source of truth, so after a partial ingest this is one
// ahead of Count.
func (c *Catalog) NextVecID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return uint32(c.index.Count())
}

// Ingest adds a new item. The vector position in the index becomes the
// record's VecID; the vector is journaled and persisted before the
// metadata record is written.
//
// On a metadata write failure the vector stays persisted and
// *ErrPartialIngest is returned. The identifier is not reused; the
// journal repairs the missing record on the next Open.
func (c *Catalog) Ingest(ctx context.Context, item Item, vector []float32) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}

	if item.Description == "" {
		return store.Record{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if len(vector) != c.index.Dimension() {
		return store.Record{}, fmt.Errorf("%w: vector dimension %d, expected %d", ErrInvalidInput, len(vector), c.index.Dimension())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vecID := uint32(c.index.Count())

	record := store.Record{
		ID:            uuid.NewString(),
		VecID:         vecID,
		Description:   item.Description,
		Location:      item.Location,
		Category:      item.Category,
		ItemType:      item.ItemType,
		Contact:       item.Contact,
		ImageFilename: item.ImageFilename,
		Tags:          item.Tags,
		Timestamp:     store.NowTimestamp(),
	}

	if err := c.journal.Append(wal.Entry{VecID: vecID, Vector: vector, Record: record}); err != nil {
		return store.Record{}, fmt.Errorf("journal ingest: %w", err)
	}

	if _, err := c.index.Append(vector); err != nil {
		return store.Record{}, fmt.Errorf("append vector: %w", err)
	}

	if err := c.index.SaveToFile(filepath.Join(c.dataDir, vectorsFile)); err != nil {
		return store.Record{}, fmt.Errorf("persist vector index: %w", err)
	}

	if err := c.store.AppendAndPersist(record); err != nil {
		c.logger.WithVecID(vecID).Error("metadata write failed after vector persist", "error", err)
		return store.Record{}, &ErrPartialIngest{VecID: vecID, cause: err}
	}

	c.records = append(c.records, record)

	// The ingest is fully persisted; a leftover journal entry would
	// only be replayed as a no-op, so a failed reset is not fatal.
	if err := c.journal.Reset(); err != nil {
		c.logger.Warn("journal reset failed", "error", err)
	}

	c.pushToMirror(item.ImageFilename)

	c.logger.WithVecID(vecID).WithCount(len(c.records)).Info("item ingested")

	return record, nil
}

func (c *Catalog) pushToMirror(imageFilename string) {
	if c.opts.mirror == nil {
		return
	}

	names := []string{vectorsFile, catalogFile}
	if imageFilename != "" {
		names = append(names, filepath.Join(ImagesDirName, imageFilename))
	}

	c.pushWG.Add(1)
	go func() {
		defer c.pushWG.Done()

		if err := blobstore.PushAll(context.Background(), c.opts.mirror, c.dataDir, names...); err != nil {
			c.logger.Error("mirror push failed", "error", err)
		}
	}()
}

// Search filters items on metadata and ranks the survivors. With a
// vector, the nearest neighbors are recalled and fused with keyword
// relevance; candidates outside the recall set are dropped. Without a
// vector or text, the filtered items are returned newest first with a
// zero score.
func (c *Catalog) Search(ctx context.Context, q Query) ([]ranker.ScoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	records := c.records
	c.mu.RUnlock()

	candidates, skipped := store.Apply(records, store.Filter{
		Location: q.Location,
		Category: q.Category,
		From:     q.From,
		To:       q.To,
	})
	if skipped > 0 {
		c.logger.Warn("skipped records with malformed timestamps", "skipped", skipped)
	}

	if len(candidates) == 0 {
		return []ranker.ScoredRecord{}, nil
	}

	if q.Vector == nil {
		if q.Text != "" {
			return nil, fmt.Errorf("%w: text search requires an embedding vector", ErrInvalidInput)
		}
		return browseResults(candidates), nil
	}

	if len(q.Vector) != c.index.Dimension() {
		return nil, fmt.Errorf("%w: query dimension %d, expected %d", ErrInvalidInput, len(q.Vector), c.index.Dimension())
	}

	opts := ranker.Options{Alpha: c.opts.alpha, RecallLimit: c.opts.recallLimit}

	neighbors, err := c.index.Search(q.Vector, ranker.RecallK(len(candidates), opts))
	if err != nil {
		return nil, fmt.Errorf("vector recall: %w", err)
	}

	return ranker.Rank(candidates, neighbors, q.Text, opts), nil
}

func browseResults(candidates []store.Record) []ranker.ScoredRecord {
	sorted := make([]store.Record, len(candidates))
	copy(sorted, candidates)
	store.SortByTimestampDesc(sorted)

	results := make([]ranker.ScoredRecord, len(sorted))
	for i, r := range sorted {
		results[i] = ranker.ScoredRecord{Record: r}
	}

	return results
}

// ListAll returns every record, newest first.
func (c *Catalog) ListAll() []store.Record {
	c.mu.RLock()
	records := c.records
	c.mu.RUnlock()

	sorted := make([]store.Record, len(records))
	copy(sorted, records)
	store.SortByTimestampDesc(sorted)

	return sorted
}

// GetByVecID returns the record at the given index position.
func (c *Catalog) GetByVecID(vecID uint32) (store.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := store.FindByVecID(c.records, vecID)
	if !ok {
		return store.Record{}, fmt.Errorf("%w: vec_id %d", ErrNotFound, vecID)
	}

	return record, nil
}

// Reconcile compares the vector index against the metadata store.
func (c *Catalog) Reconcile() ReconcileReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ReconcileReport{
		IndexCount:  c.index.Count(),
		RecordCount: len(c.records),
	}
}

// Close waits for outstanding mirror pushes.
func (c *Catalog) Close() error {
	c.pushWG.Wait()
	c.logger.Info("catalog closed")

	return nil
}
