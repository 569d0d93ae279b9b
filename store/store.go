package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/findhub/codec"
	"github.com/hupe1980/findhub/persistence"
)

// ErrCorrupt is returned when a persisted metadata file cannot be decoded.
var ErrCorrupt = errors.New("store: corrupt metadata file")

// Store reads and rewrites the metadata file.
type Store struct {
	path  string
	codec codec.Codec
}

// Options configures a Store.
type Options struct {
	// Codec encodes and decodes the metadata file. Defaults to
	// codec.Default.
	Codec codec.Codec
}

// New creates a store backed by the file at path.
// A missing file is not an error; the first LoadAll returns no records.
func New(path string, optFns ...func(o *Options)) *Store {
	opts := Options{
		Codec: codec.Default,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{path: path, codec: opts.Codec}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// LoadAll returns all records in insertion order.
func (s *Store) LoadAll() ([]Record, error) {
	var records []Record
	err := persistence.LoadFromFile(s.path, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if err := s.codec.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}

// Count returns the number of persisted records.
func (s *Store) Count() (int, error) {
	records, err := s.LoadAll()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// AppendAndPersist loads the current contents, appends the record and
// rewrites the whole store atomically. Callers must serialize writes;
// this is a read-modify-write of the full file.
func (s *Store) AppendAndPersist(record Record) error {
	records, err := s.LoadAll()
	if err != nil {
		return err
	}
	records = append(records, record)

	data, err := s.codec.Marshal(records)
	if err != nil {
		return err
	}
	return persistence.SaveToFile(s.path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Filter describes the structured constraints of a query.
// Zero values leave the corresponding constraint unset.
type Filter struct {
	Location string
	Category string
	From     time.Time // inclusive lower bound on record timestamp
	To       time.Time // inclusive upper bound on record timestamp
}

// Apply returns the subsequence of records matching the filter, in the
// original order, plus the number of records skipped because their
// timestamp could not be parsed. A malformed timestamp never aborts the
// whole filter; the offending record is excluded and scanning continues.
func Apply(records []Record, f Filter) (matched []Record, skipped int) {
	matched = make([]Record, 0, len(records))
	for _, rec := range records {
		if f.Location != "" && rec.Location != f.Location {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		if !f.From.IsZero() || !f.To.IsZero() {
			ts, err := rec.Time()
			if err != nil {
				skipped++
				continue
			}
			if !f.From.IsZero() && ts.Before(f.From) {
				continue
			}
			if !f.To.IsZero() && ts.After(f.To) {
				continue
			}
		}
		matched = append(matched, rec)
	}
	return matched, skipped
}

// FindByVecID returns the first record carrying vecID.
// Diagnostic helper; the query path joins via the candidate list.
func FindByVecID(records []Record, vecID uint32) (Record, bool) {
	for _, rec := range records {
		if rec.VecID == vecID {
			return rec, true
		}
	}
	return Record{}, false
}
