// Package store provides the append-only metadata store for catalog items.
//
// Records are persisted as a single JSON document rewritten atomically on
// every append. That makes concurrent writers unsafe; the catalog
// serializes ingestion, which is the only mutation path.
package store

import (
	"sort"
	"strings"
	"time"
)

// Record is the metadata for one catalog item.
//
// VecID is the sole join key to the vector index and must equal the
// ordinal position of the record's vector at insertion time. ID is an
// opaque external identifier and is never used for index lookup.
// Optional fields may be absent in degraded ingests (failed tagging,
// missing description); the struct shape itself is fixed.
type Record struct {
	ID            string   `json:"id"`
	VecID         uint32   `json:"vec_id"`
	Description   string   `json:"description,omitempty"`
	Location      string   `json:"location,omitempty"`
	Category      string   `json:"category,omitempty"`
	ItemType      string   `json:"item_type,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	ImageFilename string   `json:"image_filename,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// Time parses the record's creation timestamp (RFC3339 UTC).
func (r Record) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

// MatchText returns the lowercased text the keyword scorer matches
// against: description plus tags joined by spaces.
func (r Record) MatchText() string {
	parts := make([]string, 0, 1+len(r.Tags))
	parts = append(parts, r.Description)
	parts = append(parts, r.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

// NowTimestamp returns the current time formatted as a record timestamp.
func NowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SortByTimestampDesc stable-sorts records most recent first.
// RFC3339 UTC timestamps order lexicographically, so the string compare
// is sufficient and keeps malformed timestamps from aborting a listing.
func SortByTimestampDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}
