package codec

import "encoding/json"

// JSON is the standard-library JSON codec.
//
// The metadata store is a human-inspectable text file, so JSON is the
// right trade-off: stable, portable, diff-friendly.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
