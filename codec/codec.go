// Package codec centralizes record encoding.
//
// Codec selection is a breaking-change boundary: changing codecs means
// persisted bytes created by older codecs may no longer decode.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the default codec used by the catalog stores.
var Default Codec = JSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	default:
		return nil, false
	}
}
