// Package extract defines the feature extraction interfaces used during
// item ingestion: turning images and free text into embedding vectors,
// and deriving descriptive tags from images.
package extract

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed is returned when the extractor cannot produce a
// usable embedding. Ingestion must not proceed without one.
var ErrEmbeddingFailed = errors.New("extract: embedding failed")

// Embedder produces fixed-dimension embedding vectors.
type Embedder interface {
	// EmbedImage embeds raw image bytes.
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	// EmbedText embeds a text query.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector size this embedder produces.
	Dimension() int
}

// Tagger derives descriptive tags from an image. Tagging is best
// effort: callers treat a failure as "no tags", never as a fatal error.
type Tagger interface {
	TagImage(ctx context.Context, image []byte) ([]string, error)
}
