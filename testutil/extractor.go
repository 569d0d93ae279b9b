package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
)

// FakeExtractor is a deterministic in-process Embedder and Tagger.
// Vectors are derived from the FNV hash of the input, so equal inputs
// always embed identically and the same fixture data produces the same
// neighbor ordering on every run.
type FakeExtractor struct {
	dim  int
	mu   sync.Mutex
	tags map[string][]string

	// FailEmbed forces embedding calls to fail.
	FailEmbed bool
	// FailTags forces tagging calls to fail.
	FailTags bool
}

// NewFakeExtractor creates a fake extractor producing vectors of the
// given dimension.
func NewFakeExtractor(dimension int) *FakeExtractor {
	return &FakeExtractor{
		dim:  dimension,
		tags: make(map[string][]string),
	}
}

// Dimension returns the vector size this extractor produces.
func (f *FakeExtractor) Dimension() int {
	return f.dim
}

// SetTags fixes the tags returned for an exact input payload.
func (f *FakeExtractor) SetTags(image []byte, tags []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[string(image)] = tags
}

// EmbedImage returns a deterministic vector derived from the image bytes.
func (f *FakeExtractor) EmbedImage(_ context.Context, image []byte) ([]float32, error) {
	if f.FailEmbed {
		return nil, errors.New("fake extractor: embed failure")
	}

	return f.embed(image), nil
}

// EmbedText returns a deterministic vector derived from the text.
func (f *FakeExtractor) EmbedText(_ context.Context, text string) ([]float32, error) {
	if f.FailEmbed {
		return nil, errors.New("fake extractor: embed failure")
	}

	return f.embed([]byte(strings.ToLower(text))), nil
}

// TagImage returns the tags registered via SetTags, or none.
func (f *FakeExtractor) TagImage(_ context.Context, image []byte) ([]string, error) {
	if f.FailTags {
		return nil, errors.New("fake extractor: tag failure")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tags[string(image)], nil
}

func (f *FakeExtractor) embed(data []byte) []float32 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	seed := h.Sum64()

	vec := make([]float32, f.dim)
	for i := range vec {
		// xorshift64, seeded from the input hash.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vec[i] = float32(seed%1000) / 1000.0
	}

	return vec
}
