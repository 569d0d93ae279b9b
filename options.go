package findhub

import (
	"github.com/hupe1980/findhub/blobstore"
	"github.com/hupe1980/findhub/codec"
	"github.com/hupe1980/findhub/ranker"
)

// DefaultDimension is the vector size used when none is configured.
// It matches the output size of common CLIP-style image/text encoders.
const DefaultDimension = 512

type options struct {
	dimension   int
	alpha       float64
	recallLimit int
	codec       codec.Codec
	logger      *Logger
	mirror      blobstore.Mirror
}

// Option configures Catalog constructor behavior.
type Option func(*options)

// WithDimension configures the vector dimension for a fresh catalog.
// Opening an existing catalog with a different dimension fails.
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

// WithAlpha configures the semantic weight of score fusion. The
// keyword weight is 1-alpha. Values outside [0,1] are clamped.
func WithAlpha(alpha float64) Option {
	return func(o *options) {
		if alpha < 0 {
			alpha = 0
		}
		if alpha > 1 {
			alpha = 1
		}
		o.alpha = alpha
	}
}

// WithRecallLimit configures the maximum number of nearest neighbors
// recalled per search.
func WithRecallLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.recallLimit = limit
		}
	}
}

// WithCodec configures the codec used for the metadata store and the
// ingest journal.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, logging is disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMirror configures a remote mirror. The catalog pulls missing
// data files from the mirror on Open and pushes after every ingest.
func WithMirror(m blobstore.Mirror) Option {
	return func(o *options) {
		o.mirror = m
	}
}

func defaultOptions() options {
	return options{
		dimension:   DefaultDimension,
		alpha:       ranker.DefaultOptions.Alpha,
		recallLimit: ranker.DefaultOptions.RecallLimit,
		codec:       codec.Default,
		logger:      NoopLogger(),
	}
}
