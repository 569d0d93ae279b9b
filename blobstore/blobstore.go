// Package blobstore abstracts remote mirroring of the catalog's data
// files (vector index, metadata store, images).
//
// Mirroring is best-effort replication, not a consistency mechanism: the
// local files are the source of truth, the mirror is pulled once at
// startup and pushed after successful ingests so a redeployed instance
// can recover its state.
package blobstore

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a remote object does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Mirror replicates named data files between the local disk and a
// remote store.
type Mirror interface {
	// Pull downloads the remote object into localPath.
	// Returns ErrNotFound if the object does not exist remotely.
	Pull(ctx context.Context, name, localPath string) error

	// Push uploads the file at localPath to the remote object name.
	Push(ctx context.Context, name, localPath string) error
}

// PullAll downloads the named objects into dir. Objects missing remotely
// are skipped: a first run against an empty bucket is not an error.
func PullAll(ctx context.Context, m Mirror, dir string, names ...string) error {
	for _, name := range names {
		err := m.Pull(ctx, name, filepath.Join(dir, name))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// PushAll uploads the named files from dir concurrently. Files missing
// locally are skipped.
func PushAll(ctx context.Context, m Mirror, dir string, names ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		localPath := filepath.Join(dir, name)
		if _, err := os.Stat(localPath); err != nil {
			continue
		}
		g.Go(func() error {
			return m.Push(ctx, name, localPath)
		})
	}
	return g.Wait()
}
