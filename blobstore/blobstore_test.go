package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMirror(t *testing.T) {
	dir := t.TempDir()
	mirror := NewMemoryMirror()
	ctx := context.Background()

	t.Run("PullMissing", func(t *testing.T) {
		err := mirror.Pull(ctx, "catalog.json", filepath.Join(dir, "catalog.json"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		local := filepath.Join(dir, "vectors.idx")
		require.NoError(t, os.WriteFile(local, []byte("payload"), 0o644))

		require.NoError(t, mirror.Push(ctx, "vectors.idx", local))

		obj, ok := mirror.Object("vectors.idx")
		require.True(t, ok)
		assert.Equal(t, []byte("payload"), obj)

		pulled := filepath.Join(dir, "vectors.pulled")
		require.NoError(t, mirror.Pull(ctx, "vectors.idx", pulled))

		data, err := os.ReadFile(pulled)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)
	})
}

func TestPullAll(t *testing.T) {
	dir := t.TempDir()
	mirror := NewMemoryMirror()
	ctx := context.Background()

	local := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(local, []byte(`[]`), 0o644))
	require.NoError(t, mirror.Push(ctx, "catalog.json", local))
	require.NoError(t, os.Remove(local))

	// Missing remote objects are skipped, present ones land on disk.
	require.NoError(t, PullAll(ctx, mirror, dir, "catalog.json", "vectors.idx"))

	_, err := os.Stat(local)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "vectors.idx"))
	assert.True(t, os.IsNotExist(err))
}

func TestPushAll(t *testing.T) {
	dir := t.TempDir()
	mirror := NewMemoryMirror()
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(`[]`), 0o644))

	// Locally missing files are skipped instead of failing the batch.
	require.NoError(t, PushAll(ctx, mirror, dir, "catalog.json", "vectors.idx"))

	_, ok := mirror.Object("catalog.json")
	assert.True(t, ok)

	_, ok = mirror.Object("vectors.idx")
	assert.False(t, ok)
}
